package service

import (
	"context"
	"strings"

	"github.com/financial-twin-engine/internal/anchor"
)

// VerificationServiceImpl implements the VerificationService interface
type VerificationServiceImpl struct {
	verifier VerificationReader
}

func NewVerificationService(verifier VerificationReader) *VerificationServiceImpl {
	return &VerificationServiceImpl{verifier: verifier}
}

// Verify looks the hash up on the ledger only; it never touches twin data
func (s *VerificationServiceImpl) Verify(ctx context.Context, contentHash string) (*anchor.VerifyResult, error) {
	return s.verifier.Verify(ctx, strings.ToLower(strings.TrimSpace(contentHash)))
}
