package handler

import (
	"context"
	"io"
	"log/slog"

	"github.com/financial-twin-engine/internal/analytics"
	"github.com/financial-twin-engine/internal/anchor"
	"github.com/financial-twin-engine/internal/api_gateway/service"
	"github.com/financial-twin-engine/internal/domain/cohort"
	"github.com/financial-twin-engine/internal/domain/snapshot"
	"github.com/financial-twin-engine/internal/domain/twin"
	"github.com/financial-twin-engine/internal/snapshotstore"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

type MockTwinService struct {
	mock.Mock
}

func (m *MockTwinService) RegisterTwin(ctx context.Context, itemID, accessToken string) (*twin.Twin, error) {
	args := m.Called(ctx, itemID, accessToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*twin.Twin), args.Error(1)
}

func (m *MockTwinService) GetProfile(ctx context.Context, twinID uuid.UUID) (*service.Profile, error) {
	args := m.Called(ctx, twinID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Profile), args.Error(1)
}

func (m *MockTwinService) Regenerate(ctx context.Context, twinID uuid.UUID, idempotencyKey string) (string, error) {
	args := m.Called(ctx, twinID, idempotencyKey)
	return args.String(0), args.Error(1)
}

func (m *MockTwinService) History(ctx context.Context, twinID uuid.UUID, limit int) ([]*snapshot.Snapshot, error) {
	args := m.Called(ctx, twinID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*snapshot.Snapshot), args.Error(1)
}

func (m *MockTwinService) Snapshot(ctx context.Context, twinID, snapshotID uuid.UUID) (*service.SnapshotDetail, error) {
	args := m.Called(ctx, twinID, snapshotID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.SnapshotDetail), args.Error(1)
}

func (m *MockTwinService) Ghost(ctx context.Context, twinID uuid.UUID) (*snapshotstore.Ghost, error) {
	args := m.Called(ctx, twinID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*snapshotstore.Ghost), args.Error(1)
}

type MockAnalyticsService struct {
	mock.Mock
}

func (m *MockAnalyticsService) StressTest(ctx context.Context, twinID uuid.UUID, params analytics.StressParams) (*analytics.StressResult, error) {
	args := m.Called(ctx, twinID, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*analytics.StressResult), args.Error(1)
}

func (m *MockAnalyticsService) Anomalies(ctx context.Context, twinID uuid.UUID) (*service.AnomalyReport, error) {
	args := m.Called(ctx, twinID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.AnomalyReport), args.Error(1)
}

func (m *MockAnalyticsService) Benchmark(ctx context.Context, twinID uuid.UUID, key cohort.Key) (*analytics.Benchmark, error) {
	args := m.Called(ctx, twinID, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*analytics.Benchmark), args.Error(1)
}

func (m *MockAnalyticsService) Explain(ctx context.Context, twinID uuid.UUID, pillar snapshot.PillarName, limit int) (*analytics.Explanation, error) {
	args := m.Called(ctx, twinID, pillar, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*analytics.Explanation), args.Error(1)
}

func (m *MockAnalyticsService) Narrative(ctx context.Context, twinID uuid.UUID) (*service.Narrative, error) {
	args := m.Called(ctx, twinID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Narrative), args.Error(1)
}

type MockVerificationService struct {
	mock.Mock
}

func (m *MockVerificationService) Verify(ctx context.Context, contentHash string) (*anchor.VerifyResult, error) {
	args := m.Called(ctx, contentHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anchor.VerifyResult), args.Error(1)
}

type MockWebhookService struct {
	mock.Mock
}

func (m *MockWebhookService) HandleAggregatorWebhook(ctx context.Context, webhook service.AggregatorWebhook) (string, error) {
	args := m.Called(ctx, webhook)
	return args.String(0), args.Error(1)
}
