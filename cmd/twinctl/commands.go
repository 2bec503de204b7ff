package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/financial-twin-engine/internal/anchor"
	"github.com/financial-twin-engine/internal/categorizer"
	"github.com/financial-twin-engine/internal/config"
	"github.com/financial-twin-engine/internal/data/gcs"
	"github.com/financial-twin-engine/internal/domain/snapshot"
	"github.com/financial-twin-engine/internal/domain/transaction"
	"github.com/financial-twin-engine/internal/platform/ledger"
)

var errHashMismatch = errors.New("stored content hash does not match the document")

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "twinctl",
		Usage: "Operator tooling for the financial twin pipeline",
		Commands: []*cli.Command{
			categorizeCommand(),
			hashCommand(),
			verifyCommand(),
			archivedCommand(),
		},
	}
}

func categorizeCommand() *cli.Command {
	return &cli.Command{
		Name:      "categorize",
		Usage:     "Resolve the category of one or more merchant strings",
		ArgsUsage: "MERCHANT...",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "rules",
				Usage:   "Path to a YAML rule file, built-in rules when empty",
				Sources: cli.EnvVars("SCORING_RULES_PATH"),
			},
			&cli.StringFlag{
				Name:  "hint",
				Usage: "Classifier category hint",
			},
			&cli.StringFlag{
				Name:  "hint-confidence",
				Usage: "Confidence of the classifier hint in [0,1]",
				Value: "0",
			},
		},
		Action: runCategorize,
	}
}

func runCategorize(_ context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() == 0 {
		return errors.New("at least one merchant string is required")
	}

	rules, err := categorizer.LoadRules(cmd.String("rules"))
	if err != nil {
		return err
	}
	confidence, err := strconv.ParseFloat(cmd.String("hint-confidence"), 64)
	if err != nil {
		return fmt.Errorf("invalid hint confidence: %w", err)
	}
	resolver := categorizer.NewResolver(rules, categorizer.DefaultHintThreshold)

	type line struct {
		Merchant string `json:"merchant"`
		categorizer.Resolution
	}
	out := make([]line, 0, cmd.Args().Len())
	for _, merchant := range cmd.Args().Slice() {
		res := resolver.ResolveDetailed(transaction.Transaction{
			MerchantText:    merchant,
			RawCategoryHint: cmd.String("hint"),
			HintConfidence:  confidence,
		})
		out = append(out, line{Merchant: merchant, Resolution: res})
	}
	return writeJSON(writer(cmd), out)
}

func hashCommand() *cli.Command {
	return &cli.Command{
		Name:      "hash",
		Usage:     "Print the canonical document and content hash of a snapshot JSON file",
		ArgsUsage: "FILE (- for stdin)",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "document",
				Usage: "Also print the canonical document",
			},
		},
		Action: runHash,
	}
}

func runHash(_ context.Context, cmd *cli.Command) error {
	path := cmd.Args().First()
	if path == "" {
		return errors.New("a snapshot file is required")
	}

	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(reader(cmd))
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("failed to read snapshot: %w", err)
	}

	var s snapshot.Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("failed to decode snapshot: %w", err)
	}
	hash, err := snapshot.ContentHash(&s)
	if err != nil {
		return err
	}

	w := writer(cmd)
	if cmd.Bool("document") {
		doc, err := snapshot.CanonicalDocument(&s)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(doc))
	}
	fmt.Fprintln(w, hash)

	if s.ContentHash != "" && !strings.EqualFold(s.ContentHash, hash) {
		return fmt.Errorf("%w: stored %s", errHashMismatch, s.ContentHash)
	}
	return nil
}

func verifyCommand() *cli.Command {
	return &cli.Command{
		Name:      "verify",
		Usage:     "Look up a content hash on the verification ledger",
		ArgsUsage: "HASH",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "ledger-url",
				Usage:    "Verification ledger base URL",
				Sources:  cli.EnvVars("LEDGER_BASE_URL"),
				Required: true,
			},
			&cli.StringFlag{
				Name:    "api-key",
				Usage:   "Verification ledger API key",
				Sources: cli.EnvVars("LEDGER_API_KEY"),
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Lookup timeout",
				Value: 10 * time.Second,
			},
		},
		Action: runVerify,
	}
}

func runVerify(ctx context.Context, cmd *cli.Command) error {
	hash := strings.ToLower(strings.TrimSpace(cmd.Args().First()))
	if !anchor.ValidHash(hash) {
		return fmt.Errorf("invalid content hash %q", hash)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	client := ledger.NewHTTPClient(logger, &config.LedgerConfig{
		BaseURL: cmd.String("ledger-url"),
		APIKey:  cmd.String("api-key"),
		Timeout: cmd.Duration("timeout"),
	})

	w := writer(cmd)
	receipt, err := client.Lookup(ctx, hash)
	if errors.Is(err, ledger.ErrNotFound) {
		return writeJSON(w, map[string]any{"content_hash": hash, "valid": false})
	}
	if err != nil {
		return err
	}
	return writeJSON(w, map[string]any{
		"content_hash":          hash,
		"valid":                 true,
		"ledger_transaction_id": receipt.TransactionID,
		"ledger_timestamp":      receipt.Timestamp,
	})
}

func archivedCommand() *cli.Command {
	return &cli.Command{
		Name:      "archived",
		Usage:     "Fetch an archived canonical document and print its hash",
		ArgsUsage: "TWIN_ID SNAPSHOT_ID",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "bucket",
				Usage:    "Archive bucket",
				Sources:  cli.EnvVars("ARCHIVE_BUCKET"),
				Required: true,
			},
			&cli.StringFlag{
				Name:    "prefix",
				Usage:   "Object prefix inside the bucket",
				Sources: cli.EnvVars("ARCHIVE_PREFIX"),
				Value:   "twins",
			},
		},
		Action: runArchived,
	}
}

func runArchived(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() != 2 {
		return errors.New("TWIN_ID and SNAPSHOT_ID are required")
	}
	twinID, err := uuid.Parse(cmd.Args().Get(0))
	if err != nil {
		return fmt.Errorf("invalid twin id: %w", err)
	}
	snapshotID, err := uuid.Parse(cmd.Args().Get(1))
	if err != nil {
		return fmt.Errorf("invalid snapshot id: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	archive, err := gcs.NewSnapshotArchive(ctx, logger, &config.ArchiveConfig{
		Enabled: true,
		Bucket:  cmd.String("bucket"),
		Prefix:  cmd.String("prefix"),
	})
	if err != nil {
		return err
	}
	defer archive.Close()

	doc, err := archive.Fetch(ctx, twinID, snapshotID)
	if err != nil {
		return err
	}
	sum := sha256.Sum256(doc)

	w := writer(cmd)
	fmt.Fprintln(w, string(doc))
	fmt.Fprintln(w, hex.EncodeToString(sum[:]))
	return nil
}

func writer(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

func reader(cmd *cli.Command) io.Reader {
	if r := cmd.Root().Reader; r != nil {
		return r
	}
	return os.Stdin
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
