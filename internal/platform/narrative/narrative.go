// Package narrative turns a score summary into a short plain-language explanation.
// Only scores and readiness leave the process; transactions never do.
package narrative

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"google.golang.org/genai"

	"github.com/financial-twin-engine/internal/config"
	"github.com/financial-twin-engine/internal/domain/snapshot"
)

var ErrEmptyNarrative = errors.New("empty response from model")

// ScoreSummary is the structured input of a narrative
type ScoreSummary struct {
	Overall        float64
	Pillars        map[snapshot.PillarName]float64
	Readiness      map[snapshot.Product]float64
	RunwayMonths   float64
	LowConfidence  bool
	WeightsVersion string
}

// SummaryFromSnapshot extracts the scores of a snapshot
func SummaryFromSnapshot(s *snapshot.Snapshot) ScoreSummary {
	summary := ScoreSummary{
		Overall:        s.Overall,
		Pillars:        make(map[snapshot.PillarName]float64, len(snapshot.AllPillars)),
		Readiness:      make(map[snapshot.Product]float64, len(snapshot.AllProducts)),
		RunwayMonths:   s.RunwayMonths,
		LowConfidence:  s.LowConfidence,
		WeightsVersion: s.WeightsVersion,
	}
	for _, p := range snapshot.AllPillars {
		summary.Pillars[p] = s.Pillars.Get(p)
	}
	for _, p := range snapshot.AllProducts {
		summary.Readiness[p] = s.Readiness.Get(p)
	}
	return summary
}

// Generator produces narrative text
type Generator interface {
	GenerateNarrative(ctx context.Context, summary ScoreSummary) (string, error)
}

// contentGenerator is satisfied by genai's Models service
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GenAIGenerator asks a Gemini model for the narrative
type GenAIGenerator struct {
	models contentGenerator
	model  string
	logger *slog.Logger
}

func NewGenAIGenerator(ctx context.Context, logger *slog.Logger, cfg *config.NarrativeConfig) (*GenAIGenerator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &GenAIGenerator{
		models: client.Models,
		model:  cfg.Model,
		logger: logger.With("component", "narrative"),
	}, nil
}

func (g *GenAIGenerator) GenerateNarrative(ctx context.Context, summary ScoreSummary) (string, error) {
	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: BuildPrompt(summary)}},
		},
	}

	resp, err := g.models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		g.logger.Error("Narrative generation failed", "model", g.model, "error", err)
		return "", fmt.Errorf("generate content: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", ErrEmptyNarrative
	}
	return text, nil
}

// BuildPrompt renders the summary as model instructions
func BuildPrompt(summary ScoreSummary) string {
	var b strings.Builder
	b.WriteString("You explain an alternative credit profile to its owner in plain language.\n")
	b.WriteString("Write at most four sentences. Mention the strongest and the weakest pillar and ")
	b.WriteString("one concrete way to improve. Do not invent numbers that are not given.\n\n")

	fmt.Fprintf(&b, "Overall score: %.2f/100\n", summary.Overall)
	b.WriteString("Pillar scores:\n")
	for _, p := range snapshot.AllPillars {
		fmt.Fprintf(&b, "- %s: %.2f\n", p, summary.Pillars[p])
	}
	b.WriteString("Lending readiness:\n")
	for _, p := range snapshot.AllProducts {
		fmt.Fprintf(&b, "- %s: %.2f\n", p, summary.Readiness[p])
	}
	fmt.Fprintf(&b, "Runway: %.1f months\n", summary.RunwayMonths)
	if summary.LowConfidence {
		b.WriteString("Note: the history is short, so the profile is low confidence.\n")
	}
	return b.String()
}

// TemplateGenerator renders a fixed-form narrative without a model
type TemplateGenerator struct{}

func (TemplateGenerator) GenerateNarrative(_ context.Context, summary ScoreSummary) (string, error) {
	type scored struct {
		name  snapshot.PillarName
		score float64
	}
	pillars := make([]scored, 0, len(summary.Pillars))
	for _, p := range snapshot.AllPillars {
		pillars = append(pillars, scored{name: p, score: summary.Pillars[p]})
	}
	sort.SliceStable(pillars, func(i, j int) bool { return pillars[i].score > pillars[j].score })

	if len(pillars) == 0 {
		return fmt.Sprintf("Your overall score is %.0f out of 100.", summary.Overall), nil
	}

	strongest, weakest := pillars[0], pillars[len(pillars)-1]
	text := fmt.Sprintf("Your overall score is %.0f out of 100. Your strongest area is %s (%.0f) and the one to work on is %s (%.0f).",
		summary.Overall, humanize(strongest.name), strongest.score, humanize(weakest.name), weakest.score)
	if summary.LowConfidence {
		text += " Your history is still short, so these scores will move as more months arrive."
	}
	return text, nil
}

func humanize(p snapshot.PillarName) string {
	return strings.ReplaceAll(string(p), "_", " ")
}
