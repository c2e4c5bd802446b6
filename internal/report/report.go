package report

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/wonny/kquant/internal/contracts"
	"github.com/wonny/kquant/pkg/config"
	"github.com/wonny/kquant/pkg/logger"
)

// Generator produces qualitative analysis reports through the Claude
// API and persists them. 보고서는 종목당 1건, 재생성 시 덮어쓴다.
type Generator struct {
	cfg    *config.Config
	log    *logger.Logger
	client anthropic.Client
	repo   contracts.ReportRepository
}

// NewGenerator creates a report generator. repo may be nil, in which
// case reports are returned but not persisted.
func NewGenerator(cfg *config.Config, log *logger.Logger, repo contracts.ReportRepository) (*Generator, error) {
	if cfg.Anthropic.APIKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY is not set")
	}

	return &Generator{
		cfg:    cfg,
		log:    log,
		client: anthropic.NewClient(option.WithAPIKey(cfg.Anthropic.APIKey)),
		repo:   repo,
	}, nil
}

// masterJSON mirrors one framework block of the model response.
type masterJSON struct {
	Score    int    `json:"score"`
	Title    string `json:"title"`
	Analysis string `json:"analysis"`
}

// claudeResponse is the JSON document the prompt instructs the model
// to emit.
type claudeResponse struct {
	Buffett        masterJSON `json:"buffett"`
	Damodaran      masterJSON `json:"damodaran"`
	Fisher         masterJSON `json:"fisher"`
	Dorsey         masterJSON `json:"dorsey"`
	Kostolany      masterJSON `json:"kostolany"`
	CompositeScore int        `json:"composite_score"`
	Grade          string     `json:"investment_grade"`
	Summary        string     `json:"summary"`
	Risks          []string   `json:"risks"`
	Catalysts      []string   `json:"catalysts"`
}

// Generate runs one report for a scored record and saves it when a
// repository is wired.
func (g *Generator) Generate(ctx context.Context, rec *contracts.ScoredRecord) (*contracts.Report, error) {
	timeout := g.cfg.Anthropic.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	maxTokens := g.cfg.Anthropic.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	started := time.Now()
	resp, err := g.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(g.cfg.Anthropic.Model),
		MaxTokens: int64(maxTokens),
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildPrompt(rec))),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("claude API call for %s: %w", rec.Ticker, err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			text.WriteString(b.Text)
		}
	}
	if text.Len() == 0 {
		return nil, fmt.Errorf("empty response for %s", rec.Ticker)
	}

	report, err := parseResponse(text.String(), rec)
	if err != nil {
		return nil, err
	}
	report.Model = g.cfg.Anthropic.Model

	g.log.WithFields(map[string]interface{}{
		"ticker":   rec.Ticker,
		"grade":    report.Grade,
		"duration": time.Since(started).String(),
	}).Info("정성 분석 보고서 생성 완료")

	if g.repo != nil {
		if err := g.repo.Save(ctx, report); err != nil {
			return nil, fmt.Errorf("save report for %s: %w", rec.Ticker, err)
		}
	}
	return report, nil
}

// parseResponse extracts the JSON document from the model output and
// maps it onto a report.
func parseResponse(raw string, rec *contracts.ScoredRecord) (*contracts.Report, error) {
	var parsed claudeResponse
	if err := json.Unmarshal([]byte(extractJSON(raw)), &parsed); err != nil {
		return nil, fmt.Errorf("parse report JSON for %s: %w", rec.Ticker, err)
	}

	return &contracts.Report{
		Ticker: rec.Ticker,
		Name:   rec.Name,
		Masters: map[string]contracts.MasterScore{
			"buffett":   {Score: parsed.Buffett.Score, Title: parsed.Buffett.Title, Analysis: parsed.Buffett.Analysis},
			"damodaran": {Score: parsed.Damodaran.Score, Title: parsed.Damodaran.Title, Analysis: parsed.Damodaran.Analysis},
			"fisher":    {Score: parsed.Fisher.Score, Title: parsed.Fisher.Title, Analysis: parsed.Fisher.Analysis},
			"dorsey":    {Score: parsed.Dorsey.Score, Title: parsed.Dorsey.Title, Analysis: parsed.Dorsey.Analysis},
			"kostolany": {Score: parsed.Kostolany.Score, Title: parsed.Kostolany.Title, Analysis: parsed.Kostolany.Analysis},
		},
		CompositeScore: parsed.CompositeScore,
		Grade:          parsed.Grade,
		Summary:        parsed.Summary,
		Risks:          parsed.Risks,
		Catalysts:      parsed.Catalysts,
		CreatedAt:      time.Now(),
	}, nil
}

// extractJSON strips a markdown code fence when the model wraps its
// answer in one.
func extractJSON(raw string) string {
	s := raw
	if _, after, found := strings.Cut(s, "```json"); found {
		s = after
	}
	if before, _, found := strings.Cut(s, "```"); found {
		s = before
	}
	return strings.TrimSpace(s)
}
