// Package planner turns natural-language questions about the energy
// dataset into validated chart plans. An LLM drafts the plan as JSON, the
// plan builder validates it, and rejected drafts go back to the model with
// the validation error for a bounded number of repair rounds.
package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/voltaicdata/voltaic/pkg/catalog"
	"github.com/voltaicdata/voltaic/pkg/metrics"
	"github.com/voltaicdata/voltaic/pkg/plan"
)

const DefaultMaxRepairs = 1

// LLMClient produces one completion for a system/user prompt pair.
type LLMClient interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

type Config struct {
	Logger  *slog.Logger
	LLM     LLMClient
	Catalog *catalog.Catalog
	Builder *plan.Builder

	// MaxRepairs bounds how many rejected drafts are sent back to the
	// model. Zero means DefaultMaxRepairs.
	MaxRepairs int
}

func (c *Config) Validate() error {
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	if c.LLM == nil {
		return errors.New("llm client is required")
	}
	if c.Catalog == nil {
		return errors.New("catalog is required")
	}
	if c.Builder == nil {
		return errors.New("plan builder is required")
	}
	if c.MaxRepairs < 0 {
		return errors.New("max repairs must not be negative")
	}
	if c.MaxRepairs == 0 {
		c.MaxRepairs = DefaultMaxRepairs
	}
	return nil
}

// Planner drives the draft-validate-repair loop.
type Planner struct {
	cfg    Config
	system string
}

func New(cfg Config) (*Planner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	// The catalog is immutable, so the system prompt is too.
	return &Planner{cfg: cfg, system: systemPrompt(cfg.Catalog)}, nil
}

// Result is a successful planner run.
type Result struct {
	Plan     *plan.Plan
	Question string
	// Repairs is how many rejected drafts were corrected before the plan
	// validated.
	Repairs int
	// Raw is the JSON object the accepted plan was decoded from.
	Raw string
}

// Plan asks the model for a chart plan answering question, validates it,
// and repairs it up to MaxRepairs times. The returned plan always passed
// full validation.
func (p *Planner) Plan(ctx context.Context, question string) (*Result, error) {
	prompt := userPrompt(question)
	var lastRaw string
	var lastErr error

	for attempt := 0; attempt <= p.cfg.MaxRepairs; attempt++ {
		if attempt > 0 {
			p.cfg.Logger.Info("repairing rejected plan", "attempt", attempt, "error", lastErr)
			prompt = repairPrompt(question, lastRaw, lastErr)
		}

		completion, err := p.cfg.LLM.Complete(ctx, p.system, prompt)
		if err != nil {
			metrics.RecordPlannerRun("error", attempt)
			return nil, fmt.Errorf("failed to complete plan draft: %w", err)
		}

		raw, err := ExtractJSON(completion)
		if err != nil {
			lastRaw, lastErr = completion, err
			continue
		}

		var in plan.Input
		if err := json.Unmarshal([]byte(raw), &in); err != nil {
			lastRaw, lastErr = raw, fmt.Errorf("plan JSON does not decode: %w", err)
			continue
		}

		built, err := p.cfg.Builder.Build(in)
		if err != nil {
			lastRaw, lastErr = raw, err
			continue
		}

		outcome := "ok"
		if attempt > 0 {
			outcome = "repaired"
		}
		metrics.RecordPlannerRun(outcome, attempt)
		p.cfg.Logger.Info("planned question",
			"question", question,
			"metric_id", built.Metric().ID,
			"repairs", attempt,
		)
		return &Result{Plan: built, Question: question, Repairs: attempt, Raw: raw}, nil
	}

	metrics.RecordPlannerRun("invalid", p.cfg.MaxRepairs)
	return nil, fmt.Errorf("no valid plan after %d attempts: %w", p.cfg.MaxRepairs+1, lastErr)
}
