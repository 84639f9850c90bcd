//go:build evals

// Package evals exercises the planner against the live Anthropic API with
// real questions. These tests cost money and depend on model behavior, so
// they are opt-in: go test -tags evals ./evals/ with ANTHROPIC_API_KEY set.
package evals_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/voltaicdata/voltaic/pkg/catalog"
	"github.com/voltaicdata/voltaic/pkg/plan"
	"github.com/voltaicdata/voltaic/pkg/planner"
	"github.com/voltaicdata/voltaic/pkg/voltaictesting"
)

// newEvalPlanner skips the test when no API key is configured and returns a
// planner wired to the live Anthropic client and the default catalog.
func newEvalPlanner(t *testing.T) *planner.Planner {
	t.Helper()
	if os.Getenv("ANTHROPIC_API_KEY") == "" {
		t.Skip("ANTHROPIC_API_KEY not set, skipping eval test")
	}

	log := voltaictesting.NewLogger()
	cat := catalog.Default()

	builder, err := plan.NewBuilder(plan.BuilderConfig{Logger: log, Catalog: cat})
	require.NoError(t, err)

	llm, err := planner.NewAnthropicClient(planner.AnthropicConfig{Logger: log})
	require.NoError(t, err)

	p, err := planner.New(planner.Config{
		Logger:  log,
		LLM:     llm,
		Catalog: cat,
		Builder: builder,
	})
	require.NoError(t, err)
	return p
}
