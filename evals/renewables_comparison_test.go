//go:build evals

package evals_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVoltaic_Planner_Evals_Anthropic_RenewablesGermanyFrance(t *testing.T) {
	t.Parallel()
	p := newEvalPlanner(t)

	question := "Compare the renewables share of primary energy between Germany and France from 2010 to 2023."
	res, err := p.Plan(context.Background(), question)
	require.NoError(t, err)
	require.NotNil(t, res.Plan)
	t.Logf("accepted draft (repairs=%d):\n%s", res.Repairs, res.Raw)

	require.Equal(t, "renewables_share_energy", res.Plan.MetricID())
	require.ElementsMatch(t, []string{"DEU", "FRA"}, res.Plan.Countries())
	require.Equal(t, 2010, res.Plan.YearStart())
	require.Equal(t, 2023, res.Plan.YearEnd())
}
