package catalog

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVoltaic_Catalog_DatasetIDs(t *testing.T) {
	t.Parallel()

	c := Default()
	require.Equal(t, []string{DatasetOWIDEnergy}, c.DatasetIDs())
}

func TestVoltaic_Catalog_MetricIDs(t *testing.T) {
	t.Parallel()

	c := Default()

	ids, err := c.MetricIDs(DatasetOWIDEnergy)
	require.NoError(t, err)
	require.Len(t, ids, 11)

	// Sorted order.
	require.Equal(t, "coal_share_energy", ids[0])
	require.Equal(t, "wind_share_elec", ids[len(ids)-1])
	require.Contains(t, ids, "energy_per_capita")
	require.Contains(t, ids, "primary_energy_consumption")
}

func TestVoltaic_Catalog_MetricIDs_UnknownDataset(t *testing.T) {
	t.Parallel()

	c := Default()

	_, err := c.MetricIDs("owid_co2")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrUnknownDataset)

	var unknownErr *UnknownDatasetError
	require.ErrorAs(t, err, &unknownErr)
	require.Equal(t, "owid_co2", unknownErr.DatasetID)
	require.Equal(t, []string{DatasetOWIDEnergy}, unknownErr.Supported)
	require.Contains(t, err.Error(), "owid_energy")
}

func TestVoltaic_Catalog_Metric(t *testing.T) {
	t.Parallel()

	c := Default()

	spec, err := c.Metric(DatasetOWIDEnergy, "renewables_share_energy")
	require.NoError(t, err)
	require.Equal(t, "renewables_share_energy", spec.ID)
	require.Equal(t, "renewables_share_energy", spec.Column)
	require.Equal(t, "percent of primary energy", spec.Unit)
	require.Equal(t, "energy_mix", spec.Category)

	spec, err = c.Metric(DatasetOWIDEnergy, "energy_per_capita")
	require.NoError(t, err)
	require.Equal(t, "kWh per person per year", spec.Unit)
	require.Equal(t, "consumption", spec.Category)
}

func TestVoltaic_Catalog_Metric_UnknownMetric(t *testing.T) {
	t.Parallel()

	c := Default()

	_, err := c.Metric(DatasetOWIDEnergy, "not_a_real_metric")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrUnknownMetric)
	require.False(t, errors.Is(err, ErrUnknownDataset))

	var unknownErr *UnknownMetricError
	require.ErrorAs(t, err, &unknownErr)
	require.Equal(t, "not_a_real_metric", unknownErr.MetricID)
	require.Equal(t, DatasetOWIDEnergy, unknownErr.DatasetID)
	require.Len(t, unknownErr.Supported, 11)
	require.Contains(t, err.Error(), "solar_share_elec")
}

func TestVoltaic_Catalog_Metric_UnknownDataset(t *testing.T) {
	t.Parallel()

	c := Default()

	// Dataset existence is checked before metric existence.
	_, err := c.Metric("owid_co2", "energy_per_capita")
	require.ErrorIs(t, err, ErrUnknownDataset)
	require.False(t, errors.Is(err, ErrUnknownMetric))
}

func TestVoltaic_Catalog_MaybeMetric(t *testing.T) {
	t.Parallel()

	c := Default()

	spec, ok := c.MaybeMetric(DatasetOWIDEnergy, "wind_share_elec")
	require.True(t, ok)
	require.Equal(t, "wind_share_elec", spec.ID)

	// MaybeMetric returns the zero spec where Metric returns an error.
	spec, ok = c.MaybeMetric(DatasetOWIDEnergy, "not_a_real_metric")
	require.False(t, ok)
	require.Equal(t, MetricSpec{}, spec)

	_, err := c.Metric(DatasetOWIDEnergy, "not_a_real_metric")
	require.Error(t, err)

	spec, ok = c.MaybeMetric("owid_co2", "wind_share_elec")
	require.False(t, ok)
	require.Equal(t, MetricSpec{}, spec)
}

func TestVoltaic_Catalog_Metrics(t *testing.T) {
	t.Parallel()

	c := Default()

	specs, err := c.Metrics(DatasetOWIDEnergy)
	require.NoError(t, err)
	require.Len(t, specs, 11)
	for i := 1; i < len(specs); i++ {
		require.Less(t, specs[i-1].ID, specs[i].ID)
	}
	for _, spec := range specs {
		require.NotEmpty(t, spec.Column)
		require.NotEmpty(t, spec.Unit)
		require.NotEmpty(t, spec.Description)
		require.NotEmpty(t, spec.Category)
	}

	_, err = c.Metrics("owid_co2")
	require.ErrorIs(t, err, ErrUnknownDataset)
}

func TestVoltaic_Catalog_New_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		datasets map[string][]MetricSpec
		wantErr  string
	}{
		{
			name: "duplicate metric id",
			datasets: map[string][]MetricSpec{
				"ds": {
					{ID: "a", Column: "a"},
					{ID: "a", Column: "b"},
				},
			},
			wantErr: "duplicate metric id",
		},
		{
			name: "missing metric id",
			datasets: map[string][]MetricSpec{
				"ds": {{Column: "a"}},
			},
			wantErr: "metric id is required",
		},
		{
			name: "missing column",
			datasets: map[string][]MetricSpec{
				"ds": {{ID: "a"}},
			},
			wantErr: "column is required",
		},
		{
			name: "empty dataset id",
			datasets: map[string][]MetricSpec{
				"": {{ID: "a", Column: "a"}},
			},
			wantErr: "dataset id is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := New(tt.datasets)
			require.Error(t, err)
			require.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
