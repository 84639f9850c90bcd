// Package catalog holds the curated metric catalog the planner selects from.
//
// The catalog is pure data: a metric is a row in a table, not a branch in
// code. Planners pick stable metric IDs; the catalog maps them to the
// physical column in the loaded dataset, so OWID column renames are a data
// change here rather than a planner change.
package catalog

import (
	"fmt"
	"sort"
)

// DatasetOWIDEnergy is the only dataset supported in phase 1.
const DatasetOWIDEnergy = "owid_energy"

// MetricSpec describes one curated metric.
type MetricSpec struct {
	// ID is the stable identifier planners use to select the metric.
	ID string `json:"metric_id"`
	// Column is the physical column name in the loaded dataset table.
	Column string `json:"column"`
	// Unit is the human-readable unit for narratives and UI.
	Unit string `json:"unit"`
	// Description is the human-readable description for narratives and UI.
	Description string `json:"description"`
	// Category groups metrics for presentation.
	Category string `json:"category"`
}

// Catalog maps dataset ID to metric ID to MetricSpec. It is built once and
// never mutated, so any number of goroutines may read it without
// synchronization.
type Catalog struct {
	datasets map[string]map[string]MetricSpec
}

// New builds a catalog from per-dataset metric lists. Metric IDs must be
// unique within a dataset and every spec must name its ID and column.
func New(datasets map[string][]MetricSpec) (*Catalog, error) {
	built := make(map[string]map[string]MetricSpec, len(datasets))
	for datasetID, specs := range datasets {
		if datasetID == "" {
			return nil, fmt.Errorf("dataset id is required")
		}
		metrics := make(map[string]MetricSpec, len(specs))
		for _, spec := range specs {
			if spec.ID == "" {
				return nil, fmt.Errorf("dataset %q: metric id is required", datasetID)
			}
			if spec.Column == "" {
				return nil, fmt.Errorf("dataset %q: metric %q: column is required", datasetID, spec.ID)
			}
			if _, exists := metrics[spec.ID]; exists {
				return nil, fmt.Errorf("dataset %q: duplicate metric id %q", datasetID, spec.ID)
			}
			metrics[spec.ID] = spec
		}
		built[datasetID] = metrics
	}
	return &Catalog{datasets: built}, nil
}

// DatasetIDs returns the supported dataset IDs in sorted order.
func (c *Catalog) DatasetIDs() []string {
	ids := make([]string, 0, len(c.datasets))
	for id := range c.datasets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// MetricIDs returns the metric IDs for a dataset in sorted order, or an
// UnknownDatasetError naming the supported datasets.
func (c *Catalog) MetricIDs(datasetID string) ([]string, error) {
	metrics, ok := c.datasets[datasetID]
	if !ok {
		return nil, &UnknownDatasetError{DatasetID: datasetID, Supported: c.DatasetIDs()}
	}
	ids := make([]string, 0, len(metrics))
	for id := range metrics {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Metrics returns the full MetricSpecs for a dataset, sorted by metric ID.
func (c *Catalog) Metrics(datasetID string) ([]MetricSpec, error) {
	ids, err := c.MetricIDs(datasetID)
	if err != nil {
		return nil, err
	}
	specs := make([]MetricSpec, 0, len(ids))
	for _, id := range ids {
		specs = append(specs, c.datasets[datasetID][id])
	}
	return specs, nil
}

// Metric resolves (dataset, metric) to a MetricSpec. It returns an
// UnknownDatasetError when the dataset is unrecognized and an
// UnknownMetricError when the dataset is known but the metric is not; both
// enumerate the supported set.
func (c *Catalog) Metric(datasetID, metricID string) (MetricSpec, error) {
	metrics, ok := c.datasets[datasetID]
	if !ok {
		return MetricSpec{}, &UnknownDatasetError{DatasetID: datasetID, Supported: c.DatasetIDs()}
	}
	spec, ok := metrics[metricID]
	if !ok {
		ids := make([]string, 0, len(metrics))
		for id := range metrics {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		return MetricSpec{}, &UnknownMetricError{DatasetID: datasetID, MetricID: metricID, Supported: ids}
	}
	return spec, nil
}

// MaybeMetric is the non-failing variant of Metric: it returns the zero
// MetricSpec and false for any lookup failure.
func (c *Catalog) MaybeMetric(datasetID, metricID string) (MetricSpec, bool) {
	spec, err := c.Metric(datasetID, metricID)
	if err != nil {
		return MetricSpec{}, false
	}
	return spec, true
}
