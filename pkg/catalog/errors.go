package catalog

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownDataset matches any UnknownDatasetError via errors.Is.
	ErrUnknownDataset = errors.New("unknown dataset")
	// ErrUnknownMetric matches any UnknownMetricError via errors.Is.
	ErrUnknownMetric = errors.New("unknown metric")
)

// UnknownDatasetError reports a lookup against a dataset the catalog does not
// carry. Supported lists the valid dataset IDs so the caller can relay them.
type UnknownDatasetError struct {
	DatasetID string
	Supported []string
}

func (e *UnknownDatasetError) Error() string {
	return fmt.Sprintf("unknown dataset %q, supported: [%s]", e.DatasetID, strings.Join(e.Supported, ", "))
}

func (e *UnknownDatasetError) Is(target error) bool {
	return target == ErrUnknownDataset
}

// UnknownMetricError reports a metric lookup miss within a known dataset.
// Supported lists the valid metric IDs for that dataset.
type UnknownMetricError struct {
	DatasetID string
	MetricID  string
	Supported []string
}

func (e *UnknownMetricError) Error() string {
	return fmt.Sprintf("unknown metric %q for dataset %q, supported: [%s]", e.MetricID, e.DatasetID, strings.Join(e.Supported, ", "))
}

func (e *UnknownMetricError) Is(target error) bool {
	return target == ErrUnknownMetric
}
