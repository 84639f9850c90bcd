package plan

import "fmt"

// View tags on the wire.
const (
	viewIDTimeseries = "timeseries"
	viewIDSummary    = "summary"
	viewTypeLine     = "line"
	viewTypeBar      = "bar"
)

// View is one chart shape in a plan. The set of implementations is closed:
// LineView and BarView only. Consumers switch over the concrete types and
// treat any other implementation as a defect, which the unexported marker
// method makes impossible to construct outside this package.
type View interface {
	ViewID() string
	ViewType() string
	isView()
}

// LineView is the mandatory time-series line chart. It has no parameters and
// is always the first view of a plan.
type LineView struct{}

func (LineView) ViewID() string   { return viewIDTimeseries }
func (LineView) ViewType() string { return viewTypeLine }
func (LineView) isView()          {}

// BarMode selects how the summary bar chart aggregates the year range.
type BarMode string

const (
	// BarModeLatestYear charts each country's value at the latest year in range.
	BarModeLatestYear BarMode = "latest_year"
	// BarModeDelta charts the change between the first and last year in range.
	BarModeDelta BarMode = "delta"
)

// BarView is the optional summary bar chart. Mode is required on the wire.
type BarView struct {
	Mode BarMode
}

func (BarView) ViewID() string   { return viewIDSummary }
func (BarView) ViewType() string { return viewTypeBar }
func (BarView) isView()          {}

// ViewSpec is the wire form of a view: a (view_id, type) tag pair plus the
// bar mode. Line views carry no mode and omit the field when marshaled.
type ViewSpec struct {
	ViewID string  `json:"view_id"`
	Type   string  `json:"type"`
	Mode   BarMode `json:"mode,omitempty"`
}

// decode maps a wire view to its variant. An unrecognized tag pair is a
// ShapeError; a recognized bar view with a bad mode is a FieldError. A mode
// on a line view is ignored rather than rejected.
func (s ViewSpec) decode(index int) (View, error) {
	switch {
	case s.ViewID == viewIDTimeseries && s.Type == viewTypeLine:
		return LineView{}, nil
	case s.ViewID == viewIDSummary && s.Type == viewTypeBar:
		switch s.Mode {
		case BarModeLatestYear, BarModeDelta:
			return BarView{Mode: s.Mode}, nil
		default:
			return nil, &FieldError{
				Field:  fmt.Sprintf("views[%d].mode", index),
				Value:  string(s.Mode),
				Reason: `bar view mode must be "latest_year" or "delta"`,
			}
		}
	default:
		return nil, &ShapeError{
			Value:  fmt.Sprintf("view_id=%q type=%q", s.ViewID, s.Type),
			Reason: fmt.Sprintf("views[%d] has an unrecognized view tag", index),
		}
	}
}

func specOf(v View) ViewSpec {
	switch v := v.(type) {
	case LineView:
		return ViewSpec{ViewID: v.ViewID(), Type: v.ViewType()}
	case BarView:
		return ViewSpec{ViewID: v.ViewID(), Type: v.ViewType(), Mode: v.Mode}
	default:
		panic(fmt.Sprintf("unrecognized view %T", v))
	}
}
