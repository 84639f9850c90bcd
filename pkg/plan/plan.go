// Package plan turns raw planner output into validated, immutable chart
// plans. Builder.Build is the only way to obtain a Plan: it runs per-field
// normalization and validation first, then cross-field checks on the
// normalized values, and either returns a fully valid Plan or an error
// naming the offending field and the value received. No partially valid
// plan is ever observable.
package plan

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/jonboulle/clockwork"
	"github.com/voltaicdata/voltaic/pkg/catalog"
)

// Validation bounds for planner input.
const (
	questionMinLen = 5
	questionMaxLen = 500
	metricIDMinLen = 3
	metricIDMaxLen = 80
	yearMin        = 1800
	yearMax        = 2500
	countriesMax   = 3
	viewsMax       = 2
	notesMaxLen    = 500
)

var iso3Re = regexp.MustCompile(`^[A-Z]{3}$`)

// Input is the wire form of a plan request, as produced by a planner. A nil
// Views slice means the field was omitted and defaults to a single line
// view; an explicitly empty slice is rejected.
type Input struct {
	DatasetID string     `json:"dataset_id"`
	Question  string     `json:"question"`
	MetricID  string     `json:"metric_id"`
	Countries []string   `json:"countries"`
	YearStart int        `json:"year_start"`
	YearEnd   int        `json:"year_end"`
	Views     []ViewSpec `json:"views,omitempty"`
	Notes     *string    `json:"notes,omitempty"`
}

type BuilderConfig struct {
	Logger  *slog.Logger
	Catalog *catalog.Catalog

	// Clock supplies "now" for the future-year check. Defaults to the real
	// clock; tests pin it with a fake.
	Clock clockwork.Clock
}

func (c *BuilderConfig) Validate() error {
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	if c.Catalog == nil {
		return errors.New("catalog is required")
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	return nil
}

// Builder validates planner input against a fixed catalog and clock. It is
// stateless after construction and safe for concurrent use.
type Builder struct {
	cfg BuilderConfig
}

func NewBuilder(cfg BuilderConfig) (*Builder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Builder{cfg: cfg}, nil
}

// Build runs the two-stage validation pipeline over in. Stage 1 checks each
// field on its own and normalizes countries and views; stage 2 runs only
// when every stage 1 check passed and enforces the cross-field rules on the
// normalized values. year_end is compared against the calendar year of the
// configured clock at the moment of the call, so the same input can validate
// today and fail next year.
func (b *Builder) Build(in Input) (*Plan, error) {
	// Stage 1: per-field checks. Fields are independent; the first failure
	// aborts construction.
	if _, err := b.cfg.Catalog.MetricIDs(in.DatasetID); err != nil {
		return nil, err
	}
	if err := validateRuneLen("question", in.Question, questionMinLen, questionMaxLen); err != nil {
		return nil, err
	}
	if err := validateRuneLen("metric_id", in.MetricID, metricIDMinLen, metricIDMaxLen); err != nil {
		return nil, err
	}
	metric, err := b.cfg.Catalog.Metric(in.DatasetID, in.MetricID)
	if err != nil {
		return nil, err
	}
	countries, err := normalizeCountries(in.Countries)
	if err != nil {
		return nil, err
	}
	if err := validateYear("year_start", in.YearStart); err != nil {
		return nil, err
	}
	if err := validateYear("year_end", in.YearEnd); err != nil {
		return nil, err
	}
	views, err := decodeViews(in.Views)
	if err != nil {
		return nil, err
	}
	if in.Notes != nil {
		if err := validateRuneLen("notes", *in.Notes, 0, notesMaxLen); err != nil {
			return nil, err
		}
	}

	// Stage 2: cross-field rules over normalized values.
	if err := b.validateCrossField(in, views); err != nil {
		return nil, err
	}

	p := &Plan{
		datasetID: in.DatasetID,
		question:  in.Question,
		metricID:  in.MetricID,
		countries: countries,
		yearStart: in.YearStart,
		yearEnd:   in.YearEnd,
		views:     views,
		metric:    metric,
	}
	if in.Notes != nil {
		p.notes = *in.Notes
		p.hasNotes = true
	}

	b.cfg.Logger.Debug("built plan",
		"dataset", p.datasetID,
		"metric", p.metricID,
		"countries", p.countries,
		"year_start", p.yearStart,
		"year_end", p.yearEnd,
		"views", len(p.views),
	)
	return p, nil
}

func (b *Builder) validateCrossField(in Input, views []View) error {
	if in.YearStart > in.YearEnd {
		return &TemporalError{
			Field:  "year_start",
			Value:  strconv.Itoa(in.YearStart),
			Reason: fmt.Sprintf("must be less than or equal to year_end %d", in.YearEnd),
		}
	}
	currentYear := b.cfg.Clock.Now().UTC().Year()
	if in.YearEnd > currentYear {
		return &TemporalError{
			Field:  "year_end",
			Value:  strconv.Itoa(in.YearEnd),
			Reason: fmt.Sprintf("cannot be after current year %d", currentYear),
		}
	}
	if _, ok := views[0].(LineView); !ok {
		return &ShapeError{
			Value:  fmt.Sprintf("view_id=%q", views[0].ViewID()),
			Reason: "views[0] must be the timeseries line view",
		}
	}
	if len(views) == viewsMax {
		if _, ok := views[1].(BarView); !ok {
			return &ShapeError{
				Value:  fmt.Sprintf("view_id=%q", views[1].ViewID()),
				Reason: "views[1] must be the summary bar view",
			}
		}
	}
	return nil
}

func validateRuneLen(field, value string, minLen, maxLen int) error {
	if n := utf8.RuneCountInString(value); n < minLen || n > maxLen {
		return &FieldError{
			Field:  field,
			Value:  value,
			Reason: fmt.Sprintf("length must be between %d and %d characters, got %d", minLen, maxLen, n),
		}
	}
	return nil
}

func validateYear(field string, year int) error {
	if year < yearMin || year > yearMax {
		return &FieldError{
			Field:  field,
			Value:  strconv.Itoa(year),
			Reason: fmt.Sprintf("must be between %d and %d", yearMin, yearMax),
		}
	}
	return nil
}

// normalizeCountries trims and upper-cases each code, rejects anything that
// is not three ASCII letters, and drops duplicates while preserving
// first-seen order. The 1..3 cap applies to the deduplicated list, so a
// longer raw list with duplicates can still pass.
func normalizeCountries(raw []string) ([]string, error) {
	normalized := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, c := range raw {
		code := strings.ToUpper(strings.TrimSpace(c))
		if !iso3Re.MatchString(code) {
			return nil, &FieldError{
				Field:  "countries",
				Value:  c,
				Reason: `must be an ISO3 code like "USA"`,
			}
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		normalized = append(normalized, code)
	}
	if len(normalized) < 1 || len(normalized) > countriesMax {
		return nil, &FieldError{
			Field:  "countries",
			Value:  fmt.Sprintf("%v", raw),
			Reason: fmt.Sprintf("must contain between 1 and %d unique country codes, got %d", countriesMax, len(normalized)),
		}
	}
	return normalized, nil
}

func decodeViews(specs []ViewSpec) ([]View, error) {
	if specs == nil {
		return []View{LineView{}}, nil
	}
	if len(specs) < 1 || len(specs) > viewsMax {
		return nil, &ShapeError{
			Value:  fmt.Sprintf("%d views", len(specs)),
			Reason: fmt.Sprintf("sequence must contain between 1 and %d views", viewsMax),
		}
	}
	views := make([]View, 0, len(specs))
	for i, s := range specs {
		v, err := s.decode(i)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, nil
}

// Plan is a validated chart request. All fields are normalized and fixed at
// construction; accessors return copies, so a Plan may be shared by any
// number of goroutines.
type Plan struct {
	datasetID string
	question  string
	metricID  string
	countries []string
	yearStart int
	yearEnd   int
	views     []View
	notes     string
	hasNotes  bool
	metric    catalog.MetricSpec
}

func (p *Plan) DatasetID() string { return p.datasetID }
func (p *Plan) Question() string  { return p.question }
func (p *Plan) MetricID() string  { return p.metricID }
func (p *Plan) YearStart() int    { return p.yearStart }
func (p *Plan) YearEnd() int      { return p.yearEnd }

// Countries returns the normalized codes in first-seen order.
func (p *Plan) Countries() []string { return slices.Clone(p.countries) }

// Views returns the views in order: a line view first, optionally a bar view.
func (p *Plan) Views() []View { return slices.Clone(p.views) }

// Notes returns the free-text notes and whether they were set.
func (p *Plan) Notes() (string, bool) { return p.notes, p.hasNotes }

// Metric returns the resolved MetricSpec for the plan's metric. Resolution
// happened at construction, so this cannot fail once a Plan exists.
func (p *Plan) Metric() catalog.MetricSpec { return p.metric }

// Input returns the plan in wire form with all normalization applied.
// Building the result again under the same calendar year yields an equal
// Plan.
func (p *Plan) Input() Input {
	in := Input{
		DatasetID: p.datasetID,
		Question:  p.question,
		MetricID:  p.metricID,
		Countries: slices.Clone(p.countries),
		YearStart: p.yearStart,
		YearEnd:   p.yearEnd,
		Views:     make([]ViewSpec, 0, len(p.views)),
	}
	for _, v := range p.views {
		in.Views = append(in.Views, specOf(v))
	}
	if p.hasNotes {
		notes := p.notes
		in.Notes = &notes
	}
	return in
}

// MarshalJSON serializes the normalized wire form. There is no UnmarshalJSON:
// decoding goes through Input and Builder.Build, so a Plan cannot bypass
// validation.
func (p *Plan) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Input())
}
