package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVoltaic_Ingest_InferSchema(t *testing.T) {
	t.Parallel()

	// Columns exercise the promotion ladder: pure int, int widened to
	// float, text, empty-then-int, and never populated.
	csvData := strings.Join([]string{
		"country,year,energy_per_capita,iso_code,sparse,empty",
		"Germany,2000,45000,DEU,,",
		"Germany,2001,45200.5,DEU,7,",
		"Australia,2000,60000,AUS,,",
	}, "\n") + "\n"

	cols, rows, err := InferSchema(strings.NewReader(csvData))
	require.NoError(t, err)
	require.Equal(t, 3, rows)
	require.Equal(t, []Column{
		{Name: "country", Kind: KindString},
		{Name: "year", Kind: KindInt64},
		{Name: "energy_per_capita", Kind: KindFloat64},
		{Name: "iso_code", Kind: KindString},
		{Name: "sparse", Kind: KindInt64},
		{Name: "empty", Kind: KindString},
	}, cols)
}

func TestVoltaic_Ingest_InferSchema_Errors(t *testing.T) {
	t.Parallel()

	_, _, err := InferSchema(strings.NewReader(""))
	require.ErrorContains(t, err, "csv is empty")

	_, _, err = InferSchema(strings.NewReader("country,,year\n"))
	require.ErrorContains(t, err, "empty name")

	_, _, err = InferSchema(strings.NewReader("coun`try,year\n"))
	require.ErrorContains(t, err, "unsupported characters")
}

func TestVoltaic_Ingest_ParseValue(t *testing.T) {
	t.Parallel()

	v, err := ParseValue(KindInt64, "2001")
	require.NoError(t, err)
	require.Equal(t, int64(2001), v)

	v, err = ParseValue(KindFloat64, "45200.5")
	require.NoError(t, err)
	require.Equal(t, 45200.5, v)

	// Float columns accept integral cells.
	v, err = ParseValue(KindFloat64, "45000")
	require.NoError(t, err)
	require.Equal(t, 45000.0, v)

	v, err = ParseValue(KindString, "Germany")
	require.NoError(t, err)
	require.Equal(t, "Germany", v)

	// Empty cells are NULL for every kind.
	for _, kind := range []ColumnKind{KindInt64, KindFloat64, KindString} {
		v, err = ParseValue(kind, "")
		require.NoError(t, err)
		require.Nil(t, v)
	}

	_, err = ParseValue(KindInt64, "abc")
	require.ErrorContains(t, err, "failed to parse")
}

func TestVoltaic_Ingest_ColumnKind_ClickHouseType(t *testing.T) {
	t.Parallel()

	require.Equal(t, "Nullable(Int64)", KindInt64.ClickHouseType())
	require.Equal(t, "Nullable(Float64)", KindFloat64.ClickHouseType())
	require.Equal(t, "Nullable(String)", KindString.ClickHouseType())
	require.Equal(t, "Nullable(String)", KindUnknown.ClickHouseType())
}
