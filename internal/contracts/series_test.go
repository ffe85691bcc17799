package contracts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func TestNewSeries_SortsAndDedupes(t *testing.T) {
	s := NewSeries("PETR4.SA", []Row{
		{Date: day(3), Close: 3},
		{Date: day(1), Close: 1},
		{Date: day(2), Close: 2},
		{Date: day(2), Close: 22},
	})

	require.Equal(t, 3, s.Len())
	assert.Equal(t, day(1), s.Rows[0].Date)
	assert.Equal(t, 22.0, s.Rows[1].Close, "later duplicate wins")
	assert.Equal(t, day(3), s.Rows[2].Date)
}

func TestDataSeries_Last(t *testing.T) {
	var empty *DataSeries
	_, ok := empty.Last()
	assert.False(t, ok)
	assert.True(t, empty.IsEmpty())

	s := NewSeries("X", []Row{{Date: day(1), Close: 1}, {Date: day(2), Close: 2}})
	last, ok := s.Last()
	require.True(t, ok)
	assert.Equal(t, 2.0, last.Close)
}

func TestDataSeries_CloneIsDeep(t *testing.T) {
	s := NewSeries("X", []Row{{Date: day(1), Close: 1}})
	s.Derived = map[string][]float64{DerivedSMA50: {Null()}}

	c := s.Clone()
	c.Rows[0].Close = 99
	c.Derived[DerivedSMA50][0] = 5

	assert.Equal(t, 1.0, s.Rows[0].Close)
	assert.True(t, IsNull(s.Derived[DerivedSMA50][0]))
}

func TestDataSeries_DerivedAt(t *testing.T) {
	s := NewSeries("X", []Row{{Date: day(1)}})
	assert.True(t, IsNull(s.DerivedAt(DerivedSMA50, 0)))

	s.Derived = map[string][]float64{DerivedSMA50: {4.5}}
	assert.Equal(t, 4.5, s.DerivedAt(DerivedSMA50, 0))
	assert.True(t, IsNull(s.DerivedAt(DerivedSMA50, 1)))
}

func TestRow_NullChecks(t *testing.T) {
	r := Row{Open: 1, High: 2, Low: 1, Close: 2, Volume: 100}
	assert.False(t, r.HasNulls())
	assert.True(t, r.Priced())

	r.Volume = Null()
	assert.True(t, r.HasNulls())
	assert.True(t, r.Priced())

	r.Open = Null()
	assert.False(t, r.Priced())
}

func TestBatch_SymbolsAndWithout(t *testing.T) {
	b := Batch{
		"VALE3.SA": NewSeries("VALE3.SA", nil),
		"ABEV3.SA": NewSeries("ABEV3.SA", nil),
		"PETR4.SA": NewSeries("PETR4.SA", nil),
	}

	assert.Equal(t, []string{"ABEV3.SA", "PETR4.SA", "VALE3.SA"}, b.Symbols())

	w := b.Without("PETR4.SA")
	assert.Equal(t, []string{"ABEV3.SA", "VALE3.SA"}, w.Symbols())
	assert.Len(t, b, 3, "original untouched")
}

func TestDateRange(t *testing.T) {
	rng := NewDateRange(time.Date(2024, 1, 1, 15, 30, 0, 0, time.UTC), day(7))
	require.NoError(t, rng.Validate())
	assert.Equal(t, 7, rng.Days())
	assert.True(t, rng.Contains(day(1)))
	assert.True(t, rng.Contains(day(7).Add(23*time.Hour)))
	assert.False(t, rng.Contains(day(8)))
	assert.Equal(t, "2024-01-01..2024-01-07", rng.String())

	bad := NewDateRange(day(7), day(1))
	err := bad.Validate()
	require.Error(t, err)
	assert.True(t, IsConfiguration(err))

	assert.Error(t, DateRange{}.Validate())
}

func TestParseDateRange(t *testing.T) {
	rng, err := ParseDateRange("2024-01-01", "2024-01-31")
	require.NoError(t, err)
	assert.Equal(t, 31, rng.Days())

	_, err = ParseDateRange("2024/01/01", "2024-01-31")
	assert.Error(t, err)
}

func TestLookbackRange(t *testing.T) {
	rng := LookbackRange(time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC), 7)
	assert.Equal(t, time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC), rng.From)
	assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), rng.To)
}

func TestPartitionKey_Path(t *testing.T) {
	k := PartitionKey{Symbol: "PETR4.SA", Date: day(15)}
	assert.Equal(t, "PETR4.SA/2024-01-15.csv", k.Path())

	parsed, err := ParsePartitionPath(k.Path())
	require.NoError(t, err)
	assert.Equal(t, k, parsed)

	_, err = ParsePartitionPath("no-slash.csv")
	assert.Error(t, err)
	_, err = ParsePartitionPath("X/not-a-date.csv")
	assert.Error(t, err)
}
