package dashboard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestResolveDateRangeWinsOverYear(t *testing.T) {
	rng := Filter{
		Year:      2023,
		Month:     7,
		StartDate: "2025-03-01",
		EndDate:   "2025-03-31",
	}.Resolve()

	require.NotNil(t, rng)
	require.Equal(t, time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC), rng.From)
	require.Equal(t, 2025, rng.To.Year())
	require.Equal(t, time.March, rng.To.Month())
	require.Equal(t, 31, rng.To.Day())
	require.Equal(t, 23, rng.To.Hour())
}

func TestResolveYearAndMonthWindow(t *testing.T) {
	rng := Filter{Year: 2024, Month: 2}.Resolve()

	require.NotNil(t, rng)
	require.Equal(t, time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC), rng.From)
	require.Equal(t, 29, rng.To.Day())
}

func TestResolveYearOnlyCoversWholeYear(t *testing.T) {
	rng := Filter{Year: 2025, Month: 13}.Resolve()

	require.NotNil(t, rng)
	require.Equal(t, time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC), rng.From)
	require.Equal(t, time.December, rng.To.Month())
	require.Equal(t, 31, rng.To.Day())
}

func TestResolveEmptyFilterIsAllTime(t *testing.T) {
	require.Nil(t, Filter{}.Resolve())
}

func TestResolveMalformedDatesFallThrough(t *testing.T) {
	rng := Filter{StartDate: "not-a-date", EndDate: "2025-03-31", Year: 2024}.Resolve()

	require.NotNil(t, rng)
	require.Equal(t, 2024, rng.From.Year())
	require.Equal(t, time.January, rng.From.Month())
}

func TestResolvePartialRangeFallsThrough(t *testing.T) {
	require.Nil(t, Filter{StartDate: "2025-03-01"}.Resolve())
}

func TestResolveAcceptsRFC3339(t *testing.T) {
	rng := Filter{
		StartDate: "2025-03-01T10:30:00Z",
		EndDate:   "2025-03-02T04:00:00Z",
	}.Resolve()

	require.NotNil(t, rng)
	require.Equal(t, time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC), rng.From)
	require.Equal(t, 2, rng.To.Day())
	require.Equal(t, 23, rng.To.Hour())
}

func TestRangeKey(t *testing.T) {
	var all *Range
	require.Equal(t, "all", all.Key())

	a := Filter{Year: 2024}.Resolve()
	b := Filter{Year: 2025}.Resolve()
	require.NotEqual(t, a.Key(), b.Key())
	require.Equal(t, a.Key(), Filter{Year: 2024}.Resolve().Key())
}
