package ics

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePeriod(t *testing.T) {
	p, err := ParsePeriod("19970101T180000Z/19970102T070000Z", nil)
	require.NoError(t, err)
	assert.True(t, p.HasEnd())
	assert.Equal(t, 13*time.Hour, p.Duration())
	assert.Equal(t, "19970101T180000Z/19970102T070000Z", p.String())

	p, err = ParsePeriod("19970101T180000Z/PT5H30M", nil)
	require.NoError(t, err)
	assert.True(t, p.HasDuration())
	assert.Equal(t, NewUTCDateTime(1997, time.January, 1, 23, 30, 0), p.End())
	assert.Equal(t, "19970101T180000Z/PT5H30M", p.String())

	p, err = ParsePeriod("19970101", nil)
	require.NoError(t, err)
	assert.True(t, p.MatchesDateOnly)
	assert.False(t, p.HasEnd() || p.HasDuration())
	assert.Equal(t, p.Start(), p.End())

	_, err = ParsePeriod("19970102T070000Z/19970101T180000Z", nil)
	assert.True(t, errors.Is(err, ErrPeriodEndBeforeStart))
	_, err = ParsePeriod("19970101T180000Z/-PT1H", nil)
	assert.True(t, errors.Is(err, ErrNegativeDuration))
	_, err = ParsePeriod("19970101T180000Z/later", nil)
	assert.Error(t, err)
}

func TestParsePeriodList(t *testing.T) {
	pl, err := ParsePeriodList("19970101T180000Z/PT1H, 19970102T180000Z/PT1H,", nil)
	require.NoError(t, err)
	require.Len(t, pl, 2)
	assert.Equal(t, "19970101T180000Z/PT1H,19970102T180000Z/PT1H", pl.String())

	_, err = ParsePeriodList("19970101T180000Z,bogus", nil)
	assert.Error(t, err)
}

func TestPeriodEndAndDuration(t *testing.T) {
	start := NewDateTime(2024, time.May, 1, 9, 0, 0)
	p, err := NewPeriodWithDuration(start, 2*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, NewDateTime(2024, time.May, 1, 11, 0, 0), p.End())

	require.NoError(t, p.SetEnd(NewDateTime(2024, time.May, 1, 10, 0, 0)))
	assert.True(t, p.HasEnd())
	assert.False(t, p.HasDuration())
	assert.Equal(t, time.Hour, p.Duration())

	assert.True(t, errors.Is(p.SetStart(NewDateTime(2024, time.May, 1, 12, 0, 0)), ErrPeriodEndBeforeStart))
	require.NoError(t, p.SetStart(NewDateTime(2024, time.May, 1, 8, 0, 0)))
	assert.Equal(t, 2*time.Hour, p.Duration())

	assert.True(t, errors.Is(p.SetDuration(-time.Minute), ErrNegativeDuration))

	_, err = NewPeriod(start, NewDateTime(2024, time.April, 30, 9, 0, 0))
	assert.True(t, errors.Is(err, ErrPeriodEndBeforeStart))
}

func TestPeriodAcrossZones(t *testing.T) {
	start := NewZonedDateTime("America/New_York", 2024, time.July, 4, 12, 0, 0)
	end := NewUTCDateTime(2024, time.July, 4, 17, 30, 0)
	p, err := NewPeriod(start, end)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Minute, p.Duration())

	_, err = NewPeriod(start, NewUTCDateTime(2024, time.July, 4, 15, 0, 0))
	assert.True(t, errors.Is(err, ErrPeriodEndBeforeStart), "15:00Z is 11:00 in New York")
}

func TestPeriodEqual(t *testing.T) {
	r := NewSystemResolver(time.UTC)
	a, err := NewPeriodWithDuration(NewUTCDateTime(2024, time.July, 4, 16, 0, 0), time.Hour)
	require.NoError(t, err)
	b, err := NewPeriod(NewZonedDateTime("America/New_York", 2024, time.July, 4, 12, 0, 0), NewZonedDateTime("America/New_York", 2024, time.July, 4, 13, 0, 0))
	require.NoError(t, err)
	assert.True(t, a.Equal(b, r))

	c, err := NewPeriodWithDuration(NewUTCDateTime(2024, time.July, 4, 16, 0, 0), 2*time.Hour)
	require.NoError(t, err)
	assert.False(t, a.Equal(c, r))
	assert.True(t, a.Equal(NewStartPeriod(NewUTCDateTime(2024, time.July, 4, 16, 0, 0)), r), "a bare start matches any end")

	day := NewStartPeriod(NewDate(2024, time.July, 4))
	assert.True(t, day.Equal(a, r))
	assert.True(t, a.Equal(day, r))
	assert.False(t, NewStartPeriod(NewDate(2024, time.July, 5)).Equal(a, r))
}

func TestPeriodContainsAndCollides(t *testing.T) {
	r := NewSystemResolver(time.UTC)
	p, err := NewPeriod(NewUTCDateTime(2024, time.July, 4, 9, 0, 0), NewUTCDateTime(2024, time.July, 4, 10, 0, 0))
	require.NoError(t, err)

	assert.True(t, p.Contains(NewUTCDateTime(2024, time.July, 4, 9, 0, 0), r))
	assert.True(t, p.Contains(NewUTCDateTime(2024, time.July, 4, 9, 59, 59), r))
	assert.False(t, p.Contains(NewUTCDateTime(2024, time.July, 4, 10, 0, 0), r), "end is exclusive")
	assert.False(t, p.Contains(NewUTCDateTime(2024, time.July, 4, 8, 59, 59), r))

	day := NewStartPeriod(NewDate(2024, time.July, 4))
	assert.True(t, day.Contains(NewUTCDateTime(2024, time.July, 4, 23, 0, 0), r))

	q, err := NewPeriodWithDuration(NewUTCDateTime(2024, time.July, 4, 9, 30, 0), time.Hour)
	require.NoError(t, err)
	assert.True(t, p.Collides(q, r))
	assert.True(t, q.Collides(p, r))

	adjacent, err := NewPeriodWithDuration(NewUTCDateTime(2024, time.July, 4, 10, 0, 0), time.Hour)
	require.NoError(t, err)
	assert.False(t, p.Collides(adjacent, r))
}

func TestPeriodCompare(t *testing.T) {
	r := NewSystemResolver(time.UTC)
	a, _ := NewPeriodWithDuration(NewUTCDateTime(2024, time.July, 4, 9, 0, 0), time.Hour)
	b, _ := NewPeriodWithDuration(NewUTCDateTime(2024, time.July, 4, 9, 0, 0), 2*time.Hour)
	c, _ := NewPeriodWithDuration(NewUTCDateTime(2024, time.July, 4, 8, 0, 0), 5*time.Hour)

	n, err := a.Compare(b, r)
	require.NoError(t, err)
	assert.Equal(t, -1, n)
	n, err = a.Compare(c, r)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = a.Compare(a, r)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
