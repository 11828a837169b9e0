package ics

import (
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDateTime(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		params   map[string][]string
		expected CalDateTime
	}{
		{name: "floating", text: "19980118T230000", expected: NewDateTime(1998, time.January, 18, 23, 0, 0)},
		{name: "utc", text: "19980119T070000Z", expected: NewUTCDateTime(1998, time.January, 19, 7, 0, 0)},
		{name: "zoned", text: "19980119T020000", params: map[string][]string{"TZID": {"America/New_York"}}, expected: NewZonedDateTime("America/New_York", 1998, time.January, 19, 2, 0, 0)},
		{name: "utc wins over tzid", text: "19980119T070000Z", params: map[string][]string{"TZID": {"America/New_York"}}, expected: NewUTCDateTime(1998, time.January, 19, 7, 0, 0)},
		{name: "date", text: "19970714", expected: NewDate(1997, time.July, 14)},
		{name: "value date drops time", text: "19970714T133000", params: map[string][]string{"VALUE": {"DATE"}}, expected: NewDate(1997, time.July, 14)},
		{name: "leap second", text: "19981231T235960Z", expected: NewUTCDateTime(1998, time.December, 31, 23, 59, 59)},
		{name: "leap day", text: "20240229", expected: NewDate(2024, time.February, 29)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseDateTime(tc.text, tc.params)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestParseDateTimeErrors(t *testing.T) {
	for _, text := range []string{"", "1997-07-14", "19971314", "20230229", "19970714T250000", "19970714T12", "garbage"} {
		_, err := ParseDateTime(text, nil)
		assert.Error(t, err, text)
	}
}

func TestParseDateTimeClampsYear(t *testing.T) {
	d, err := ParseDateTime("100000101T000000Z", nil)
	require.NoError(t, err)
	assert.Equal(t, 9999, d.Year())
	assert.Equal(t, time.December, d.Month())
}

func TestFormatDateTime(t *testing.T) {
	assert.Equal(t, "19980118T230000", FormatDateTime(NewDateTime(1998, time.January, 18, 23, 0, 0)))
	assert.Equal(t, "19980119T070000Z", FormatDateTime(NewUTCDateTime(1998, time.January, 19, 7, 0, 0)))
	assert.Equal(t, "19980119T020000", FormatDateTime(NewZonedDateTime("America/New_York", 1998, time.January, 19, 2, 0, 0)))
	assert.Equal(t, "19970714", FormatDateTime(NewDate(1997, time.July, 14)))

	params := func(d CalDateTime) map[string][]string {
		m := map[string][]string{}
		for _, p := range DateTimeParameters(d) {
			k, v := p.KeyValue()
			m[k] = v
		}
		return m
	}
	assert.Equal(t, map[string][]string{"VALUE": {"DATE"}}, params(NewDate(1997, time.July, 14)))
	assert.Equal(t, map[string][]string{"TZID": {"Europe/Berlin"}}, params(NewZonedDateTime("Europe/Berlin", 2024, time.May, 1, 9, 0, 0)))
	assert.Empty(t, params(NewUTCDateTime(2024, time.May, 1, 9, 0, 0)))
}

func TestCalDateTimeInstant(t *testing.T) {
	r := NewSystemResolver(time.UTC)

	ny := NewZonedDateTime("America/New_York", 2024, time.July, 4, 12, 0, 0)
	instant, err := ny.Instant(r)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.July, 4, 16, 0, 0, 0, time.UTC), instant)

	floating := NewDateTime(2024, time.July, 4, 12, 0, 0)
	instant, err = floating.Instant(r)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.July, 4, 12, 0, 0, 0, time.UTC), instant)

	berlin, err := NewUTCDateTime(2024, time.January, 1, 12, 0, 0).In(NewZonedDateTime("Europe/Berlin", 2000, 1, 1, 0, 0, 0), r)
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", berlin.TZID())
	assert.Equal(t, 13, berlin.Hour())

	_, err = NewZonedDateTime("Not/AZone", 2024, time.January, 1, 0, 0, 0).Instant(r)
	assert.Error(t, err)
}

func TestCalDateTimeCompare(t *testing.T) {
	r := NewSystemResolver(time.UTC)
	utc := NewUTCDateTime(2024, time.July, 4, 16, 0, 0)
	ny := NewZonedDateTime("America/New_York", 2024, time.July, 4, 12, 0, 0)
	assert.True(t, utc.Equal(ny, r))

	c, err := NewDate(2024, time.July, 4).Compare(utc, r)
	require.NoError(t, err)
	assert.Equal(t, 0, c, "a date compares as its day")

	c, err = NewDate(2024, time.July, 5).Compare(utc, r)
	require.NoError(t, err)
	assert.Equal(t, 1, c)

	c, err = NewDateTime(2024, time.July, 4, 9, 0, 0).Compare(NewDateTime(2024, time.July, 4, 10, 0, 0), nil)
	require.NoError(t, err)
	assert.Equal(t, -1, c)
}

func TestCalDateTimeFromTime(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	d := CalDateTimeFromTime(time.Date(2024, time.March, 1, 8, 30, 0, 0, loc))
	assert.Equal(t, "Europe/Berlin", d.TZID())
	assert.Equal(t, "20240301T083000", FormatDateTime(d))

	assert.True(t, CalDateTimeFromTime(time.Date(2024, time.March, 1, 8, 30, 0, 0, time.UTC)).IsUTC())
	assert.True(t, CalDateTimeFromTime(time.Date(2024, time.March, 1, 8, 30, 0, 0, time.Local)).IsFloating())
}

func TestDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		text string
	}{
		{d: 14 * 24 * time.Hour, text: "P2W"},
		{d: 13 * 24 * time.Hour, text: "P13D"},
		{d: 0, text: "P0D"},
		{d: -15 * time.Minute, text: "-PT15M"},
		{d: 25 * time.Hour, text: "P1DT1H"},
		{d: 15*24*time.Hour + 5*time.Hour + 20*time.Second, text: "P15DT5H20S"},
		{d: 90 * time.Second, text: "PT1M30S"},
	}
	for _, tc := range tests {
		t.Run(tc.text, func(t *testing.T) {
			assert.Equal(t, tc.text, FormatDuration(tc.d))
			d, err := ParseDuration(tc.text)
			require.NoError(t, err)
			assert.Equal(t, tc.d, d)
		})
	}

	d, err := ParseDuration("+P1DT0H0M0S")
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, d)

	for _, bad := range []string{"", "P", "PT", "1H", "P1H", "PT1D", "P-1D"} {
		_, err := ParseDuration(bad)
		assert.Error(t, err, bad)
	}
}

func TestUTCOffset(t *testing.T) {
	assert.Equal(t, "+0000", UTCOffset(0).String())
	assert.Equal(t, "-0500", UTCOffset(-5*time.Hour).String())
	assert.Equal(t, "+0530", UTCOffset(5*time.Hour+30*time.Minute).String())

	o, err := ParseUTCOffset("+005328")
	require.NoError(t, err)
	assert.Equal(t, UTCOffset(53*time.Minute+28*time.Second), o)
	assert.Equal(t, "+005328", o.String())

	o, err = ParseUTCOffset("-0800")
	require.NoError(t, err)
	assert.Equal(t, UTCOffset(-8*time.Hour), o)

	for _, bad := range []string{"0100", "+1", "+2400", "+0060", "+01:00"} {
		_, err := ParseUTCOffset(bad)
		assert.Error(t, err, bad)
	}
}

func TestGeo(t *testing.T) {
	g, err := ParseGeo("37.386013;-122.082932")
	require.NoError(t, err)
	assert.Equal(t, GeographicLocation{Latitude: 37.386013, Longitude: -122.082932}, g)
	assert.Equal(t, "37.386013;-122.082932", g.String())

	assert.Equal(t, "52.516312;13.377702", GeographicLocation{Latitude: 52.5163129, Longitude: 13.3777029}.String())
	assert.Equal(t, "1;0", GeographicLocation{Latitude: 1}.String())

	_, err = ParseGeo("37.386013")
	assert.Error(t, err)
	_, err = ParseGeo("north;east")
	assert.Error(t, err)
}

func TestRequestStatus(t *testing.T) {
	rs, err := ParseRequestStatus(`3.1;Invalid property value;DTSTART:96-Apr-01`)
	require.NoError(t, err)
	assert.Equal(t, StatusCode{3, 1}, rs.Code)
	assert.Equal(t, "Invalid property value", rs.Description)
	assert.Equal(t, "DTSTART:96-Apr-01", rs.ExtraData)
	assert.Equal(t, `3.1;Invalid property value;DTSTART:96-Apr-01`, rs.String())

	rs, err = ParseRequestStatus(`2.0;Success\; really`)
	require.NoError(t, err)
	assert.Equal(t, "Success; really", rs.Description)
	assert.Equal(t, "", rs.ExtraData)
	assert.Equal(t, `2.0;Success\; really`, rs.String())

	_, err = ParseRequestStatus("2.0")
	assert.Error(t, err)
	_, err = ParseStatusCode("2.x")
	assert.Error(t, err)
}

func TestWeekDay(t *testing.T) {
	for text, expected := range map[string]WeekDay{
		"MO":   {Weekday: time.Monday},
		"1TU":  {Offset: 1, Weekday: time.Tuesday},
		"+2WE": {Offset: 2, Weekday: time.Wednesday},
		"-1SU": {Offset: -1, Weekday: time.Sunday},
		"20mo": {Offset: 20, Weekday: time.Monday},
	} {
		wd, err := ParseWeekDay(text)
		require.NoError(t, err, text)
		assert.Equal(t, expected, wd, text)
	}
	assert.Equal(t, "-1SU", WeekDay{Offset: -1, Weekday: time.Sunday}.String())
	assert.Equal(t, "FR", WeekDay{Weekday: time.Friday}.String())

	for _, bad := range []string{"", "M", "XX", "aMO"} {
		_, err := ParseWeekDay(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseRecurrencePattern(t *testing.T) {
	rp, err := ParseRecurrencePattern("FREQ=MONTHLY;INTERVAL=2;COUNT=10;BYDAY=1SU,-1SU;WKST=SU")
	require.NoError(t, err)
	assert.Equal(t, FrequencyMonthly, rp.Frequency)
	assert.Equal(t, 2, rp.Interval)
	assert.Equal(t, mo.Some(10), rp.Count)
	assert.True(t, rp.Until.IsAbsent())
	assert.Equal(t, time.Sunday, rp.WeekStart)
	assert.Equal(t, []WeekDay{{Offset: 1, Weekday: time.Sunday}, {Offset: -1, Weekday: time.Sunday}}, rp.ByDay)
	assert.Equal(t, "FREQ=MONTHLY;INTERVAL=2;WKST=SU;COUNT=10;BYDAY=1SU,-1SU", rp.String())

	rp, err = ParseRecurrencePattern("FREQ=YEARLY;UNTIL=19971224T000000Z;BYMONTH=1;BYMONTHDAY=-1;BYHOUR=8,9;BYMINUTE=30;X-NAME=ignored")
	require.NoError(t, err)
	until, ok := rp.Until.Get()
	require.True(t, ok)
	assert.Equal(t, NewUTCDateTime(1997, time.December, 24, 0, 0, 0), until)
	assert.Equal(t, time.Monday, rp.WeekStart)
	assert.Equal(t, "FREQ=YEARLY;UNTIL=19971224T000000Z;BYHOUR=8,9;BYMINUTE=30;BYMONTH=1;BYMONTHDAY=-1", rp.String())
}

func TestParseRecurrencePatternErrors(t *testing.T) {
	_, err := ParseRecurrencePattern("COUNT=3")
	assert.True(t, errors.Is(err, ErrMissingFrequency))

	for _, bad := range []string{"FREQ=FORTNIGHTLY", "FREQ=DAILY;INTERVAL=0", "FREQ=DAILY;BYDAY=XX", "FREQ=DAILY;FOO=1", "FREQ=DAILY;COUNT", "FREQ=DAILY;BYHOUR=a"} {
		_, err := ParseRecurrencePattern(bad)
		assert.Error(t, err, bad)
	}
}

func TestRecurrencePatternValidate(t *testing.T) {
	rp := NewRecurrencePattern(FrequencyMonthly)
	rp.ByMonthDay = []int{0, 32, -31}
	rp.ByMonth = []int{13}
	rp.BySecond = []int{60}
	err := rp.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BYMONTHDAY: 0")
	assert.Contains(t, err.Error(), "BYMONTHDAY: 32")
	assert.Contains(t, err.Error(), "BYMONTH: 13")
	assert.NotContains(t, err.Error(), "BYSECOND")
	assert.NotContains(t, err.Error(), "-31")

	assert.NoError(t, NewRecurrencePattern(FrequencyDaily).Validate())
	assert.True(t, errors.Is(NewRecurrencePattern(FrequencyNone).Validate(), ErrMissingFrequency))
}

func TestRecurrencePatternRestriction(t *testing.T) {
	rp := NewRecurrencePattern(FrequencySecondly)
	rp.Restriction = RestrictHourly
	f, err := rp.effectiveFrequency()
	require.NoError(t, err)
	assert.Equal(t, FrequencyDaily, f)

	rp.EvaluationMode = ThrowException
	_, err = rp.effectiveFrequency()
	assert.True(t, errors.Is(err, ErrRestrictedFrequency))

	rp.Frequency = FrequencyWeekly
	f, err = rp.effectiveFrequency()
	require.NoError(t, err)
	assert.Equal(t, FrequencyWeekly, f)
}

func TestRecurrencePatternClone(t *testing.T) {
	rp := NewRecurrencePattern(FrequencyWeekly)
	rp.ByDay = []WeekDay{{Weekday: time.Monday}}
	c := rp.Clone()
	c.ByDay[0].Weekday = time.Friday
	assert.Equal(t, time.Monday, rp.ByDay[0].Weekday)
}

func TestTypedValue(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		expected any
	}{
		{name: "text", line: `SUMMARY:Meeting\, with notes`, expected: "Meeting, with notes"},
		{name: "unknown is text", line: `X-FOO:a\;b`, expected: "a;b"},
		{name: "integer", line: "PRIORITY:+5", expected: 5},
		{name: "duration", line: "DURATION:PT1H30M", expected: 90 * time.Minute},
		{name: "trigger date-time", line: "TRIGGER;VALUE=DATE-TIME:19980101T050000Z", expected: NewUTCDateTime(1998, time.January, 1, 5, 0, 0)},
		{name: "geo", line: "GEO:37.386013;-122.082932", expected: GeographicLocation{Latitude: 37.386013, Longitude: -122.082932}},
		{name: "offset", line: "TZOFFSETTO:-0400", expected: UTCOffset(-4 * time.Hour)},
		{name: "categories", line: `CATEGORIES:APPOINTMENT,EDUCATION\,TRAINING`, expected: []any{"APPOINTMENT", "EDUCATION,TRAINING"}},
		{name: "boolean extension", line: "X-FLAG;VALUE=BOOLEAN:true", expected: true},
		{name: "binary", line: "ATTACH;VALUE=BINARY;ENCODING=BASE64:aGVsbG8=", expected: []byte("hello")},
		{name: "date", line: "DTSTART;VALUE=DATE:20240101", expected: NewDate(2024, time.January, 1)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p, err := ParseProperty(ContentLine(tc.line))
			require.NoError(t, err)
			v, err := p.TypedValue()
			require.NoError(t, err)
			assert.Equal(t, tc.expected, v)
		})
	}
}

func TestTypedValueLists(t *testing.T) {
	p, err := ParseProperty("EXDATE;TZID=Europe/Berlin:20240101T090000,20240108T090000")
	require.NoError(t, err)
	v, err := p.TypedValue()
	require.NoError(t, err)
	pl, ok := v.(PeriodList)
	require.True(t, ok)
	require.Len(t, pl, 2)
	assert.Equal(t, NewZonedDateTime("Europe/Berlin", 2024, time.January, 8, 9, 0, 0), pl[1].Start())

	p, err = ParseProperty("RDATE;VALUE=PERIOD:19960403T020000Z/19960403T040000Z,19960404T010000Z/PT3H")
	require.NoError(t, err)
	v, err = p.TypedValue()
	require.NoError(t, err)
	pl = v.(PeriodList)
	require.Len(t, pl, 2)
	assert.Equal(t, 3*time.Hour, pl[1].Duration())
}

func TestTypedValueErrors(t *testing.T) {
	for _, line := range []string{"DTSTART:2024", "PRIORITY:high", "GEO:1", "RRULE:COUNT=1", "X-FLAG;VALUE=BOOLEAN:maybe"} {
		p, err := ParseProperty(ContentLine(line))
		require.NoError(t, err)
		_, err = p.TypedValue()
		var ve *ValueError
		require.True(t, errors.As(err, &ve), line)
		assert.Equal(t, p.IANAToken, ve.Property)
	}
}

func TestSetTypedValue(t *testing.T) {
	p := &BaseProperty{IANAToken: "DESCRIPTION", ICalParameters: map[string][]string{}}
	require.NoError(t, p.SetTypedValue("a, b; c"))
	assert.Equal(t, `a\, b\; c`, p.Value)

	p = &BaseProperty{IANAToken: "DURATION", ICalParameters: map[string][]string{}}
	require.NoError(t, p.SetTypedValue(45*time.Minute))
	assert.Equal(t, "PT45M", p.Value)
	assert.Error(t, p.SetTypedValue("forty five"))

	p = &BaseProperty{IANAToken: "URL", ICalParameters: map[string][]string{}}
	require.NoError(t, p.SetTypedValue(&url.URL{Scheme: "https", Host: "example.com", Path: "/cal"}))
	assert.Equal(t, "https://example.com/cal", p.Value)

	p = &BaseProperty{IANAToken: "RRULE", ICalParameters: map[string][]string{}}
	rp := NewRecurrencePattern(FrequencyDaily)
	rp.Count = mo.Some(3)
	require.NoError(t, p.SetTypedValue(rp))
	assert.Equal(t, "FREQ=DAILY;COUNT=3", p.Value)

	p = &BaseProperty{IANAToken: "EXDATE", ICalParameters: map[string][]string{}}
	require.NoError(t, p.SetTypedValue(PeriodList{NewStartPeriod(NewDate(2024, time.January, 1)), NewStartPeriod(NewDate(2024, time.January, 2))}))
	assert.Equal(t, "20240101,20240102", p.Value)
}

func TestValueTypeSelection(t *testing.T) {
	p := &BaseProperty{IANAToken: "DTSTART", ICalParameters: map[string][]string{"VALUE": {"date"}}}
	assert.Equal(t, ValueDataTypeDate, p.ValueType())
	p.ICalParameters["VALUE"] = []string{"PERIOD"}
	assert.Equal(t, ValueDataTypeDateTime, p.ValueType(), "DTSTART does not allow PERIOD")

	p = &BaseProperty{IANAToken: "X-ANYTHING", ICalParameters: map[string][]string{"VALUE": {"INTEGER"}}}
	assert.Equal(t, ValueDataTypeInteger, p.ValueType())

	_, ok := SerializerFor(ValueDataTypeTime)
	assert.False(t, ok)
}
