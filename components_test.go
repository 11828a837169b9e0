package ics

import (
	"errors"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetDuration(t *testing.T) {
	date := time.Date(2006, time.January, 2, 15, 4, 0, 0, time.UTC)
	duration := time.Duration(float64(time.Hour) * 2)

	testCases := []struct {
		name   string
		start  time.Time
		end    time.Time
		output string
	}{
		{
			name:  "test set duration - start",
			start: date,
			output: `BEGIN:VEVENT
UID:test-duration
DTSTART:20060102T150400Z
DTEND:20060102T170400Z
END:VEVENT
`,
		},
		{
			name: "test set duration - end",
			end:  date,
			output: `BEGIN:VEVENT
UID:test-duration
DTEND:20060102T150400Z
DTSTART:20060102T130400Z
END:VEVENT
`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			e := NewEvent("test-duration")
			if !tc.start.IsZero() {
				e.SetStartAt(tc.start)
			}
			if !tc.end.IsZero() {
				e.SetEndAt(tc.end)
			}
			err := e.SetDuration(duration)

			// we're not testing for encoding here so lets make the actual output line breaks == expected line breaks
			text := strings.ReplaceAll(e.Serialize(nil), "\r\n", "\n")

			assert.Equal(t, tc.output, text)
			assert.NoError(t, err)
		})
	}

	assert.True(t, errors.Is(NewEvent("empty").SetDuration(duration), ErrStartAndEndDateNotDefined))
}

func TestSetAllDay(t *testing.T) {
	date := time.Date(2006, time.January, 2, 15, 4, 0, 0, time.UTC)

	testCases := []struct {
		name     string
		start    time.Time
		end      time.Time
		duration time.Duration
		output   string
	}{
		{
			name:  "test set all day - start",
			start: date,
			output: `BEGIN:VEVENT
UID:test-allday
DTSTART;VALUE=DATE:20060102
END:VEVENT
`,
		},
		{
			name: "test set all day - end",
			end:  date,
			output: `BEGIN:VEVENT
UID:test-allday
DTEND;VALUE=DATE:20060102
END:VEVENT
`,
		},
		{
			name:     "test set all day - duration",
			start:    date,
			duration: time.Hour * 24,
			output: `BEGIN:VEVENT
UID:test-allday
DTSTART;VALUE=DATE:20060102
DTEND;VALUE=DATE:20060103
END:VEVENT
`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			e := NewEvent("test-allday")
			if !tc.start.IsZero() {
				e.SetAllDayStartAt(tc.start)
			}
			if !tc.end.IsZero() {
				e.SetAllDayEndAt(tc.end)
			}
			if tc.duration != 0 {
				err := e.SetDuration(tc.duration)
				assert.NoError(t, err)
			}

			text := strings.ReplaceAll(e.Serialize(nil), "\r\n", "\n")

			assert.Equal(t, tc.output, text)
		})
	}
}

func TestZonedDtStart(t *testing.T) {
	e := NewEvent("zoned")
	e.SetDtStart(NewZonedDateTime("Europe/Berlin", 2024, time.April, 2, 10, 0, 0))
	assert.Contains(t, e.Serialize(nil), "DTSTART;TZID=Europe/Berlin:20240402T100000\r\n")

	start, err := e.GetDtStart()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", start.TZID())

	at, err := e.GetStartAt()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.April, 2, 8, 0, 0, 0, time.UTC), at.UTC())
}

func TestGetLastModifiedAt(t *testing.T) {
	e := NewEvent("test-last-modified")
	lastModified := time.Unix(123456789, 0)
	e.SetModifiedAt(lastModified)
	got, err := e.GetLastModifiedAt()
	require.NoError(t, err)
	assert.True(t, got.Equal(lastModified), "got last modified = %q, want %q", got, lastModified)
}

func TestSetMailtoPrefix(t *testing.T) {
	e := NewEvent("test-set-organizer")

	e.SetOrganizer("org1@provider.com")
	assert.Contains(t, e.Serialize(nil), "ORGANIZER:mailto:org1@provider.com")

	e.SetOrganizer("mailto:org2@provider.com")
	assert.Contains(t, e.Serialize(nil), "ORGANIZER:mailto:org2@provider.com")

	e.AddAttendee("att1@provider.com")
	assert.Contains(t, e.Serialize(nil), "ATTENDEE:mailto:att1@provider.com")

	e.AddAttendee("mailto:att2@provider.com", WithCN("Att Two"))
	assert.Contains(t, e.Serialize(nil), "ATTENDEE;CN=Att Two:mailto:att2@provider.com")

	attendees := e.Attendees()
	require.Len(t, attendees, 2)
	assert.Equal(t, "att1@provider.com", attendees[0].Email())
	assert.Equal(t, "att2@provider.com", attendees[1].Email())
}

func TestAttendeeParticipationStatus(t *testing.T) {
	cal := loadCalendar(t, "testdata/serialization/input1.ics")
	attendees := cal.Events()[0].Attendees()
	require.Len(t, attendees, 1)
	assert.Equal(t, ParticipationStatusAccepted, attendees[0].ParticipationStatus())
	assert.Equal(t, "jane@example.com", attendees[0].Email())
}

func TestRemoveProperty(t *testing.T) {
	testCases := []struct {
		name   string
		output string
	}{
		{
			name: "test RemoveProperty - start",
			output: `BEGIN:VTODO
UID:test-removeproperty
X-TEST:42
END:VTODO
`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			e := NewTodo("test-removeproperty")
			e.AddProperty("X-TEST", "42")
			e.AddProperty("X-TESTREMOVE", "FOO")
			e.AddProperty("X-TESTREMOVE", "BAR")
			removed := e.RemoveProperty("X-TESTREMOVE")
			assert.Len(t, removed, 2)

			// adjust to expected linebreaks, since we're not testing the encoding
			text := strings.ReplaceAll(e.Serialize(nil), "\r\n", "\n")

			assert.Equal(t, tc.output, text)
		})
	}
}

func TestRemovePropertyByValue(t *testing.T) {
	e := NewEvent("test-remove-by-value")
	e.AddCategory("one")
	e.AddCategory("two")
	removed := e.RemovePropertyByValue(ComponentPropertyCategories, "one")
	require.Len(t, removed, 1)
	props := e.GetProperties(ComponentPropertyCategories)
	require.Len(t, props, 1)
	assert.Equal(t, "two", props[0].Value)

	e.ReplaceProperty(ComponentPropertyCategories, "three")
	props = e.GetProperties(ComponentPropertyCategories)
	require.Len(t, props, 1)
	assert.Equal(t, "three", props[0].Value)
}

func TestAttachments(t *testing.T) {
	e := NewEvent("test-attachment")
	e.AddAttachmentURL("http://example.com/attachment.txt", "text/plain")
	e.AddAttachmentBinary([]byte("hello"), "text/plain")

	text := e.Serialize(nil)
	assert.Contains(t, text, "ATTACH;FMTTYPE=text/plain:http://example.com/attachment.txt\r\n")
	assert.Contains(t, text, "ATTACH;ENCODING=BASE64;FMTTYPE=text/plain;VALUE=BINARY:aGVsbG8=\r\n")

	attachments := e.GetProperties(ComponentPropertyAttach)
	require.Len(t, attachments, 2)
	v, err := attachments[0].TypedValue()
	require.NoError(t, err)
	u, ok := v.(*url.URL)
	require.True(t, ok)
	assert.Equal(t, "example.com", u.Host)

	v, err = attachments[1].TypedValue()
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), v)
}

// Helper function to create a *time.Time from a string
func MustNewTime(value string) *time.Time {
	t, err := time.ParseInLocation(time.RFC3339, value, time.UTC)
	if err != nil {
		return nil
	}
	return &t
}

func TestIsDuring(t *testing.T) {
	tests := []struct {
		name           string
		startTime      *time.Time
		endTime        *time.Time
		duration       string
		pointInTime    time.Time
		expectedResult bool
		expectedError  error
		allDayStart    bool
		allDayEnd      bool
	}{
		{
			name:           "Valid start and end time",
			startTime:      MustNewTime("2024-10-15T09:00:00Z"),
			endTime:        MustNewTime("2024-10-15T17:00:00Z"),
			pointInTime:    time.Date(2024, 10, 15, 10, 0, 0, 0, time.UTC),
			expectedResult: true,
		},
		{
			name:           "Valid start time, no end, duration",
			startTime:      MustNewTime("2024-10-15T09:00:00Z"),
			duration:       "PT2H",
			pointInTime:    time.Date(2024, 10, 15, 10, 59, 0, 0, time.UTC),
			expectedResult: true,
		},
		{
			name:           "No start or end time",
			pointInTime:    time.Date(2024, 10, 15, 10, 0, 0, 0, time.UTC),
			expectedResult: false,
			expectedError:  ErrStartAndEndDateNotDefined,
		},
		{
			name:           "All-day event",
			startTime:      MustNewTime("2024-10-15T00:00:00Z"),
			endTime:        MustNewTime("2024-10-15T23:59:59Z"),
			pointInTime:    time.Date(2024, 10, 15, 12, 0, 0, 0, time.UTC),
			expectedResult: true,
			allDayStart:    true,
			allDayEnd:      true,
		},
		{
			name:           "Point outside event duration",
			startTime:      MustNewTime("2024-10-15T09:00:00Z"),
			endTime:        MustNewTime("2024-10-15T17:00:00Z"),
			pointInTime:    time.Date(2024, 10, 15, 18, 0, 0, 0, time.UTC),
			expectedResult: false,
		},
		{
			name:           "End is exclusive",
			startTime:      MustNewTime("2024-10-15T09:00:00Z"),
			endTime:        MustNewTime("2024-10-15T17:00:00Z"),
			pointInTime:    time.Date(2024, 10, 15, 17, 0, 0, 0, time.UTC),
			expectedResult: false,
		},
		{
			name:           "All-day start with valid end time",
			startTime:      MustNewTime("2024-10-15T00:00:00Z"),
			endTime:        MustNewTime("2024-10-15T17:00:00Z"),
			pointInTime:    time.Date(2024, 10, 15, 12, 0, 0, 0, time.UTC),
			expectedResult: true,
			allDayStart:    true,
		},
		{
			name:           "All-day end with valid start time",
			startTime:      MustNewTime("2024-10-15T09:00:00Z"),
			endTime:        MustNewTime("2024-10-15T23:59:59Z"),
			pointInTime:    time.Date(2024, 10, 15, 22, 0, 0, 0, time.UTC),
			expectedResult: true,
			allDayEnd:      true,
		},
		{
			name:           "Duration 1 day, point within event",
			startTime:      MustNewTime("2024-10-15T09:00:00Z"),
			duration:       "P1D",
			pointInTime:    time.Date(2024, 10, 16, 8, 0, 0, 0, time.UTC),
			expectedResult: true,
		},
		{
			name:           "Duration 2 hours, point after event",
			startTime:      MustNewTime("2024-10-15T09:00:00Z"),
			duration:       "PT2H",
			pointInTime:    time.Date(2024, 10, 15, 12, 0, 0, 0, time.UTC),
			expectedResult: false,
		},
		{
			name:           "All-day start without end covers the day",
			startTime:      MustNewTime("2024-10-15T00:00:00Z"),
			pointInTime:    time.Date(2024, 10, 15, 23, 0, 0, 0, time.UTC),
			expectedResult: true,
			allDayStart:    true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb := &ComponentBase{}
			if tt.startTime != nil {
				if tt.allDayStart {
					cb.SetAllDayStartAt(*tt.startTime)
				} else {
					cb.SetStartAt(*tt.startTime)
				}
			}
			if tt.endTime != nil {
				if tt.allDayEnd {
					cb.SetAllDayEndAt(*tt.endTime)
				} else {
					cb.SetEndAt(*tt.endTime)
				}
			}
			if tt.duration != "" {
				cb.SetProperty(ComponentPropertyDuration, tt.duration)
			}
			result, err := cb.IsDuring(tt.pointInTime, utcResolver)

			if tt.expectedError != nil {
				assert.True(t, errors.Is(err, tt.expectedError), "expected error: %v, got: %v", tt.expectedError, err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.expectedResult, result)
		})
	}
}

func TestAlarmTriggers(t *testing.T) {
	e := NewEvent("test-alarm")
	a := e.AddAlarm()
	a.SetAction(ActionDisplay)
	a.SetTriggerDuration(-15*time.Minute, false)
	a.SetRepeat(2, 5*time.Minute)

	b := NewAlarm()
	b.SetAction(ActionDisplay)
	b.SetTriggerDuration(-5*time.Minute, true)
	e.AddVAlarm(b)

	text := strings.ReplaceAll(e.Serialize(nil), "\r\n", "\n")
	assert.Equal(t, `BEGIN:VEVENT
UID:test-alarm
BEGIN:VALARM
ACTION:DISPLAY
TRIGGER:-PT15M
REPEAT:2
DURATION:PT5M
END:VALARM
BEGIN:VALARM
ACTION:DISPLAY
TRIGGER;RELATED=END:-PT5M
END:VALARM
END:VEVENT
`, text)

	require.Len(t, e.Alarms(), 2)
	trigger, err := e.Alarms()[0].GetTrigger()
	require.NoError(t, err)
	assert.Equal(t, AlarmTrigger{Offset: -15 * time.Minute}, trigger)
	n, every, err := e.Alarms()[0].GetRepetition()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 5*time.Minute, every)

	trigger, err = e.Alarms()[1].GetTrigger()
	require.NoError(t, err)
	assert.True(t, trigger.RelatedToEnd)

	abs := NewAlarm()
	abs.SetTrigger("20240101T080000Z", WithValue(string(ValueDataTypeDateTime)))
	trigger, err = abs.GetTrigger()
	require.NoError(t, err)
	assert.Equal(t, NewUTCDateTime(2024, time.January, 1, 8, 0, 0), trigger.Absolute)

	bad := NewAlarm()
	bad.SetProperty(ComponentPropertyRepeat, "often")
	bad.SetProperty(ComponentPropertyDuration, "PT5M")
	_, _, err = bad.GetRepetition()
	var ve *ValueError
	assert.True(t, errors.As(err, &ve))
}

func TestTodoRecurrence(t *testing.T) {
	todo := NewTodo("todo@example.com")
	todo.SetDtStart(NewUTCDateTime(2024, time.June, 3, 9, 0, 0))
	todo.SetDueAt(time.Date(2024, time.June, 3, 11, 0, 0, 0, time.UTC))
	todo.AddRrule("FREQ=WEEKLY;COUNT=2")

	rc, err := todo.Recurrence(utcResolver)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Hour, rc.Duration())
	periods, err := rc.Evaluate(utc(2024, time.June, 1, 0, 0), utc(2024, time.July, 1, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, []string{"20240603T090000Z/PT2H", "20240610T090000Z/PT2H"}, periodStrings(periods))

	require.NoError(t, todo.SetDuration(30*time.Minute))
	due, err := todo.GetDueAt()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, time.June, 3, 9, 30, 0, 0, time.UTC), due)

	_, err = NewTodo("no-start").Recurrence()
	assert.True(t, errors.Is(err, ErrorPropertyNotFound))
}

func TestJournalRecurrence(t *testing.T) {
	journal := NewJournal("journal@example.com")
	journal.SetDtStart(NewDate(2024, time.June, 1))
	journal.AddRecurrenceRule(mustRule(t, "FREQ=DAILY;COUNT=3"))
	journal.AddExceptionDates(PeriodList{NewStartPeriod(NewDate(2024, time.June, 2))})
	assert.Contains(t, journal.Serialize(nil), "EXDATE;VALUE=DATE:20240602\r\n")

	rc, err := journal.Recurrence(utcResolver)
	require.NoError(t, err)
	periods, err := rc.Evaluate(utc(2024, time.June, 1, 0, 0), utc(2024, time.July, 1, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, []string{"20240601/P1D", "20240603/P1D"}, periodStrings(periods))
}

func TestEventRecurrenceErrors(t *testing.T) {
	e := NewEvent("bad-rule")
	e.SetDtStart(NewUTCDateTime(2024, time.June, 1, 9, 0, 0))
	e.AddRrule("FREQ=SOMETIMES")
	_, err := e.Recurrence(utcResolver)
	var ve *ValueError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "RRULE", ve.Property)

	e = NewEvent("backwards")
	e.SetDtStart(NewUTCDateTime(2024, time.June, 1, 9, 0, 0))
	e.SetDtEnd(NewUTCDateTime(2024, time.June, 1, 8, 0, 0))
	_, err = e.Recurrence(utcResolver)
	assert.True(t, errors.Is(err, ErrPeriodEndBeforeStart))
}
