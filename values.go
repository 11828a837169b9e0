package ics

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	icalTimestampFormatUtc   = "20060102T150405Z"
	icalTimestampFormatLocal = "20060102T150405"
	icalDateFormatUtc        = "20060102Z"
	icalDateFormatLocal      = "20060102"
)

var timeStampVariations = regexp.MustCompile(`^([0-9]{4,})([0-9]{2})([0-9]{2})(?:T([0-9]{2})([0-9]{2})([0-9]{2})(Z)?)?(Z)?$`)

var maxCalDateTime = wallClock(9999, time.December, 31, 23, 59, 59)

// FormatDateTime renders d without its TZID, which belongs in a parameter.
func FormatDateTime(d CalDateTime) string {
	switch {
	case !d.hasTime:
		return d.wall.Format(icalDateFormatLocal)
	case d.utc:
		return d.wall.Format(icalTimestampFormatUtc)
	}
	return d.wall.Format(icalTimestampFormatLocal)
}

// DateTimeParameters returns the VALUE and TZID parameters describing d.
func DateTimeParameters(d CalDateTime) []PropertyParameter {
	var params []PropertyParameter
	if !d.hasTime {
		params = append(params, WithValue(string(ValueDataTypeDate)))
	}
	if d.hasTime && !d.utc && d.tzid != "" {
		params = append(params, WithTZID(d.tzid))
	}
	return params
}

// ParseDateTime decodes a DATE or DATE-TIME. A trailing Z means UTC, a TZID
// parameter a zoned value, neither a floating one. VALUE=DATE forces a date.
// Years past 9999 clamp to the largest representable value.
func ParseDateTime(text string, params map[string][]string) (CalDateTime, error) {
	m := timeStampVariations.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return CalDateTime{}, fmt.Errorf("time value not matched, got '%s'", text)
	}
	year, err := strconv.Atoi(m[1])
	if err != nil {
		return CalDateTime{}, fmt.Errorf("year in '%s': %w", text, err)
	}
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	d := CalDateTime{hasTime: m[4] != ""}
	if vt := params[string(ParameterValue)]; len(vt) > 0 && strings.EqualFold(vt[0], string(ValueDataTypeDate)) {
		d.hasTime = false
	}
	var hour, min, sec int
	if m[4] != "" {
		hour, _ = strconv.Atoi(m[4])
		min, _ = strconv.Atoi(m[5])
		sec, _ = strconv.Atoi(m[6])
	}
	if d.hasTime {
		switch {
		case m[7] == "Z" || m[8] == "Z":
			d.utc = true
		case len(params[string(ParameterTzid)]) > 0:
			d.tzid = params[string(ParameterTzid)][0]
		}
	}
	if year > 9999 {
		d.wall = maxCalDateTime
		if !d.hasTime {
			d.wall = truncateDay(maxCalDateTime)
		}
		return d, nil
	}
	if month < 1 || month > 12 {
		return CalDateTime{}, fmt.Errorf("month %d out of range in '%s'", month, text)
	}
	if day < 1 || day > daysIn(year, time.Month(month)) {
		return CalDateTime{}, fmt.Errorf("day %d out of range in '%s'", day, text)
	}
	if hour > 23 || min > 59 || sec > 60 {
		return CalDateTime{}, fmt.Errorf("time of day out of range in '%s'", text)
	}
	if sec == 60 {
		// leap second
		sec = 59
	}
	if !d.hasTime {
		hour, min, sec = 0, 0, 0
	}
	d.wall = wallClock(year, time.Month(month), day, hour, min, sec)
	return d, nil
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func isLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

func daysInYear(year int) int {
	if isLeap(year) {
		return 366
	}
	return 365
}

const week = 7 * 24 * time.Hour

// FormatDuration renders d as an RFC 5545 DURATION. Whole weeks use the PnW
// form, everything else PnDTnHnMnS. Sub-second parts are dropped.
func FormatDuration(d time.Duration) string {
	d = d.Truncate(time.Second)
	if d == 0 {
		return "P0D"
	}
	b := &strings.Builder{}
	if d < 0 {
		b.WriteByte('-')
		d = -d
	}
	b.WriteByte('P')
	if d%week == 0 {
		fmt.Fprintf(b, "%dW", d/week)
		return b.String()
	}
	days := d / (24 * time.Hour)
	d -= days * 24 * time.Hour
	if days > 0 {
		fmt.Fprintf(b, "%dD", days)
	}
	if d > 0 {
		b.WriteByte('T')
		h := d / time.Hour
		m := (d % time.Hour) / time.Minute
		s := (d % time.Minute) / time.Second
		if h > 0 {
			fmt.Fprintf(b, "%dH", h)
		}
		if m > 0 {
			fmt.Fprintf(b, "%dM", m)
		}
		if s > 0 {
			fmt.Fprintf(b, "%dS", s)
		}
	}
	return b.String()
}

var durationPattern = regexp.MustCompile(`^([+-])?P(?:([0-9]+)W)?(?:([0-9]+)D)?(?:T(?:([0-9]+)H)?(?:([0-9]+)M)?(?:([0-9]+)S)?)?$`)

// ParseDuration decodes an RFC 5545 DURATION. A day is 24 hours.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	m := durationPattern.FindStringSubmatch(strings.ToUpper(s))
	if m == nil || s == "P" || strings.HasSuffix(strings.ToUpper(s), "T") {
		return 0, fmt.Errorf("duration not matched, got '%s'", s)
	}
	units := []time.Duration{week, 24 * time.Hour, time.Hour, time.Minute, time.Second}
	var d time.Duration
	found := false
	for i, unit := range units {
		if m[i+2] == "" {
			continue
		}
		n, err := strconv.ParseInt(m[i+2], 10, 64)
		if err != nil {
			return 0, fmt.Errorf("duration '%s': %w", s, err)
		}
		found = true
		d += time.Duration(n) * unit
	}
	if !found {
		return 0, fmt.Errorf("duration without components, got '%s'", s)
	}
	if m[1] == "-" {
		d = -d
	}
	return d, nil
}

// UTCOffset is a UTC-OFFSET value such as TZOFFSETFROM.
type UTCOffset time.Duration

// String always carries a sign, zero is "+0000".
func (o UTCOffset) String() string {
	d := time.Duration(o)
	sign := '+'
	if d < 0 {
		sign = '-'
		d = -d
	}
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	s := int(d % time.Minute / time.Second)
	if s != 0 {
		return fmt.Sprintf("%c%02d%02d%02d", sign, h, m, s)
	}
	return fmt.Sprintf("%c%02d%02d", sign, h, m)
}

func ParseUTCOffset(s string) (UTCOffset, error) {
	s = strings.TrimSpace(s)
	if len(s) != 5 && len(s) != 7 || (s[0] != '+' && s[0] != '-') {
		return 0, fmt.Errorf("invalid utc offset: %q", s)
	}
	var parts [3]int
	for i := 0; i*2+1 < len(s); i++ {
		n, err := strconv.Atoi(s[i*2+1 : i*2+3])
		if err != nil {
			return 0, fmt.Errorf("invalid utc offset %q: %w", s, err)
		}
		parts[i] = n
	}
	if parts[0] > 23 || parts[1] > 59 || parts[2] > 59 {
		return 0, fmt.Errorf("utc offset out of range: %q", s)
	}
	d := time.Duration(parts[0])*time.Hour + time.Duration(parts[1])*time.Minute + time.Duration(parts[2])*time.Second
	if s[0] == '-' {
		d = -d
	}
	return UTCOffset(d), nil
}

// GeographicLocation is the GEO property value.
type GeographicLocation struct {
	Latitude  float64
	Longitude float64
}

// truncateDecimal formats v with at most 6 decimals, cutting rather than
// rounding the rest.
func truncateDecimal(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if dot := strings.IndexByte(s, '.'); dot >= 0 && len(s)-dot-1 > 6 {
		s = s[:dot+7]
	}
	if strings.IndexByte(s, '.') >= 0 {
		s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	}
	if s == "-0" {
		s = "0"
	}
	return s
}

func (g GeographicLocation) String() string {
	return truncateDecimal(g.Latitude) + ";" + truncateDecimal(g.Longitude)
}

func ParseGeo(s string) (GeographicLocation, error) {
	parts := strings.Split(strings.TrimSpace(s), ";")
	if len(parts) != 2 {
		return GeographicLocation{}, fmt.Errorf("geo needs latitude;longitude, got '%s'", s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return GeographicLocation{}, fmt.Errorf("latitude: %w", err)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return GeographicLocation{}, fmt.Errorf("longitude: %w", err)
	}
	return GeographicLocation{Latitude: lat, Longitude: lng}, nil
}

// StatusCode is the hierarchical code of a REQUEST-STATUS, e.g. 2.0.1.
type StatusCode []int

func (c StatusCode) String() string {
	parts := make([]string, len(c))
	for i, p := range c {
		parts[i] = strconv.Itoa(p)
	}
	return strings.Join(parts, ".")
}

func ParseStatusCode(s string) (StatusCode, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("empty status code")
	}
	var c StatusCode
	for _, p := range strings.Split(s, ".") {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid status code %q", s)
		}
		c = append(c, n)
	}
	return c, nil
}

// RequestStatus is the REQUEST-STATUS value, RFC 5545 section 3.8.8.3.
type RequestStatus struct {
	Code        StatusCode
	Description string
	ExtraData   string
}

func (rs RequestStatus) String() string {
	s := rs.Code.String() + ";" + ToText(rs.Description)
	if rs.ExtraData != "" {
		s += ";" + ToText(rs.ExtraData)
	}
	return s
}

func ParseRequestStatus(s string) (RequestStatus, error) {
	parts := splitEscaped(s, ';')
	if len(parts) < 2 {
		return RequestStatus{}, fmt.Errorf("request status needs code;description, got '%s'", s)
	}
	code, err := ParseStatusCode(parts[0])
	if err != nil {
		return RequestStatus{}, err
	}
	rs := RequestStatus{Code: code, Description: FromText(parts[1])}
	if len(parts) > 2 {
		rs.ExtraData = FromText(strings.Join(parts[2:], ";"))
	}
	return rs, nil
}

var weekdayCodes = map[time.Weekday]string{
	time.Sunday:    "SU",
	time.Monday:    "MO",
	time.Tuesday:   "TU",
	time.Wednesday: "WE",
	time.Thursday:  "TH",
	time.Friday:    "FR",
	time.Saturday:  "SA",
}

func parseWeekdayCode(s string) (time.Weekday, error) {
	for d, code := range weekdayCodes {
		if strings.EqualFold(code, s) {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}

// WeekDay is a BYDAY entry: a weekday with an optional ordinal, where a
// negative Offset counts from the end of the month or year and zero means
// every such weekday.
type WeekDay struct {
	Offset  int
	Weekday time.Weekday
}

func (wd WeekDay) String() string {
	if wd.Offset == 0 {
		return weekdayCodes[wd.Weekday]
	}
	return strconv.Itoa(wd.Offset) + weekdayCodes[wd.Weekday]
}

func ParseWeekDay(s string) (WeekDay, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return WeekDay{}, fmt.Errorf("invalid weekday %q", s)
	}
	day, err := parseWeekdayCode(s[len(s)-2:])
	if err != nil {
		return WeekDay{}, err
	}
	wd := WeekDay{Weekday: day}
	if prefix := s[:len(s)-2]; prefix != "" {
		wd.Offset, err = strconv.Atoi(strings.TrimPrefix(prefix, "+"))
		if err != nil {
			return WeekDay{}, fmt.Errorf("invalid weekday ordinal in %q", s)
		}
	}
	return wd, nil
}
