package ics

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"slices"
	"strings"
	"time"
)

type CalendarProperty struct {
	BaseProperty
}

// Calendar represents a VCALENDAR object. NewCalendar and NewCalendarFor
// create a calendar with the mandatory VERSION and PRODID properties.
type Calendar struct {
	Components         []Component
	CalendarProperties []CalendarProperty

	resolver TimeZoneResolver
}

func NewCalendar() *Calendar {
	return NewCalendarFor("recurcal")
}

func NewCalendarFor(service string) *Calendar {
	c := &Calendar{
		Components:         []Component{},
		CalendarProperties: []CalendarProperty{},
	}
	c.SetVersion("2.0")
	c.SetProductId("-//" + service + "//Golang ICS Library")
	return c
}

func (cal *Calendar) Serialize(ops ...any) string {
	b := &strings.Builder{}
	// We are intentionally ignoring the return value. _ used to communicate this to lint.
	_ = cal.SerializeTo(b, ops...)
	return b.String()
}

type WithLineLength int
type WithNewLine string

func (cal *Calendar) SerializeTo(w io.Writer, ops ...any) error {
	serializeConfig, err := parseSerializeOps(ops)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, "BEGIN:VCALENDAR"+serializeConfig.NewLine); err != nil {
		return err
	}
	for _, p := range cal.CalendarProperties {
		if err := p.serialize(w, serializeConfig); err != nil {
			return err
		}
	}
	for _, c := range cal.Components {
		if err := c.SerializeTo(w, serializeConfig); err != nil {
			return err
		}
	}
	_, err = io.WriteString(w, "END:VCALENDAR"+serializeConfig.NewLine)
	return err
}

// SerializationConfiguration controls how calendars and components are
// written. MaxLength is the folding boundary in octets.
type SerializationConfiguration struct {
	MaxLength int
	NewLine   string
}

// parseSerializeOps accepts WithLineLength, WithNewLine or a
// *SerializationConfiguration.
func parseSerializeOps(ops []any) (*SerializationConfiguration, error) {
	serializeConfig := defaultSerializationOptions()
	for opi, op := range ops {
		switch op := op.(type) {
		case WithLineLength:
			serializeConfig.MaxLength = int(op)
		case WithNewLine:
			serializeConfig.NewLine = string(op)
		case *SerializationConfiguration:
			return op, nil
		case error:
			return nil, op
		default:
			return nil, fmt.Errorf("unknown op %d of type %s", opi, reflect.TypeOf(op))
		}
	}
	return serializeConfig, nil
}

func defaultSerializationOptions() *SerializationConfiguration {
	return &SerializationConfiguration{
		MaxLength: DefaultLineLength,
		NewLine:   string(NewLine),
	}
}

func (cal *Calendar) SetMethod(method Method, params ...PropertyParameter) {
	cal.setProperty(PropertyMethod, string(method), params...)
}

func (cal *Calendar) SetXPublishedTTL(s string, params ...PropertyParameter) {
	cal.setProperty(PropertyXPublishedTTL, s, params...)
}

func (cal *Calendar) SetVersion(s string, params ...PropertyParameter) {
	cal.setProperty(PropertyVersion, s, params...)
}

func (cal *Calendar) SetProductId(s string, params ...PropertyParameter) {
	cal.setProperty(PropertyProductId, s, params...)
}

func (cal *Calendar) SetName(s string, params ...PropertyParameter) {
	cal.setProperty(PropertyName, ToText(s), params...)
	cal.setProperty(PropertyXWRCalName, ToText(s), params...)
}

func (cal *Calendar) SetColor(s string, params ...PropertyParameter) {
	cal.setProperty(PropertyColor, s, params...)
}

func (cal *Calendar) SetXWRCalName(s string, params ...PropertyParameter) {
	cal.setProperty(PropertyXWRCalName, ToText(s), params...)
}

func (cal *Calendar) SetXWRCalDesc(s string, params ...PropertyParameter) {
	cal.setProperty(PropertyXWRCalDesc, ToText(s), params...)
}

func (cal *Calendar) SetXWRTimezone(s string, params ...PropertyParameter) {
	cal.setProperty(PropertyXWRTimezone, s, params...)
}

func (cal *Calendar) SetDescription(s string, params ...PropertyParameter) {
	cal.setProperty(PropertyDescription, ToText(s), params...)
}

func (cal *Calendar) SetLastModified(t time.Time, params ...PropertyParameter) {
	cal.setProperty(PropertyLastModified, FormatDateTime(CalDateTimeFromTime(t.UTC())), params...)
}

func (cal *Calendar) SetRefreshInterval(d time.Duration, params ...PropertyParameter) {
	cal.setProperty(PropertyRefreshInterval, FormatDuration(d), append(params, WithValue(string(ValueDataTypeDuration)))...)
}

func (cal *Calendar) SetCalscale(s string, params ...PropertyParameter) {
	cal.setProperty(PropertyCalscale, s, params...)
}

func (cal *Calendar) SetUrl(s string, params ...PropertyParameter) {
	cal.setProperty(PropertyUrl, s, params...)
}

func (cal *Calendar) SetTzid(s string, params ...PropertyParameter) {
	cal.setProperty(PropertyTzid, s, params...)
}

func (cal *Calendar) setProperty(property Property, value string, params ...PropertyParameter) {
	for i := range cal.CalendarProperties {
		if cal.CalendarProperties[i].IANAToken == string(property) {
			cal.CalendarProperties[i].Value = value
			cal.CalendarProperties[i].ICalParameters = map[string][]string{}
			for _, p := range params {
				k, v := p.KeyValue()
				cal.CalendarProperties[i].ICalParameters[k] = v
			}
			return
		}
	}
	r := CalendarProperty{
		BaseProperty{
			IANAToken:      string(property),
			Value:          value,
			ICalParameters: map[string][]string{},
		},
	}
	for _, p := range params {
		k, v := p.KeyValue()
		r.ICalParameters[k] = v
	}
	cal.CalendarProperties = append(cal.CalendarProperties, r)
}

func (cal *Calendar) AddEvent(id string) *VEvent {
	e := NewEvent(id)
	cal.Components = append(cal.Components, e)
	return e
}

func (cal *Calendar) AddVEvent(e *VEvent) {
	cal.Components = append(cal.Components, e)
}

func (cal *Calendar) Events() (r []*VEvent) {
	r = []*VEvent{}
	for i := range cal.Components {
		if event, ok := cal.Components[i].(*VEvent); ok {
			r = append(r, event)
		}
	}
	return
}

func (cal *Calendar) RemoveEvent(id string) {
	cal.Components = slices.DeleteFunc(cal.Components, func(c Component) bool {
		event, ok := c.(*VEvent)
		return ok && event.Id() == id
	})
}

// TimeZoneResolver resolves the TZIDs of the calendar's VTIMEZONE components
// and falls back to the resolver given when parsing, or DefaultResolver.
func (cal *Calendar) TimeZoneResolver() TimeZoneResolver {
	fallback := cal.resolver
	if fallback == nil {
		fallback = DefaultResolver
	}
	timezones := cal.Timezones()
	if len(timezones) == 0 {
		return fallback
	}
	return NewVTimezoneResolver(fallback, timezones...)
}

// Occurrences expands every event, todo and journal with a DTSTART over
// [from, to). The calendar's own time zones are used unless ops carry a
// resolver.
func (cal *Calendar) Occurrences(from, to time.Time, ops ...any) ([]Occurrence, error) {
	ops = append([]any{cal.TimeZoneResolver()}, ops...)
	var out []Occurrence
	for _, c := range cal.Components {
		var rc *RecurringComponent
		var err error
		switch c := c.(type) {
		case *VEvent:
			rc, err = c.Recurrence(ops...)
		case *VTodo:
			rc, err = c.Recurrence(ops...)
		case *VJournal:
			rc, err = c.Recurrence(ops...)
		default:
			continue
		}
		if errors.Is(err, ErrorPropertyNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		occs, err := rc.Occurrences(from, to)
		if err != nil {
			return nil, err
		}
		out = append(out, occs...)
	}
	r := cal.TimeZoneResolver()
	slices.SortStableFunc(out, func(a, b Occurrence) int {
		c, _ := a.Period.Start().Compare(b.Period.Start(), r)
		return c
	})
	return out, nil
}

// WithStrict makes ParseCalendar fail on property values that do not match
// their value type instead of keeping the raw text.
type WithStrict bool

// ParseOptions configures ParseCalendar. Logger receives a warning for every
// value kept as raw text in lenient mode; Resolver becomes the fallback of
// Calendar.TimeZoneResolver.
type ParseOptions struct {
	Strict   bool
	Logger   *slog.Logger
	Resolver TimeZoneResolver
}

func parseParseOps(ops []any) (*ParseOptions, error) {
	opts := &ParseOptions{}
	for opi, op := range ops {
		switch op := op.(type) {
		case *ParseOptions:
			c := *op
			opts = &c
		case WithStrict:
			opts.Strict = bool(op)
		case *slog.Logger:
			opts.Logger = op
		case TimeZoneResolver:
			opts.Resolver = op
		case error:
			return nil, op
		default:
			return nil, fmt.Errorf("unknown op %d of type %s", opi, reflect.TypeOf(op))
		}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return opts, nil
}

// ParseCalendar parses a single VCALENDAR from r. ops accept *ParseOptions,
// WithStrict, a *slog.Logger or a TimeZoneResolver.
//
// Unknown properties and components are kept so that vendor extensions
// survive a parse and serialize round trip.
func ParseCalendar(r io.Reader, ops ...any) (*Calendar, error) {
	opts, err := parseParseOps(ops)
	if err != nil {
		return nil, err
	}
	cs := NewCalendarStream(r)
	cs.opts = opts
	c := &Calendar{resolver: opts.Resolver}

	line, err := cs.ReadProperty()
	if err == io.EOF {
		return nil, fmt.Errorf("%w; empty input", ErrMalformedCalendar)
	}
	if err != nil {
		return nil, err
	}
	if line.IANAToken != "BEGIN" || !strings.EqualFold(line.Value, string(ComponentVCalendar)) {
		return nil, cs.syntaxError(line, fmt.Errorf("%w; expected BEGIN:VCALENDAR", ErrMalformedCalendar))
	}
	for {
		line, err := cs.ReadProperty()
		if err == io.EOF {
			return nil, cs.syntaxError(nil, fmt.Errorf("%w: VCALENDAR", ErrUnterminatedComponent))
		}
		if err != nil {
			return nil, err
		}
		switch line.IANAToken {
		case "END":
			if !strings.EqualFold(line.Value, string(ComponentVCalendar)) {
				return nil, cs.syntaxError(line, fmt.Errorf("%w: expected END:VCALENDAR", ErrUnbalancedEnd))
			}
			return c, cs.expectEnd()
		case "BEGIN":
			co, err := GeneralParseComponent(cs, line)
			if err != nil {
				return nil, err
			}
			c.Components = append(c.Components, co)
		default:
			if err := cs.checkValue(line); err != nil {
				return nil, err
			}
			c.CalendarProperties = append(c.CalendarProperties, CalendarProperty{*line})
		}
	}
}

// CalendarStream reads unfolded content lines and keeps track of the
// physical line each one started on.
type CalendarStream struct {
	r    io.Reader
	b    *bufio.Reader
	opts *ParseOptions

	physical int
	line     int
}

func NewCalendarStream(r io.Reader) *CalendarStream {
	return &CalendarStream{
		r:    r,
		b:    bufio.NewReader(r),
		opts: &ParseOptions{Logger: slog.Default()},
	}
}

// Line returns the physical line number the last content line started on.
func (cs *CalendarStream) Line() int {
	return cs.line
}

// ReadLine reads the next unfolded content line. Any CRLF or LF followed by
// a space or horizontal tab is removed; blank lines are skipped. io.EOF is
// returned once no line is left.
func (cs *CalendarStream) ReadLine() (*ContentLine, error) {
	var r []byte
	for {
		b, err := cs.b.ReadBytes('\n')
		if err != nil && err != io.EOF {
			return nil, err
		}
		if len(b) > 0 {
			cs.physical++
			if len(r) == 0 {
				cs.line = cs.physical
			}
			b = bytes.TrimSuffix(b, []byte{'\n'})
			b = bytes.TrimSuffix(b, []byte{'\r'})
			r = append(r, b...)
		}
		if err == io.EOF {
			if len(r) == 0 {
				return nil, io.EOF
			}
			cl := ContentLine(r)
			return &cl, nil
		}
		if p, perr := cs.b.Peek(1); perr == nil && (p[0] == ' ' || p[0] == '\t') {
			_, _ = cs.b.Discard(1)
			continue
		}
		if len(r) == 0 {
			continue
		}
		cl := ContentLine(r)
		return &cl, nil
	}
}

// ReadProperty reads and parses the next content line.
func (cs *CalendarStream) ReadProperty() (*BaseProperty, error) {
	l, err := cs.ReadLine()
	if err != nil {
		return nil, err
	}
	p, err := ParseProperty(*l)
	if err != nil {
		var se *SyntaxError
		if errors.As(err, &se) {
			se.Line = cs.line
		}
		return nil, err
	}
	return p, nil
}

func (cs *CalendarStream) syntaxError(p *BaseProperty, err error) *SyntaxError {
	se := &SyntaxError{Line: cs.line, Err: err}
	if p != nil {
		se.Raw = p.contentLine()
	}
	return se
}

// expectEnd allows only blank lines after END:VCALENDAR.
func (cs *CalendarStream) expectEnd() error {
	line, err := cs.ReadProperty()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return err
	}
	return cs.syntaxError(line, fmt.Errorf("%w; content after END:VCALENDAR", ErrMalformedCalendar))
}

// checkValue decodes the value of p with its serializer. Strict streams fail
// on a bad value, lenient ones log it and keep the raw text.
func (cs *CalendarStream) checkValue(p *BaseProperty) error {
	if _, known := propertyDescriptors[Property(p.IANAToken)]; !known {
		return nil
	}
	if _, err := p.TypedValue(); err != nil {
		if cs.opts.Strict {
			return fmt.Errorf("line %d: %w", cs.line, err)
		}
		cs.opts.Logger.Warn("keeping raw property value",
			slog.String("property", p.IANAToken),
			slog.String("value", p.Value),
			slog.Int("line", cs.line),
			slog.Any("error", err),
		)
	}
	return nil
}
