package ics

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// Component To determine what this is please use a type switch or typecast to each of:
// - *VEvent
// - *VTodo
// - *VBusy
// - *VJournal
// - *VTimezone, *Standard, *Daylight
// - *VAlarm
// - *GeneralComponent
type Component interface {
	UnknownPropertiesIANAProperties() []IANAProperty
	SubComponents() []Component
	GetProperty(componentProperty ComponentProperty) *IANAProperty
	HasProperty(componentProperty ComponentProperty) bool
	SerializeTo(b io.Writer, serialConfig *SerializationConfiguration) error
}

var (
	_ Component = (*VEvent)(nil)
	_ Component = (*VTodo)(nil)
	_ Component = (*VBusy)(nil)
	_ Component = (*VJournal)(nil)
	_ Component = (*VTimezone)(nil)
	_ Component = (*VAlarm)(nil)
	_ Component = (*Standard)(nil)
	_ Component = (*Daylight)(nil)
	_ Component = (*GeneralComponent)(nil)
)

type ComponentBase struct {
	Properties []IANAProperty
	Components []Component
}

func (cb *ComponentBase) UnknownPropertiesIANAProperties() []IANAProperty {
	return cb.Properties
}

func (cb *ComponentBase) SubComponents() []Component {
	return cb.Components
}

func (cb *ComponentBase) serializeThis(writer io.Writer, componentType ComponentType, serialConfig *SerializationConfiguration) error {
	if serialConfig == nil {
		serialConfig = defaultSerializationOptions()
	}
	if _, err := io.WriteString(writer, "BEGIN:"+string(componentType)+serialConfig.NewLine); err != nil {
		return err
	}
	for _, p := range cb.Properties {
		if err := p.serialize(writer, serialConfig); err != nil {
			return err
		}
	}
	for _, c := range cb.Components {
		if err := c.SerializeTo(writer, serialConfig); err != nil {
			return err
		}
	}
	_, err := io.WriteString(writer, "END:"+string(componentType)+serialConfig.NewLine)
	return err
}

func serializeString(c Component, serialConfig *SerializationConfiguration) string {
	b := &strings.Builder{}
	// Writes to a strings.Builder do not fail.
	_ = c.SerializeTo(b, serialConfig)
	return b.String()
}

func NewComponent(uniqueId string) ComponentBase {
	return ComponentBase{
		Properties: []IANAProperty{
			{BaseProperty{IANAToken: string(ComponentPropertyUniqueId), Value: uniqueId, ICalParameters: map[string][]string{}}},
		},
	}
}

// GetProperty returns the first match for the particular property you're after. Please consider using:
// ComponentProperty.Multiple to determine if GetProperty or GetProperties is more appropriate.
func (cb *ComponentBase) GetProperty(componentProperty ComponentProperty) *IANAProperty {
	for i := range cb.Properties {
		if cb.Properties[i].IANAToken == string(componentProperty) {
			return &cb.Properties[i]
		}
	}
	return nil
}

// GetProperties returns all matches for the particular property you're after.
func (cb *ComponentBase) GetProperties(componentProperty ComponentProperty) []*IANAProperty {
	var result []*IANAProperty
	for i := range cb.Properties {
		if cb.Properties[i].IANAToken == string(componentProperty) {
			result = append(result, &cb.Properties[i])
		}
	}
	return result
}

// HasProperty returns true if a component property is in the component.
func (cb *ComponentBase) HasProperty(componentProperty ComponentProperty) bool {
	return cb.GetProperty(componentProperty) != nil
}

// SetProperty replaces the first match for the particular property you're setting, otherwise adds it.
func (cb *ComponentBase) SetProperty(property ComponentProperty, value string, params ...PropertyParameter) {
	for i := range cb.Properties {
		if cb.Properties[i].IANAToken == string(property) {
			cb.Properties[i].Value = value
			cb.Properties[i].ICalParameters = map[string][]string{}
			for _, p := range params {
				k, v := p.KeyValue()
				cb.Properties[i].ICalParameters[k] = v
			}
			return
		}
	}
	cb.AddProperty(property, value, params...)
}

// ReplaceProperty replaces all matches of the particular property you're setting, otherwise adds it. Returns a slice
// of removed properties.
func (cb *ComponentBase) ReplaceProperty(property ComponentProperty, value string, params ...PropertyParameter) []IANAProperty {
	removed := cb.RemoveProperty(property)
	cb.AddProperty(property, value, params...)
	return removed
}

// AddProperty appends a property
func (cb *ComponentBase) AddProperty(property ComponentProperty, value string, params ...PropertyParameter) {
	r := IANAProperty{
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
	cb.Properties = append(cb.Properties, r)
}

// RemoveProperty removes from the component all properties that is of a particular property type, returning an slice of
// removed entities
func (cb *ComponentBase) RemoveProperty(removeProp ComponentProperty) []IANAProperty {
	return cb.RemovePropertyByFunc(removeProp, func(IANAProperty) bool { return true })
}

// RemovePropertyByValue removes from the component all properties that has a particular property type and value
func (cb *ComponentBase) RemovePropertyByValue(removeProp ComponentProperty, value string) []IANAProperty {
	return cb.RemovePropertyByFunc(removeProp, func(p IANAProperty) bool {
		return p.Value == value
	})
}

// RemovePropertyByFunc removes from the component all properties that has a particular property type and the function
// remove returns true for
func (cb *ComponentBase) RemovePropertyByFunc(removeProp ComponentProperty, remove func(p IANAProperty) bool) []IANAProperty {
	var keptProperties []IANAProperty
	var removedProperties []IANAProperty
	for i := range cb.Properties {
		if cb.Properties[i].IANAToken == string(removeProp) && remove(cb.Properties[i]) {
			removedProperties = append(removedProperties, cb.Properties[i])
		} else {
			keptProperties = append(keptProperties, cb.Properties[i])
		}
	}
	cb.Properties = keptProperties
	return removedProperties
}

func (cb *ComponentBase) setDateTime(property ComponentProperty, d CalDateTime, params ...PropertyParameter) {
	cb.SetProperty(property, FormatDateTime(d), append(DateTimeParameters(d), params...)...)
}

func (cb *ComponentBase) SetCreatedTime(t time.Time, params ...PropertyParameter) {
	cb.setDateTime(ComponentPropertyCreated, CalDateTimeFromTime(t.UTC()), params...)
}

func (cb *ComponentBase) SetDtStampTime(t time.Time, params ...PropertyParameter) {
	cb.setDateTime(ComponentPropertyDtstamp, CalDateTimeFromTime(t.UTC()), params...)
}

func (cb *ComponentBase) SetModifiedAt(t time.Time, params ...PropertyParameter) {
	cb.setDateTime(ComponentPropertyLastModified, CalDateTimeFromTime(t.UTC()), params...)
}

func (cb *ComponentBase) SetSequence(seq int, params ...PropertyParameter) {
	cb.SetProperty(ComponentPropertySequence, strconv.Itoa(seq), params...)
}

func (cb *ComponentBase) SetStartAt(t time.Time, params ...PropertyParameter) {
	cb.setDateTime(ComponentPropertyDtStart, CalDateTimeFromTime(t.UTC()), params...)
}

func (cb *ComponentBase) SetAllDayStartAt(t time.Time, params ...PropertyParameter) {
	cb.setDateTime(ComponentPropertyDtStart, NewDate(t.Year(), t.Month(), t.Day()), params...)
}

func (cb *ComponentBase) SetEndAt(t time.Time, params ...PropertyParameter) {
	cb.setDateTime(ComponentPropertyDtEnd, CalDateTimeFromTime(t.UTC()), params...)
}

func (cb *ComponentBase) SetAllDayEndAt(t time.Time, params ...PropertyParameter) {
	cb.setDateTime(ComponentPropertyDtEnd, NewDate(t.Year(), t.Month(), t.Day()), params...)
}

// SetDtStart writes d with the TZID or VALUE parameters its kind needs.
func (cb *ComponentBase) SetDtStart(d CalDateTime, params ...PropertyParameter) {
	cb.setDateTime(ComponentPropertyDtStart, d, params...)
}

func (cb *ComponentBase) SetDtEnd(d CalDateTime, params ...PropertyParameter) {
	cb.setDateTime(ComponentPropertyDtEnd, d, params...)
}

// SetDuration updates the duration of an event.
// This function will set either the end or start time of an event depending what is already given.
//
// Notice: It will not set the DURATION key of the ics - only DTSTART and DTEND will be affected.
func (cb *ComponentBase) SetDuration(d time.Duration) error {
	if start, err := cb.GetDtStart(); err == nil {
		cb.SetDtEnd(start.Add(d))
		return nil
	}
	if end, err := cb.GetDtEnd(); err == nil {
		cb.SetDtStart(end.Add(-d))
		return nil
	}
	return ErrStartAndEndDateNotDefined
}

func (cb *ComponentBase) getDateTimeProp(componentProperty ComponentProperty) (CalDateTime, error) {
	prop := cb.GetProperty(componentProperty)
	if prop == nil {
		return CalDateTime{}, fmt.Errorf("%w: %s", ErrorPropertyNotFound, componentProperty)
	}
	d, err := ParseDateTime(prop.Value, prop.ICalParameters)
	if err != nil {
		return CalDateTime{}, valueError(prop.IANAToken, prop.Value, err)
	}
	return d, nil
}

func (cb *ComponentBase) getTimeProp(componentProperty ComponentProperty, expectAllDay bool) (time.Time, error) {
	d, err := cb.getDateTimeProp(componentProperty)
	if err != nil {
		return time.Time{}, err
	}
	if expectAllDay {
		d = d.DateOnly()
	}
	return d.Instant(nil)
}

func (cb *ComponentBase) GetDtStart() (CalDateTime, error) {
	return cb.getDateTimeProp(ComponentPropertyDtStart)
}

func (cb *ComponentBase) GetDtEnd() (CalDateTime, error) {
	return cb.getDateTimeProp(ComponentPropertyDtEnd)
}

func (cb *ComponentBase) GetStartAt() (time.Time, error) {
	return cb.getTimeProp(ComponentPropertyDtStart, false)
}

func (cb *ComponentBase) GetAllDayStartAt() (time.Time, error) {
	return cb.getTimeProp(ComponentPropertyDtStart, true)
}

func (cb *ComponentBase) GetEndAt() (time.Time, error) {
	return cb.getTimeProp(ComponentPropertyDtEnd, false)
}

func (cb *ComponentBase) GetLastModifiedAt() (time.Time, error) {
	return cb.getTimeProp(ComponentPropertyLastModified, false)
}

func (cb *ComponentBase) GetDtStampTime() (time.Time, error) {
	return cb.getTimeProp(ComponentPropertyDtstamp, false)
}

// GetDuration returns the DURATION property, or the distance from DTSTART to
// endProperty. Without either a date-only start lasts a day and a date-time
// start lasts nothing.
func (cb *ComponentBase) getDuration(endProperty ComponentProperty) (time.Duration, error) {
	if prop := cb.GetProperty(ComponentPropertyDuration); prop != nil {
		d, err := ParseDuration(prop.Value)
		if err != nil {
			return 0, valueError(prop.IANAToken, prop.Value, err)
		}
		return d, nil
	}
	start, err := cb.GetDtStart()
	if err != nil {
		return 0, err
	}
	if cb.HasProperty(endProperty) {
		end, err := cb.getDateTimeProp(endProperty)
		if err != nil {
			return 0, err
		}
		p, err := NewPeriod(start, end)
		if err != nil {
			return 0, err
		}
		return p.Duration(), nil
	}
	if !start.HasTime() {
		return 24 * time.Hour, nil
	}
	return 0, nil
}

// IsDuring reports whether point falls in [start, end). The end is DTEND,
// or DTSTART moved by the duration. A date-only DTEND that does not pass the
// start's day covers that whole day. ops may carry a TimeZoneResolver.
func (cb *ComponentBase) IsDuring(point time.Time, ops ...any) (bool, error) {
	opts, err := parseEvaluationOps(ops)
	if err != nil {
		return false, err
	}
	if !cb.HasProperty(ComponentPropertyDtStart) {
		return false, ErrStartAndEndDateNotDefined
	}
	start, err := cb.GetDtStart()
	if err != nil {
		return false, err
	}
	var end CalDateTime
	if cb.HasProperty(ComponentPropertyDtEnd) {
		if end, err = cb.GetDtEnd(); err != nil {
			return false, err
		}
		if !end.HasTime() && !end.Wall().After(truncateDay(start.Wall())) {
			end = end.AddDate(0, 0, 1)
		}
	} else {
		d, err := cb.getDuration(ComponentPropertyDtEnd)
		if err != nil {
			return false, err
		}
		end = start.Add(d)
	}
	s, err := start.Instant(opts.Resolver)
	if err != nil {
		return false, err
	}
	e, err := end.Instant(opts.Resolver)
	if err != nil {
		return false, err
	}
	if !e.After(s) {
		return point.Equal(s), nil
	}
	return !point.Before(s) && point.Before(e), nil
}

func (cb *ComponentBase) SetSummary(s string, params ...PropertyParameter) {
	cb.SetProperty(ComponentPropertySummary, ToText(s), params...)
}

func (cb *ComponentBase) SetStatus(s ObjectStatus, params ...PropertyParameter) {
	cb.SetProperty(ComponentPropertyStatus, string(s), params...)
}

func (cb *ComponentBase) SetDescription(s string, params ...PropertyParameter) {
	cb.SetProperty(ComponentPropertyDescription, ToText(s), params...)
}

func (cb *ComponentBase) SetLocation(s string, params ...PropertyParameter) {
	cb.SetProperty(ComponentPropertyLocation, ToText(s), params...)
}

func (cb *ComponentBase) SetGeo(lat, lng float64, params ...PropertyParameter) {
	cb.SetProperty(ComponentPropertyGeo, GeographicLocation{Latitude: lat, Longitude: lng}.String(), params...)
}

func (cb *ComponentBase) SetURL(s string, params ...PropertyParameter) {
	cb.SetProperty(ComponentPropertyUrl, s, params...)
}

func (cb *ComponentBase) SetOrganizer(s string, params ...PropertyParameter) {
	if !strings.HasPrefix(s, "mailto:") {
		s = "mailto:" + s
	}
	cb.SetProperty(ComponentPropertyOrganizer, s, params...)
}

func (cb *ComponentBase) SetColor(s string, params ...PropertyParameter) {
	cb.SetProperty(ComponentPropertyColor, s, params...)
}

func (cb *ComponentBase) SetClass(c Classification, params ...PropertyParameter) {
	cb.SetProperty(ComponentPropertyClass, string(c), params...)
}

func (cb *ComponentBase) SetPriority(p int, params ...PropertyParameter) {
	cb.SetProperty(ComponentPropertyPriority, strconv.Itoa(p), params...)
}

func (cb *ComponentBase) SetResources(r string, params ...PropertyParameter) {
	cb.SetProperty(ComponentPropertyResources, r, params...)
}

func (cb *ComponentBase) AddAttendee(s string, params ...PropertyParameter) {
	if !strings.HasPrefix(s, "mailto:") {
		s = "mailto:" + s
	}
	cb.AddProperty(ComponentPropertyAttendee, s, params...)
}

func (cb *ComponentBase) AddExdate(s string, params ...PropertyParameter) {
	cb.AddProperty(ComponentPropertyExdate, s, params...)
}

func (cb *ComponentBase) AddExrule(s string, params ...PropertyParameter) {
	cb.AddProperty(ComponentPropertyExrule, s, params...)
}

func (cb *ComponentBase) AddRdate(s string, params ...PropertyParameter) {
	cb.AddProperty(ComponentPropertyRdate, s, params...)
}

func (cb *ComponentBase) AddRrule(s string, params ...PropertyParameter) {
	cb.AddProperty(ComponentPropertyRrule, s, params...)
}

func (cb *ComponentBase) AddRecurrenceRule(rp *RecurrencePattern) {
	cb.AddRrule(rp.String())
}

// AddExceptionDates writes the periods as one EXDATE. All values share the
// parameters of the first one.
func (cb *ComponentBase) AddExceptionDates(pl PeriodList) {
	cb.addPeriodList(ComponentPropertyExdate, pl)
}

func (cb *ComponentBase) AddRecurrenceDates(pl PeriodList) {
	cb.addPeriodList(ComponentPropertyRdate, pl)
}

func (cb *ComponentBase) addPeriodList(property ComponentProperty, pl PeriodList) {
	if len(pl) == 0 {
		return
	}
	params := DateTimeParameters(pl[0].Start())
	if pl[0].HasEnd() || pl[0].HasDuration() {
		params = append(params, WithValue(string(ValueDataTypePeriod)))
	}
	cb.AddProperty(property, pl.String(), params...)
}

func (cb *ComponentBase) rules(property ComponentProperty) ([]*RecurrencePattern, error) {
	var out []*RecurrencePattern
	for _, prop := range cb.GetProperties(property) {
		rp, err := ParseRecurrencePattern(prop.Value)
		if err != nil {
			return nil, valueError(prop.IANAToken, prop.Value, err)
		}
		out = append(out, rp)
	}
	return out, nil
}

func (cb *ComponentBase) periodLists(property ComponentProperty) ([]PeriodList, error) {
	var out []PeriodList
	for _, prop := range cb.GetProperties(property) {
		pl, err := ParsePeriodList(prop.Value, prop.ICalParameters)
		if err != nil {
			return nil, valueError(prop.IANAToken, prop.Value, err)
		}
		out = append(out, pl)
	}
	return out, nil
}

func (cb *ComponentBase) RecurrenceRules() ([]*RecurrencePattern, error) {
	return cb.rules(ComponentPropertyRrule)
}

func (cb *ComponentBase) ExceptionRules() ([]*RecurrencePattern, error) {
	return cb.rules(ComponentPropertyExrule)
}

func (cb *ComponentBase) RecurrenceDates() ([]PeriodList, error) {
	return cb.periodLists(ComponentPropertyRdate)
}

func (cb *ComponentBase) ExceptionDates() ([]PeriodList, error) {
	return cb.periodLists(ComponentPropertyExdate)
}

// recurrence builds the RecurringComponent of self from its DTSTART,
// duration, rules, dates and alarms.
func (cb *ComponentBase) recurrence(self Component, endProperty ComponentProperty, ops ...any) (*RecurringComponent, error) {
	start, err := cb.GetDtStart()
	if err != nil {
		return nil, err
	}
	rc, err := NewRecurringComponent(start, ops...)
	if err != nil {
		return nil, err
	}
	rc.SetSource(self)
	d, err := cb.getDuration(endProperty)
	if err != nil {
		return nil, err
	}
	if err := rc.SetDuration(d); err != nil {
		return nil, err
	}
	rrules, err := cb.RecurrenceRules()
	if err != nil {
		return nil, err
	}
	for _, rp := range rrules {
		rc.AddRecurrenceRule(rp)
	}
	exrules, err := cb.ExceptionRules()
	if err != nil {
		return nil, err
	}
	for _, rp := range exrules {
		rc.AddExceptionRule(rp)
	}
	rdates, err := cb.RecurrenceDates()
	if err != nil {
		return nil, err
	}
	for _, pl := range rdates {
		rc.AddRecurrenceDates(pl)
	}
	exdates, err := cb.ExceptionDates()
	if err != nil {
		return nil, err
	}
	for _, pl := range exdates {
		rc.AddExceptionDates(pl)
	}
	for _, a := range cb.alarms() {
		rc.AddAlarm(a)
	}
	return rc, nil
}

func (cb *ComponentBase) AddAttachment(s string, params ...PropertyParameter) {
	cb.AddProperty(ComponentPropertyAttach, s, params...)
}

func (cb *ComponentBase) AddAttachmentURL(uri string, contentType string) {
	cb.AddAttachment(uri, WithFmtType(contentType))
}

func (cb *ComponentBase) AddAttachmentBinary(binary []byte, contentType string) {
	// BASE64 encoding does not fail.
	v, _ := EncodeBytes(binary, EncodingBase64, "")
	cb.AddAttachment(v,
		WithFmtType(contentType), WithEncoding(string(EncodingBase64)), WithValue(string(ValueDataTypeBinary)),
	)
}

func (cb *ComponentBase) AddComment(s string, params ...PropertyParameter) {
	cb.AddProperty(ComponentPropertyComment, ToText(s), params...)
}

func (cb *ComponentBase) AddCategory(s string, params ...PropertyParameter) {
	cb.AddProperty(ComponentPropertyCategories, ToText(s), params...)
}

type Attendee struct {
	IANAProperty
}

func (p *Attendee) Email() string {
	return strings.TrimPrefix(p.Value, "mailto:")
}

func (p *Attendee) ParticipationStatus() ParticipationStatus {
	return ParticipationStatus(p.firstParameter(ParameterParticipationStatus))
}

func (cb *ComponentBase) Attendees() []*Attendee {
	var r []*Attendee
	for i := range cb.Properties {
		if cb.Properties[i].IANAToken == string(ComponentPropertyAttendee) {
			r = append(r, &Attendee{cb.Properties[i]})
		}
	}
	return r
}

func (cb *ComponentBase) Id() string {
	p := cb.GetProperty(ComponentPropertyUniqueId)
	if p != nil {
		return FromText(p.Value)
	}
	return ""
}

func (cb *ComponentBase) addAlarm() *VAlarm {
	a := &VAlarm{}
	cb.Components = append(cb.Components, a)
	return a
}

func (cb *ComponentBase) addVAlarm(a *VAlarm) {
	cb.Components = append(cb.Components, a)
}

func (cb *ComponentBase) alarms() []*VAlarm {
	var r []*VAlarm
	for i := range cb.Components {
		if alarm, ok := cb.Components[i].(*VAlarm); ok {
			r = append(r, alarm)
		}
	}
	return r
}

type VEvent struct {
	ComponentBase
}

func (event *VEvent) SerializeTo(w io.Writer, serialConfig *SerializationConfiguration) error {
	return event.ComponentBase.serializeThis(w, ComponentVEvent, serialConfig)
}

func (event *VEvent) Serialize(serialConfig *SerializationConfiguration) string {
	return serializeString(event, serialConfig)
}

func NewEvent(uniqueId string) *VEvent {
	return &VEvent{
		NewComponent(uniqueId),
	}
}

func (event *VEvent) AddAlarm() *VAlarm {
	return event.addAlarm()
}

func (event *VEvent) AddVAlarm(a *VAlarm) {
	event.addVAlarm(a)
}

func (event *VEvent) Alarms() []*VAlarm {
	return event.alarms()
}

func (event *VEvent) GetAllDayEndAt() (time.Time, error) {
	return event.getTimeProp(ComponentPropertyDtEnd, true)
}

func (event *VEvent) SetTimeTransparency(v TimeTransparency, params ...PropertyParameter) {
	event.SetProperty(ComponentPropertyTransp, string(v), params...)
}

// Duration is DURATION or DTEND - DTSTART.
func (event *VEvent) Duration() (time.Duration, error) {
	return event.getDuration(ComponentPropertyDtEnd)
}

// Recurrence returns the event's recurrence set. ops are passed to
// NewRecurringComponent.
func (event *VEvent) Recurrence(ops ...any) (*RecurringComponent, error) {
	return event.recurrence(event, ComponentPropertyDtEnd, ops...)
}

type VTodo struct {
	ComponentBase
}

func (todo *VTodo) SerializeTo(w io.Writer, serialConfig *SerializationConfiguration) error {
	return todo.ComponentBase.serializeThis(w, ComponentVTodo, serialConfig)
}

func (todo *VTodo) Serialize(serialConfig *SerializationConfiguration) string {
	return serializeString(todo, serialConfig)
}

func NewTodo(uniqueId string) *VTodo {
	return &VTodo{
		NewComponent(uniqueId),
	}
}

func (cal *Calendar) AddTodo(id string) *VTodo {
	e := NewTodo(id)
	cal.Components = append(cal.Components, e)
	return e
}

func (cal *Calendar) AddVTodo(e *VTodo) {
	cal.Components = append(cal.Components, e)
}

func (cal *Calendar) Todos() []*VTodo {
	var r []*VTodo
	for i := range cal.Components {
		if todo, ok := cal.Components[i].(*VTodo); ok {
			r = append(r, todo)
		}
	}
	return r
}

func (todo *VTodo) SetCompletedAt(t time.Time, params ...PropertyParameter) {
	todo.setDateTime(ComponentPropertyCompleted, CalDateTimeFromTime(t.UTC()), params...)
}

func (todo *VTodo) SetDueAt(t time.Time, params ...PropertyParameter) {
	todo.setDateTime(ComponentPropertyDue, CalDateTimeFromTime(t.UTC()), params...)
}

func (todo *VTodo) SetAllDayDueAt(t time.Time, params ...PropertyParameter) {
	todo.setDateTime(ComponentPropertyDue, NewDate(t.Year(), t.Month(), t.Day()), params...)
}

func (todo *VTodo) SetPercentComplete(p int, params ...PropertyParameter) {
	todo.SetProperty(ComponentPropertyPercentComplete, strconv.Itoa(p), params...)
}

// SetDuration updates the duration of a todo, moving DUE or DTSTART.
func (todo *VTodo) SetDuration(d time.Duration) error {
	if start, err := todo.GetDtStart(); err == nil {
		todo.setDateTime(ComponentPropertyDue, start.Add(d))
		return nil
	}
	if due, err := todo.getDateTimeProp(ComponentPropertyDue); err == nil {
		todo.SetDtStart(due.Add(-d))
		return nil
	}
	return ErrStartAndEndDateNotDefined
}

func (todo *VTodo) AddAlarm() *VAlarm {
	return todo.addAlarm()
}

func (todo *VTodo) AddVAlarm(a *VAlarm) {
	todo.addVAlarm(a)
}

func (todo *VTodo) Alarms() []*VAlarm {
	return todo.alarms()
}

func (todo *VTodo) GetDueAt() (time.Time, error) {
	return todo.getTimeProp(ComponentPropertyDue, false)
}

func (todo *VTodo) GetAllDayDueAt() (time.Time, error) {
	return todo.getTimeProp(ComponentPropertyDue, true)
}

func (todo *VTodo) Recurrence(ops ...any) (*RecurringComponent, error) {
	return todo.recurrence(todo, ComponentPropertyDue, ops...)
}

type VJournal struct {
	ComponentBase
}

func (journal *VJournal) SerializeTo(w io.Writer, serialConfig *SerializationConfiguration) error {
	return journal.ComponentBase.serializeThis(w, ComponentVJournal, serialConfig)
}

func (journal *VJournal) Serialize(serialConfig *SerializationConfiguration) string {
	return serializeString(journal, serialConfig)
}

func NewJournal(uniqueId string) *VJournal {
	return &VJournal{
		NewComponent(uniqueId),
	}
}

func (cal *Calendar) AddJournal(id string) *VJournal {
	e := NewJournal(id)
	cal.Components = append(cal.Components, e)
	return e
}

func (cal *Calendar) AddVJournal(e *VJournal) {
	cal.Components = append(cal.Components, e)
}

func (cal *Calendar) Journals() []*VJournal {
	var r []*VJournal
	for i := range cal.Components {
		if journal, ok := cal.Components[i].(*VJournal); ok {
			r = append(r, journal)
		}
	}
	return r
}

// Recurrence of a journal entry; entries have no duration.
func (journal *VJournal) Recurrence(ops ...any) (*RecurringComponent, error) {
	return journal.recurrence(journal, ComponentPropertyDtEnd, ops...)
}

type VBusy struct {
	ComponentBase
}

func (busy *VBusy) Serialize(serialConfig *SerializationConfiguration) string {
	return serializeString(busy, serialConfig)
}

func (busy *VBusy) SerializeTo(w io.Writer, serialConfig *SerializationConfiguration) error {
	return busy.ComponentBase.serializeThis(w, ComponentVFreeBusy, serialConfig)
}

func NewBusy(uniqueId string) *VBusy {
	return &VBusy{
		NewComponent(uniqueId),
	}
}

func (cal *Calendar) AddBusy(id string) *VBusy {
	e := NewBusy(id)
	cal.Components = append(cal.Components, e)
	return e
}

func (cal *Calendar) AddVBusy(e *VBusy) {
	cal.Components = append(cal.Components, e)
}

func (cal *Calendar) Busys() []*VBusy {
	var r []*VBusy
	for i := range cal.Components {
		if busy, ok := cal.Components[i].(*VBusy); ok {
			r = append(r, busy)
		}
	}
	return r
}

// AddFreeBusy appends a FREEBUSY property. Periods are written in UTC.
func (busy *VBusy) AddFreeBusy(periods PeriodList, fbType FreeBusyTimeType) error {
	utc := make(PeriodList, 0, len(periods))
	for _, p := range periods {
		start, err := p.Start().In(NewUTCDateTime(1970, time.January, 1, 0, 0, 0), nil)
		if err != nil {
			return err
		}
		end, err := p.End().In(start, nil)
		if err != nil {
			return err
		}
		up, err := NewPeriod(start, end)
		if err != nil {
			return err
		}
		utc = append(utc, up)
	}
	busy.AddProperty(ComponentPropertyFreebusy, utc.String(), WithFbType(fbType))
	return nil
}

// FreeBusy returns the FREEBUSY periods with their FBTYPE, BUSY when absent.
func (busy *VBusy) FreeBusy() (map[FreeBusyTimeType]PeriodList, error) {
	out := map[FreeBusyTimeType]PeriodList{}
	for _, prop := range busy.GetProperties(ComponentPropertyFreebusy) {
		pl, err := ParsePeriodList(prop.Value, prop.ICalParameters)
		if err != nil {
			return nil, valueError(prop.IANAToken, prop.Value, err)
		}
		t := FreeBusyTimeType(prop.firstParameter(ParameterFbtype))
		if t == "" {
			t = FreeBusyTimeTypeBusy
		}
		out[t] = append(out[t], pl...)
	}
	return out, nil
}

type VTimezone struct {
	ComponentBase
}

func (timezone *VTimezone) Serialize(serialConfig *SerializationConfiguration) string {
	return serializeString(timezone, serialConfig)
}

func (timezone *VTimezone) SerializeTo(w io.Writer, serialConfig *SerializationConfiguration) error {
	return timezone.ComponentBase.serializeThis(w, ComponentVTimezone, serialConfig)
}

func (timezone *VTimezone) AddStandard() *Standard {
	e := NewStandard()
	timezone.Components = append(timezone.Components, e)
	return e
}

func (timezone *VTimezone) AddDaylight() *Daylight {
	e := NewDaylight()
	timezone.Components = append(timezone.Components, e)
	return e
}

func (timezone *VTimezone) TzId() string {
	if p := timezone.GetProperty(ComponentPropertyTzid); p != nil {
		return p.Value
	}
	return ""
}

func NewTimezone(tzId string) *VTimezone {
	return &VTimezone{
		ComponentBase{
			Properties: []IANAProperty{
				{BaseProperty{IANAToken: string(ComponentPropertyTzid), Value: tzId, ICalParameters: map[string][]string{}}},
			},
		},
	}
}

func (cal *Calendar) AddTimezone(id string) *VTimezone {
	e := NewTimezone(id)
	cal.Components = append(cal.Components, e)
	return e
}

func (cal *Calendar) AddVTimezone(e *VTimezone) {
	cal.Components = append(cal.Components, e)
}

func (cal *Calendar) Timezones() []*VTimezone {
	var r []*VTimezone
	for i := range cal.Components {
		if tz, ok := cal.Components[i].(*VTimezone); ok {
			r = append(r, tz)
		}
	}
	return r
}

type VAlarm struct {
	ComponentBase
}

func (c *VAlarm) Serialize(serialConfig *SerializationConfiguration) string {
	return serializeString(c, serialConfig)
}

func (c *VAlarm) SerializeTo(w io.Writer, serialConfig *SerializationConfiguration) error {
	return c.ComponentBase.serializeThis(w, ComponentVAlarm, serialConfig)
}

func NewAlarm() *VAlarm {
	return &VAlarm{}
}

func (c *VAlarm) SetAction(a Action, params ...PropertyParameter) {
	c.SetProperty(ComponentPropertyAction, string(a), params...)
}

func (c *VAlarm) SetTrigger(s string, params ...PropertyParameter) {
	c.SetProperty(ComponentPropertyTrigger, s, params...)
}

// SetTriggerDuration fires the alarm at an offset from the start, or from
// the end when relatedToEnd is set.
func (c *VAlarm) SetTriggerDuration(d time.Duration, relatedToEnd bool) {
	if relatedToEnd {
		c.SetTrigger(FormatDuration(d), WithRelated("END"))
		return
	}
	c.SetTrigger(FormatDuration(d))
}

// SetRepeat makes the alarm fire count more times, every d.
func (c *VAlarm) SetRepeat(count int, d time.Duration) {
	c.SetProperty(ComponentPropertyRepeat, strconv.Itoa(count))
	c.SetProperty(ComponentPropertyDuration, FormatDuration(d))
}

// AlarmTrigger is a decoded TRIGGER. Absolute is set for VALUE=DATE-TIME
// triggers; otherwise Offset applies to the start or the end of the
// occurrence.
type AlarmTrigger struct {
	Offset       time.Duration
	RelatedToEnd bool
	Absolute     CalDateTime
}

func (c *VAlarm) GetTrigger() (AlarmTrigger, error) {
	prop := c.GetProperty(ComponentPropertyTrigger)
	if prop == nil {
		return AlarmTrigger{}, fmt.Errorf("%w: %s", ErrorPropertyNotFound, ComponentPropertyTrigger)
	}
	v, err := prop.TypedValue()
	if err != nil {
		return AlarmTrigger{}, err
	}
	switch v := v.(type) {
	case CalDateTime:
		return AlarmTrigger{Absolute: v}, nil
	case time.Duration:
		return AlarmTrigger{
			Offset:       v,
			RelatedToEnd: strings.EqualFold(prop.firstParameter(ParameterRelated), "END"),
		}, nil
	}
	return AlarmTrigger{}, valueError(prop.IANAToken, prop.Value, errors.New("unsupported trigger"))
}

// GetRepetition returns REPEAT and DURATION; both or neither must be set.
func (c *VAlarm) GetRepetition() (int, time.Duration, error) {
	repeatProp := c.GetProperty(ComponentPropertyRepeat)
	durationProp := c.GetProperty(ComponentPropertyDuration)
	if repeatProp == nil || durationProp == nil {
		return 0, 0, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(repeatProp.Value))
	if err != nil || n < 0 {
		return 0, 0, valueError(repeatProp.IANAToken, repeatProp.Value, errors.New("not a count"))
	}
	d, err := ParseDuration(durationProp.Value)
	if err != nil {
		return 0, 0, valueError(durationProp.IANAToken, durationProp.Value, err)
	}
	return n, d, nil
}

type Standard struct {
	ComponentBase
}

func NewStandard() *Standard {
	return &Standard{}
}

func (standard *Standard) Serialize(serialConfig *SerializationConfiguration) string {
	return serializeString(standard, serialConfig)
}

func (standard *Standard) SerializeTo(w io.Writer, serialConfig *SerializationConfiguration) error {
	return standard.ComponentBase.serializeThis(w, ComponentStandard, serialConfig)
}

// Recurrence returns the onsets of the observance in local time.
func (standard *Standard) Recurrence(ops ...any) (*RecurringComponent, error) {
	return standard.recurrence(standard, ComponentPropertyDtEnd, ops...)
}

type Daylight struct {
	ComponentBase
}

func NewDaylight() *Daylight {
	return &Daylight{}
}

func (daylight *Daylight) Serialize(serialConfig *SerializationConfiguration) string {
	return serializeString(daylight, serialConfig)
}

func (daylight *Daylight) SerializeTo(w io.Writer, serialConfig *SerializationConfiguration) error {
	return daylight.ComponentBase.serializeThis(w, ComponentDaylight, serialConfig)
}

func (daylight *Daylight) Recurrence(ops ...any) (*RecurringComponent, error) {
	return daylight.recurrence(daylight, ComponentPropertyDtEnd, ops...)
}

// SetOffsets writes TZOFFSETFROM and TZOFFSETTO of an observance.
func (cb *ComponentBase) SetOffsets(from, to UTCOffset) {
	cb.SetProperty(ComponentPropertyTzoffsetfrom, from.String())
	cb.SetProperty(ComponentPropertyTzoffsetto, to.String())
}

type GeneralComponent struct {
	ComponentBase
	Token string
}

func (general *GeneralComponent) Serialize(serialConfig *SerializationConfiguration) string {
	return serializeString(general, serialConfig)
}

func (general *GeneralComponent) SerializeTo(w io.Writer, serialConfig *SerializationConfiguration) error {
	return general.ComponentBase.serializeThis(w, ComponentType(general.Token), serialConfig)
}

func GeneralParseComponent(cs *CalendarStream, startLine *BaseProperty) (Component, error) {
	cb, err := ParseComponent(cs, startLine)
	if err != nil {
		return nil, err
	}
	switch ComponentType(startLine.Value) {
	case ComponentVEvent:
		return &VEvent{cb}, nil
	case ComponentVTodo:
		return &VTodo{cb}, nil
	case ComponentVJournal:
		return &VJournal{cb}, nil
	case ComponentVFreeBusy:
		return &VBusy{cb}, nil
	case ComponentVTimezone:
		return &VTimezone{cb}, nil
	case ComponentVAlarm:
		return &VAlarm{cb}, nil
	case ComponentStandard:
		return &Standard{cb}, nil
	case ComponentDaylight:
		return &Daylight{cb}, nil
	}
	return &GeneralComponent{ComponentBase: cb, Token: startLine.Value}, nil
}

// ParseComponent reads properties and subcomponents up to the END matching
// startLine.
func ParseComponent(cs *CalendarStream, startLine *BaseProperty) (ComponentBase, error) {
	cb := ComponentBase{}
	if ComponentType(startLine.Value) == ComponentVCalendar {
		return cb, cs.syntaxError(startLine, ErrMalformedCalendar)
	}
	begin := cs.Line()
	for {
		line, err := cs.ReadProperty()
		if err == io.EOF {
			se := cs.syntaxError(startLine, fmt.Errorf("%w: %s", ErrUnterminatedComponent, startLine.Value))
			se.Line = begin
			return cb, se
		}
		if err != nil {
			return cb, err
		}
		switch line.IANAToken {
		case "END":
			if !strings.EqualFold(line.Value, startLine.Value) {
				return cb, cs.syntaxError(line, fmt.Errorf("%w: expected END:%s", ErrUnbalancedEnd, startLine.Value))
			}
			return cb, nil
		case "BEGIN":
			co, err := GeneralParseComponent(cs, line)
			if err != nil {
				return cb, err
			}
			cb.Components = append(cb.Components, co)
		default:
			if err := cs.checkValue(line); err != nil {
				return cb, err
			}
			cb.Properties = append(cb.Properties, IANAProperty{*line})
		}
	}
}
