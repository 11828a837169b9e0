package ics

import (
	"fmt"
	"reflect"
	"slices"
	"time"
)

// EvaluationOptions configures a RecurringComponent. Restriction and
// EvaluationMode, when set, override the values carried by each rule.
type EvaluationOptions struct {
	Resolver       TimeZoneResolver
	Restriction    RestrictionType
	EvaluationMode EvaluationMode
}

func defaultEvaluationOptions() *EvaluationOptions {
	return &EvaluationOptions{Resolver: DefaultResolver}
}

// parseEvaluationOps accepts a TimeZoneResolver, RestrictionType,
// EvaluationMode or *EvaluationOptions.
func parseEvaluationOps(ops []any) (*EvaluationOptions, error) {
	opts := defaultEvaluationOptions()
	for opi, op := range ops {
		switch op := op.(type) {
		case *EvaluationOptions:
			c := *op
			if c.Resolver == nil {
				c.Resolver = DefaultResolver
			}
			opts = &c
		case TimeZoneResolver:
			opts.Resolver = op
		case RestrictionType:
			opts.Restriction = op
		case EvaluationMode:
			opts.EvaluationMode = op
		case error:
			return nil, op
		default:
			return nil, fmt.Errorf("unknown op %d of type %s", opi, reflect.TypeOf(op))
		}
	}
	return opts, nil
}

// Occurrence is one instance of a recurring component.
type Occurrence struct {
	Period Period
	Source Component
}

// AlarmOccurrence is one firing of an alarm. Period is the occurrence the
// alarm belongs to and is zero for alarms with an absolute trigger.
type AlarmOccurrence struct {
	Alarm   *VAlarm
	Trigger CalDateTime
	Period  Period
	Source  Component
}

type evaluatedPeriod struct {
	period Period
	at     time.Time
}

// evaluationState is the contiguous span [from, to) already evaluated and the
// sorted periods found in it.
type evaluationState struct {
	covered  bool
	from, to time.Time
	periods  []evaluatedPeriod
	rules    []*RuleEvaluator
	exRules  []*RuleEvaluator
}

// RecurringComponent expands DTSTART, RRULE, RDATE, EXRULE and EXDATE into
// periods. Results are cached per evaluated window; every mutator clears the
// cache.
//
// A RecurringComponent is not safe for concurrent use. Distinct components
// may be evaluated concurrently.
type RecurringComponent struct {
	source   Component
	start    CalDateTime
	duration time.Duration
	rrules   []*RecurrencePattern
	exrules  []*RecurrencePattern
	rdates   []PeriodList
	exdates  []PeriodList
	alarms   []*VAlarm
	opts     *EvaluationOptions

	state evaluationState
}

// NewRecurringComponent starts a recurrence at start. Date-only starts last a
// day unless a duration is set.
func NewRecurringComponent(start CalDateTime, ops ...any) (*RecurringComponent, error) {
	if start.IsZero() {
		return nil, errMissingDtStart
	}
	opts, err := parseEvaluationOps(ops)
	if err != nil {
		return nil, err
	}
	rc := &RecurringComponent{start: start, opts: opts}
	if !start.HasTime() {
		rc.duration = 24 * time.Hour
	}
	return rc, nil
}

func (rc *RecurringComponent) Start() CalDateTime {
	return rc.start
}

func (rc *RecurringComponent) Duration() time.Duration {
	return rc.duration
}

func (rc *RecurringComponent) Source() Component {
	return rc.source
}

func (rc *RecurringComponent) resolver() TimeZoneResolver {
	return rc.opts.Resolver
}

func (rc *RecurringComponent) SetStart(start CalDateTime) {
	rc.start = start
	rc.ClearEvaluation()
}

func (rc *RecurringComponent) SetDuration(d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("%w: %s", ErrNegativeDuration, FormatDuration(d))
	}
	rc.duration = d
	rc.ClearEvaluation()
	return nil
}

func (rc *RecurringComponent) SetSource(c Component) {
	rc.source = c
}

func (rc *RecurringComponent) AddRecurrenceRule(rp *RecurrencePattern) {
	rc.rrules = append(rc.rrules, rp)
	rc.ClearEvaluation()
}

func (rc *RecurringComponent) AddExceptionRule(rp *RecurrencePattern) {
	rc.exrules = append(rc.exrules, rp)
	rc.ClearEvaluation()
}

func (rc *RecurringComponent) AddRecurrenceDates(pl PeriodList) {
	rc.rdates = append(rc.rdates, pl)
	rc.ClearEvaluation()
}

func (rc *RecurringComponent) AddExceptionDates(pl PeriodList) {
	rc.exdates = append(rc.exdates, pl)
	rc.ClearEvaluation()
}

func (rc *RecurringComponent) AddAlarm(a *VAlarm) {
	rc.alarms = append(rc.alarms, a)
}

func (rc *RecurringComponent) RecurrenceRules() []*RecurrencePattern {
	return rc.rrules
}

func (rc *RecurringComponent) ExceptionRules() []*RecurrencePattern {
	return rc.exrules
}

func (rc *RecurringComponent) RecurrenceDates() []PeriodList {
	return rc.rdates
}

func (rc *RecurringComponent) ExceptionDates() []PeriodList {
	return rc.exdates
}

// ClearEvaluation forgets every evaluated window.
func (rc *RecurringComponent) ClearEvaluation() {
	rc.state = evaluationState{}
}

// IsRecurring reports whether anything besides DTSTART produces instances.
func (rc *RecurringComponent) IsRecurring() bool {
	return len(rc.rrules) > 0 || len(rc.rdates) > 0
}

func (rc *RecurringComponent) newEvaluator(rp *RecurrencePattern) (*RuleEvaluator, error) {
	if rc.opts.Restriction != RestrictionDefault || rc.opts.EvaluationMode != AdjustAutomatically {
		rp = rp.Clone()
		if rc.opts.Restriction != RestrictionDefault {
			rp.Restriction = rc.opts.Restriction
		}
		if rc.opts.EvaluationMode != AdjustAutomatically {
			rp.EvaluationMode = rc.opts.EvaluationMode
		}
	}
	return NewRuleEvaluator(rp, rc.start, rc.resolver())
}

func (rc *RecurringComponent) prepare() error {
	if rc.state.rules != nil || rc.state.exRules != nil {
		return nil
	}
	rules := make([]*RuleEvaluator, 0, len(rc.rrules))
	for _, rp := range rc.rrules {
		ev, err := rc.newEvaluator(rp)
		if err != nil {
			return fmt.Errorf("RRULE %s: %w", rp, err)
		}
		rules = append(rules, ev)
	}
	exRules := make([]*RuleEvaluator, 0, len(rc.exrules))
	for _, rp := range rc.exrules {
		ev, err := rc.newEvaluator(rp)
		if err != nil {
			return fmt.Errorf("EXRULE %s: %w", rp, err)
		}
		exRules = append(exRules, ev)
	}
	rc.state.rules, rc.state.exRules = rules, exRules
	return nil
}

// Evaluate returns the periods starting in [from, to) in ascending order.
// Only the part of the window not evaluated before is computed; the cached
// span is extended to stay contiguous.
func (rc *RecurringComponent) Evaluate(from, to time.Time) ([]Period, error) {
	if !to.After(from) {
		return nil, nil
	}
	if err := rc.extend(from, to); err != nil {
		return nil, err
	}
	var out []Period
	for _, ep := range rc.state.periods {
		if !ep.at.Before(from) && ep.at.Before(to) {
			out = append(out, ep.period)
		}
	}
	return out, nil
}

func (rc *RecurringComponent) extend(from, to time.Time) error {
	if err := rc.prepare(); err != nil {
		return err
	}
	st := &rc.state
	type span struct{ from, to time.Time }
	var missing []span
	switch {
	case !st.covered:
		missing = append(missing, span{from, to})
	default:
		if from.Before(st.from) {
			missing = append(missing, span{from, st.from})
		}
		if to.After(st.to) {
			missing = append(missing, span{st.to, to})
		}
	}
	for _, m := range missing {
		found, err := rc.evaluateRange(m.from, m.to)
		if err != nil {
			return err
		}
		st.periods = rc.merge(st.periods, found)
	}
	if !st.covered {
		st.from, st.to, st.covered = from, to, true
		return nil
	}
	if from.Before(st.from) {
		st.from = from
	}
	if to.After(st.to) {
		st.to = to
	}
	return nil
}

func (rc *RecurringComponent) occurrencePeriod(start CalDateTime) (Period, error) {
	return NewPeriodWithDuration(start, rc.duration)
}

// evaluateRange computes the periods starting in [from, to) from scratch.
func (rc *RecurringComponent) evaluateRange(from, to time.Time) ([]evaluatedPeriod, error) {
	r := rc.resolver()
	var found []evaluatedPeriod
	add := func(p Period) error {
		at, err := p.Start().Instant(r)
		if err != nil {
			return err
		}
		if !at.Before(from) && at.Before(to) {
			found = append(found, evaluatedPeriod{period: p, at: at})
		}
		return nil
	}
	first, err := rc.occurrencePeriod(rc.start)
	if err != nil {
		return nil, err
	}
	if err := add(first); err != nil {
		return nil, err
	}
	for _, ev := range rc.state.rules {
		occs, err := ev.Evaluate(from, to)
		if err != nil {
			return nil, fmt.Errorf("RRULE %s: %w", ev.Pattern(), err)
		}
		for _, occ := range occs {
			p, err := rc.occurrencePeriod(occ)
			if err != nil {
				return nil, err
			}
			if err := add(p); err != nil {
				return nil, err
			}
		}
	}
	for _, pl := range rc.rdates {
		for _, rd := range pl {
			p := rd
			p.MatchesDateOnly = false
			if !rd.HasEnd() && !rd.HasDuration() {
				if p, err = rc.occurrencePeriod(rd.Start()); err != nil {
					return nil, err
				}
			}
			if err := add(p); err != nil {
				return nil, err
			}
		}
	}
	if len(found) == 0 {
		return nil, nil
	}
	excluded, err := rc.exclusions(from, to)
	if err != nil {
		return nil, err
	}
	kept := found[:0]
	for _, ep := range found {
		if !rc.isExcluded(ep, excluded) {
			kept = append(kept, ep)
		}
	}
	return kept, nil
}

func (rc *RecurringComponent) exclusions(from, to time.Time) ([]time.Time, error) {
	var out []time.Time
	for _, ev := range rc.state.exRules {
		occs, err := ev.Evaluate(from, to)
		if err != nil {
			return nil, fmt.Errorf("EXRULE %s: %w", ev.Pattern(), err)
		}
		for _, occ := range occs {
			at, err := occ.Instant(rc.resolver())
			if err != nil {
				return nil, err
			}
			out = append(out, at)
		}
	}
	return out, nil
}

// isExcluded applies EXRULE instants and EXDATE values. Date-only EXDATEs
// remove the whole day in DTSTART's zone.
func (rc *RecurringComponent) isExcluded(ep evaluatedPeriod, exruleInstants []time.Time) bool {
	for _, t := range exruleInstants {
		if t.Equal(ep.at) {
			return true
		}
	}
	if len(rc.exdates) == 0 {
		return false
	}
	r := rc.resolver()
	start := ep.period.Start()
	if start.HasTime() && rc.start.HasTime() {
		if s, err := start.In(rc.start, r); err == nil {
			start = s
		}
	}
	candidate := NewStartPeriod(start)
	for _, pl := range rc.exdates {
		for _, ex := range pl {
			if ex.Equal(candidate, r) {
				return true
			}
		}
	}
	return false
}

// merge adds found to the sorted periods, dropping periods equal to one
// already present.
func (rc *RecurringComponent) merge(periods, found []evaluatedPeriod) []evaluatedPeriod {
	r := rc.resolver()
	all := append(periods, found...)
	slices.SortStableFunc(all, func(a, b evaluatedPeriod) int {
		if c := compareTime(a.at, b.at); c != 0 {
			return c
		}
		ae, err1 := a.period.End().Instant(r)
		be, err2 := b.period.End().Instant(r)
		if err1 != nil || err2 != nil {
			return 0
		}
		return compareTime(ae, be)
	})
	out := all[:0]
	for _, ep := range all {
		dup := false
		for i := len(out) - 1; i >= 0 && out[i].at.Equal(ep.at); i-- {
			if out[i].period.Equal(ep.period, r) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, ep)
		}
	}
	return out
}

// Occurrences pairs each evaluated period with the source component.
func (rc *RecurringComponent) Occurrences(from, to time.Time) ([]Occurrence, error) {
	periods, err := rc.Evaluate(from, to)
	if err != nil {
		return nil, err
	}
	out := make([]Occurrence, len(periods))
	for i, p := range periods {
		out[i] = Occurrence{Period: p, Source: rc.source}
	}
	return out, nil
}

// PollAlarms returns the alarm firings in [from, to), including repetitions,
// ordered by trigger time.
func (rc *RecurringComponent) PollAlarms(from, to time.Time) ([]AlarmOccurrence, error) {
	r := rc.resolver()
	var out []AlarmOccurrence
	emit := func(ao AlarmOccurrence, repeat int, every time.Duration) error {
		for i := 0; i <= repeat; i++ {
			ao := ao
			ao.Trigger = ao.Trigger.Add(time.Duration(i) * every)
			at, err := ao.Trigger.Instant(r)
			if err != nil {
				return err
			}
			if !at.Before(from) && at.Before(to) {
				out = append(out, ao)
			}
		}
		return nil
	}
	for _, alarm := range rc.alarms {
		trigger, err := alarm.GetTrigger()
		if err != nil {
			return nil, err
		}
		repeat, every, err := alarm.GetRepetition()
		if err != nil {
			return nil, err
		}
		if trigger.Absolute.HasTime() {
			if err := emit(AlarmOccurrence{Alarm: alarm, Trigger: trigger.Absolute, Source: rc.source}, repeat, every); err != nil {
				return nil, err
			}
			continue
		}
		reach := trigger.Offset
		if reach < 0 {
			reach = -reach
		}
		reach += time.Duration(repeat)*every + rc.duration
		periods, err := rc.Evaluate(from.Add(-reach), to.Add(reach))
		if err != nil {
			return nil, err
		}
		for _, p := range periods {
			base := p.Start()
			if trigger.RelatedToEnd {
				base = p.End()
			}
			ao := AlarmOccurrence{Alarm: alarm, Trigger: base.Add(trigger.Offset), Period: p, Source: rc.source}
			if err := emit(ao, repeat, every); err != nil {
				return nil, err
			}
		}
	}
	slices.SortStableFunc(out, func(a, b AlarmOccurrence) int {
		c, _ := a.Trigger.Compare(b.Trigger, r)
		return c
	})
	return out, nil
}
