package ics

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

type busySpan struct {
	start, end time.Time
	fbType     FreeBusyTimeType
}

// busyType maps an event to the FBTYPE it blocks time with. Transparent and
// cancelled events do not block time.
func busyType(event *VEvent) (FreeBusyTimeType, bool) {
	if p := event.GetProperty(ComponentPropertyTransp); p != nil && strings.EqualFold(p.Value, string(TransparencyTransparent)) {
		return "", false
	}
	if p := event.GetProperty(ComponentPropertyStatus); p != nil {
		switch ObjectStatus(strings.ToUpper(p.Value)) {
		case ObjectStatusCancelled:
			return "", false
		case ObjectStatusTentative:
			return FreeBusyTimeTypeBusyTentative, true
		}
	}
	return FreeBusyTimeTypeBusy, true
}

// mergeSpans joins overlapping and touching spans of the same type.
func mergeSpans(spans []busySpan) []busySpan {
	slices.SortFunc(spans, func(a, b busySpan) int {
		if c := strings.Compare(string(a.fbType), string(b.fbType)); c != 0 {
			return c
		}
		return compareTime(a.start, b.start)
	})
	var out []busySpan
	for _, s := range spans {
		if n := len(out); n > 0 && out[n-1].fbType == s.fbType && !s.start.After(out[n-1].end) {
			if s.end.After(out[n-1].end) {
				out[n-1].end = s.end
			}
			continue
		}
		out = append(out, s)
	}
	return out
}

// FreeBusy summarizes the time blocked by the calendar's events in
// [from, to) as a VFREEBUSY component. Busy periods are clipped to the
// window and merged per FBTYPE.
func (cal *Calendar) FreeBusy(from, to time.Time, ops ...any) (*VBusy, error) {
	ops = append([]any{cal.TimeZoneResolver()}, ops...)
	r := cal.TimeZoneResolver()
	var spans []busySpan
	for _, event := range cal.Events() {
		fbType, blocks := busyType(event)
		if !blocks || !event.HasProperty(ComponentPropertyDtStart) {
			continue
		}
		rc, err := event.Recurrence(ops...)
		if err != nil {
			return nil, err
		}
		// Occurrences starting before the window may still overlap it.
		periods, err := rc.Evaluate(from.Add(-rc.Duration()), to)
		if err != nil {
			return nil, err
		}
		for _, p := range periods {
			start, err := p.Start().Instant(r)
			if err != nil {
				return nil, err
			}
			end, err := p.End().Instant(r)
			if err != nil {
				return nil, err
			}
			if !end.After(from) || !end.After(start) {
				continue
			}
			if start.Before(from) {
				start = from
			}
			if end.After(to) {
				end = to
			}
			spans = append(spans, busySpan{start: start, end: end, fbType: fbType})
		}
	}

	busy := NewBusy(uuid.NewString())
	busy.SetDtStampTime(time.Now())
	busy.SetStartAt(from)
	busy.SetEndAt(to)
	byType := map[FreeBusyTimeType]PeriodList{}
	var order []FreeBusyTimeType
	for _, s := range mergeSpans(spans) {
		p, err := NewPeriod(CalDateTimeFromTime(s.start.UTC()), CalDateTimeFromTime(s.end.UTC()))
		if err != nil {
			return nil, err
		}
		if _, seen := byType[s.fbType]; !seen {
			order = append(order, s.fbType)
		}
		byType[s.fbType] = append(byType[s.fbType], p)
	}
	for _, t := range order {
		if err := busy.AddFreeBusy(byType[t], t); err != nil {
			return nil, err
		}
	}
	return busy, nil
}
