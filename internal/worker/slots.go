package worker

import (
	"sort"
	"time"
)

// SlotPlanner places outbound messages into business-hours send slots.
// Constraints: a per-day, per-channel message limit, a minimum gap
// after the day's latest message, and a bounded lookahead when the
// preferred day is full. All placement happens in the configured
// timezone; returned slots are UTC.
type SlotPlanner struct {
	Location      *time.Location
	StartHour     int
	EndHour       int
	MinGap        time.Duration
	LookaheadDays int
}

// NewSchedule starts a planning session over the channel's existing
// send times, so consecutive placements space themselves out.
func (p *SlotPlanner) NewSchedule(taken []time.Time) *Schedule {
	s := &Schedule{planner: p, days: make(map[string][]time.Time)}
	for _, t := range taken {
		s.add(t)
	}
	return s
}

// Schedule tracks send times per day, both pre-existing and placed in
// this session.
type Schedule struct {
	planner *SlotPlanner
	days    map[string][]time.Time
}

func (s *Schedule) add(t time.Time) {
	key := s.dayKey(t)
	times := append(s.days[key], t.In(s.planner.Location))
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })
	s.days[key] = times
}

func (s *Schedule) dayKey(t time.Time) string {
	return t.In(s.planner.Location).Format("2006-01-02")
}

// Next places one message preferring now+dayDelay days, overflowing to
// later days when the preferred day is at its limit or out of business
// hours. Returns false when no slot exists within the lookahead.
func (s *Schedule) Next(now time.Time, dailyLimit, dayDelay int) (time.Time, bool) {
	p := s.planner
	if dailyLimit <= 0 {
		return time.Time{}, false
	}

	local := now.In(p.Location)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, p.Location)
	day = day.AddDate(0, 0, dayDelay)

	lookahead := p.LookaheadDays
	if lookahead <= 0 {
		lookahead = 14
	}

	for checked := 0; checked < lookahead; checked++ {
		if slot, ok := s.slotOnDay(day, local, dailyLimit); ok {
			s.add(slot)
			return slot.UTC(), true
		}
		day = day.AddDate(0, 0, 1)
	}
	return time.Time{}, false
}

// slotOnDay finds the earliest legal slot on one day: business start,
// or the day's latest message plus the minimum gap, never in the past.
func (s *Schedule) slotOnDay(day, now time.Time, dailyLimit int) (time.Time, bool) {
	p := s.planner

	start := day.Add(time.Duration(p.StartHour) * time.Hour)
	end := day.Add(time.Duration(p.EndHour) * time.Hour)

	// Same-day placement starts just after the current moment.
	if now.After(start) {
		start = now.Add(time.Minute)
	}
	if !start.Before(end) {
		return time.Time{}, false
	}

	times := s.days[day.Format("2006-01-02")]
	if len(times) >= dailyLimit {
		return time.Time{}, false
	}
	if len(times) == 0 {
		return start, true
	}

	slot := times[len(times)-1].Add(p.MinGap)
	if slot.Before(start) {
		slot = start
	}
	if !slot.Before(end) {
		return time.Time{}, false
	}
	return slot, true
}
