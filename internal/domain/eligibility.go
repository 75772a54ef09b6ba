package domain

import "time"

// SentHistory maps a notification kind to the last time it was sent for one
// deadline. A missing key means the kind was never sent.
type SentHistory map[NotificationKind]time.Time

// Decision is the outcome of one eligibility evaluation. Due lists every kind
// that should fire this tick; MarkOverdue signals that the caller should
// transition the deadline to overdue (the evaluation itself has no side
// effects).
type Decision struct {
	Due         []NotificationKind
	MarkOverdue bool
}

// InQuietHours returns true if local time (minutes since midnight) falls
// inside [fromM, toM). Supports wrap-around windows like 22:00-08:00
// (fromM > toM). fromM == toM means no quiet hours.
func InQuietHours(localM, fromM, toM int) bool {
	if fromM == toM {
		return false
	}
	if fromM < toM {
		return localM >= fromM && localM < toM
	}
	// wrap: [from..1440) U [0..to)
	return localM >= fromM || localM < toM
}

// Evaluate decides which notification kinds are due for one deadline at the
// given instant. The evaluation is pure: it reads the deadline, the owner's
// settings and subscriptions, and the per-kind send history, and writes
// nothing. A deadline may be due for several kinds in one tick; the caller
// dispatches and records each independently.
func Evaluate(d Deadline, s NotificationSettings, subs []Subscription, now time.Time, sent SentHistory) Decision {
	var dec Decision

	// The overdue transition is signaled regardless of quiet hours and
	// toggles: it is a status change, not a notification.
	if d.Status == StatusActive && d.DueDate != nil && d.DueDate.Before(now) {
		dec.MarkOverdue = true
	}

	if d.Status != StatusActive || !s.Enabled {
		return dec
	}

	loc, err := time.LoadLocation(s.TZ)
	if err != nil {
		loc = time.UTC
	}
	local := now.In(loc)
	localM := local.Hour()*60 + local.Minute()

	// Quiet hours gate: nothing fires, whatever else is met.
	if InQuietHours(localM, s.QuietStartM, s.QuietEndM) {
		return dec
	}

	hourMatch := local.Hour() == s.NotificationHour
	futureDue := d.DueDate != nil && d.DueDate.After(now)

	if s.DailyReminders && subscribed(subs, KindDaily) &&
		futureDue && hourMatch && !sentSameDay(sent, KindDaily, local, loc) {
		dec.Due = append(dec.Due, KindDaily)
	}

	if s.WeeklyReminders && subscribed(subs, KindWeekly) &&
		futureDue && hourMatch && weekdayIn(s.WeeklyDays, local.Weekday()) &&
		!sentSameWeek(sent, KindWeekly, local, loc) {
		dec.Due = append(dec.Due, KindWeekly)
	}

	// Halfway is a one-shot: once sent it never fires again, even if the
	// midpoint is recrossed.
	if s.HalfwayReminders && subscribed(subs, KindHalfway) && futureDue {
		if _, ok := sent[KindHalfway]; !ok {
			mid := d.CreatedAt.Add(d.DueDate.Sub(d.CreatedAt) / 2)
			if !now.Before(mid) {
				dec.Due = append(dec.Due, KindHalfway)
			}
		}
	}

	if s.DaysBeforeWarning > 0 && subscribed(subs, KindOverdueWarning) && d.DueDate != nil {
		horizon := now.Add(time.Duration(s.DaysBeforeWarning) * 24 * time.Hour)
		// Within the warning horizon, or already past due while the status
		// has not flipped to overdue yet.
		closing := (d.DueDate.After(now) && !d.DueDate.After(horizon)) || d.DueDate.Before(now)
		if closing && !sentSameDay(sent, KindOverdueWarning, local, loc) {
			dec.Due = append(dec.Due, KindOverdueWarning)
		}
	}

	return dec
}

func subscribed(subs []Subscription, kind NotificationKind) bool {
	for _, sub := range subs {
		if sub.Kind == kind && sub.Active {
			return true
		}
	}
	return false
}

func weekdayIn(days []int, wd time.Weekday) bool {
	// time.Weekday has Sunday=0; settings use Monday=0..Sunday=6.
	idx := (int(wd) + 6) % 7
	for _, d := range days {
		if d == idx {
			return true
		}
	}
	return false
}

func sentSameDay(sent SentHistory, kind NotificationKind, local time.Time, loc *time.Location) bool {
	at, ok := sent[kind]
	if !ok {
		return false
	}
	la := at.In(loc)
	return la.Year() == local.Year() && la.YearDay() == local.YearDay()
}

func sentSameWeek(sent SentHistory, kind NotificationKind, local time.Time, loc *time.Location) bool {
	at, ok := sent[kind]
	if !ok {
		return false
	}
	y1, w1 := at.In(loc).ISOWeek()
	y2, w2 := local.ISOWeek()
	return y1 == y2 && w1 == w2
}
