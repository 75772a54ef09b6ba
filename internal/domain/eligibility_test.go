package domain

import (
	"testing"
	"time"
)

// helper: build a time in given tz and return its UTC
func mustLocalUTC(t *testing.T, tz string, y int, m time.Month, d, hh, mm int) time.Time {
	t.Helper()
	loc, err := time.LoadLocation(tz)
	if err != nil {
		t.Fatalf("load tz: %v", err)
	}
	return time.Date(y, m, d, hh, mm, 0, 0, loc).UTC()
}

func ptrTime(t time.Time) *time.Time { return &t }

func allSubs() []Subscription {
	subs := make([]Subscription, 0, len(Kinds))
	for _, k := range Kinds {
		subs = append(subs, Subscription{Kind: k, Active: true})
	}
	return subs
}

func testSettings() NotificationSettings {
	return NotificationSettings{
		Enabled:           true,
		NotificationHour:  9,
		QuietStartM:       22 * 60,
		QuietEndM:         7 * 60,
		DailyReminders:    true,
		WeeklyReminders:   true,
		HalfwayReminders:  true,
		WeeklyDays:        []int{0, 1, 2, 3, 4},
		DaysBeforeWarning: 1,
		TZ:                "Europe/Moscow",
	}
}

func hasKind(dec Decision, kind NotificationKind) bool {
	for _, k := range dec.Due {
		if k == kind {
			return true
		}
	}
	return false
}

func TestInQuietHours_Wrap(t *testing.T) {
	cases := []struct {
		localM, from, to int
		want             bool
	}{
		{23 * 60, 22 * 60, 7 * 60, true},
		{3 * 60, 22 * 60, 7 * 60, true},
		{8 * 60, 22 * 60, 7 * 60, false},
		{7 * 60, 22 * 60, 7 * 60, false}, // end is exclusive
		{22 * 60, 22 * 60, 7 * 60, true}, // start is inclusive
		{12 * 60, 9 * 60, 9 * 60, false}, // zero-length window
		{10 * 60, 9 * 60, 18 * 60, true},
	}
	for _, c := range cases {
		if got := InQuietHours(c.localM, c.from, c.to); got != c.want {
			t.Fatalf("InQuietHours(%d,%d,%d) = %v, want %v", c.localM, c.from, c.to, got, c.want)
		}
	}
}

func TestEvaluate_QuietHoursSuppressAllKinds(t *testing.T) {
	s := testSettings()
	s.NotificationHour = 23
	created := mustLocalUTC(t, s.TZ, 2026, time.January, 1, 12, 0)
	due := mustLocalUTC(t, s.TZ, 2026, time.January, 20, 12, 0)
	d := Deadline{Status: StatusActive, CreatedAt: created, DueDate: ptrTime(due)}

	// 23:00 local: daily hour matches, halfway midpoint crossed, warning in
	// horizon — still nothing fires.
	now := mustLocalUTC(t, s.TZ, 2026, time.January, 19, 23, 0)
	dec := Evaluate(d, s, allSubs(), now, SentHistory{})
	if len(dec.Due) != 0 {
		t.Fatalf("quiet hours: expected nothing due, got %v", dec.Due)
	}

	// 08:00 next morning is outside quiet hours again.
	s.NotificationHour = 8
	now = mustLocalUTC(t, s.TZ, 2026, time.January, 20, 8, 0)
	dec = Evaluate(d, s, allSubs(), now, SentHistory{})
	if !hasKind(dec, KindDaily) {
		t.Fatalf("after quiet hours: expected daily due, got %v", dec.Due)
	}
}

func TestEvaluate_DailyAtMostOncePerDay(t *testing.T) {
	s := testSettings()
	created := mustLocalUTC(t, s.TZ, 2026, time.March, 1, 10, 0)
	due := mustLocalUTC(t, s.TZ, 2026, time.March, 10, 10, 0)
	d := Deadline{Status: StatusActive, CreatedAt: created, DueDate: ptrTime(due)}

	now := mustLocalUTC(t, s.TZ, 2026, time.March, 2, 9, 0)
	dec := Evaluate(d, s, allSubs(), now, SentHistory{})
	if !hasKind(dec, KindDaily) {
		t.Fatalf("expected daily due, got %v", dec.Due)
	}

	sent := SentHistory{KindDaily: now}
	dec = Evaluate(d, s, allSubs(), now.Add(30*time.Minute), sent)
	if hasKind(dec, KindDaily) {
		t.Fatalf("daily already sent today, got %v", dec.Due)
	}

	// Next day at the notification hour it is due again.
	next := mustLocalUTC(t, s.TZ, 2026, time.March, 3, 9, 0)
	dec = Evaluate(d, s, allSubs(), next, sent)
	if !hasKind(dec, KindDaily) {
		t.Fatalf("expected daily due next day, got %v", dec.Due)
	}
}

func TestEvaluate_DailySkipsWrongHourAndPastDue(t *testing.T) {
	s := testSettings()
	due := mustLocalUTC(t, s.TZ, 2026, time.March, 10, 10, 0)
	d := Deadline{Status: StatusActive, CreatedAt: due.Add(-240 * time.Hour), DueDate: ptrTime(due)}

	now := mustLocalUTC(t, s.TZ, 2026, time.March, 2, 10, 0)
	if dec := Evaluate(d, s, allSubs(), now, SentHistory{}); hasKind(dec, KindDaily) {
		t.Fatalf("hour mismatch: daily must not fire")
	}

	past := mustLocalUTC(t, s.TZ, 2026, time.March, 11, 9, 0)
	if dec := Evaluate(d, s, allSubs(), past, SentHistory{}); hasKind(dec, KindDaily) {
		t.Fatalf("past due: daily must not fire")
	}
}

func TestEvaluate_WeeklyRespectsWeekdayAndWeek(t *testing.T) {
	s := testSettings()
	s.WeeklyDays = []int{0} // Monday only
	due := mustLocalUTC(t, s.TZ, 2026, time.April, 30, 10, 0)
	d := Deadline{Status: StatusActive, CreatedAt: due.Add(-30 * 24 * time.Hour), DueDate: ptrTime(due)}

	// 2026-04-06 is a Monday.
	mon := mustLocalUTC(t, s.TZ, 2026, time.April, 6, 9, 0)
	dec := Evaluate(d, s, allSubs(), mon, SentHistory{})
	if !hasKind(dec, KindWeekly) {
		t.Fatalf("expected weekly due on Monday, got %v", dec.Due)
	}

	tue := mustLocalUTC(t, s.TZ, 2026, time.April, 7, 9, 0)
	if dec := Evaluate(d, s, allSubs(), tue, SentHistory{}); hasKind(dec, KindWeekly) {
		t.Fatalf("Tuesday is not in weekly days")
	}

	// Same ISO week: suppressed even on the matching weekday.
	sent := SentHistory{KindWeekly: mon}
	if dec := Evaluate(d, s, allSubs(), mon.Add(time.Minute), sent); hasKind(dec, KindWeekly) {
		t.Fatalf("weekly already sent this week")
	}

	nextMon := mustLocalUTC(t, s.TZ, 2026, time.April, 13, 9, 0)
	if dec := Evaluate(d, s, allSubs(), nextMon, sent); !hasKind(dec, KindWeekly) {
		t.Fatalf("expected weekly due next week")
	}
}

func TestEvaluate_HalfwayOneShot(t *testing.T) {
	s := testSettings()
	created := mustLocalUTC(t, s.TZ, 2026, time.January, 1, 12, 0)
	due := created.Add(10 * 24 * time.Hour)
	d := Deadline{Status: StatusActive, CreatedAt: created, DueDate: ptrTime(due)}

	before := created.Add(4 * 24 * time.Hour)
	if dec := Evaluate(d, s, allSubs(), before, SentHistory{}); hasKind(dec, KindHalfway) {
		t.Fatalf("midpoint not reached yet")
	}

	mid := created.Add(5*24*time.Hour + time.Hour)
	dec := Evaluate(d, s, allSubs(), mid, SentHistory{})
	if !hasKind(dec, KindHalfway) {
		t.Fatalf("expected halfway due after midpoint, got %v", dec.Due)
	}

	// Once recorded it never fires again, on any later tick.
	sent := SentHistory{KindHalfway: mid}
	for _, at := range []time.Time{mid.Add(time.Hour), created.Add(7 * 24 * time.Hour), created.Add(9 * 24 * time.Hour)} {
		if dec := Evaluate(d, s, allSubs(), at, sent); hasKind(dec, KindHalfway) {
			t.Fatalf("halfway is one-shot, fired again at %v", at)
		}
	}
}

func TestEvaluate_OverdueWarningWindow(t *testing.T) {
	s := testSettings()
	s.DaysBeforeWarning = 2
	due := mustLocalUTC(t, s.TZ, 2026, time.May, 10, 12, 0)
	d := Deadline{Status: StatusActive, CreatedAt: due.Add(-20 * 24 * time.Hour), DueDate: ptrTime(due)}

	far := mustLocalUTC(t, s.TZ, 2026, time.May, 1, 12, 0)
	if dec := Evaluate(d, s, allSubs(), far, SentHistory{}); hasKind(dec, KindOverdueWarning) {
		t.Fatalf("due date outside warning horizon")
	}

	near := mustLocalUTC(t, s.TZ, 2026, time.May, 9, 12, 0)
	dec := Evaluate(d, s, allSubs(), near, SentHistory{})
	if !hasKind(dec, KindOverdueWarning) {
		t.Fatalf("expected warning inside horizon, got %v", dec.Due)
	}

	sent := SentHistory{KindOverdueWarning: near}
	if dec := Evaluate(d, s, allSubs(), near.Add(time.Hour), sent); hasKind(dec, KindOverdueWarning) {
		t.Fatalf("warning already sent today")
	}
}

func TestEvaluate_OverdueTransitionSignaled(t *testing.T) {
	s := testSettings()
	due := mustLocalUTC(t, s.TZ, 2026, time.May, 10, 12, 0)
	d := Deadline{Status: StatusActive, CreatedAt: due.Add(-48 * time.Hour), DueDate: ptrTime(due)}

	// Past due inside quiet hours: no notification, but the status
	// transition is still signaled.
	night := mustLocalUTC(t, s.TZ, 2026, time.May, 11, 23, 30)
	dec := Evaluate(d, s, allSubs(), night, SentHistory{})
	if !dec.MarkOverdue {
		t.Fatalf("expected overdue transition")
	}
	if len(dec.Due) != 0 {
		t.Fatalf("quiet hours: nothing must fire, got %v", dec.Due)
	}

	d.Status = StatusOverdue
	dec = Evaluate(d, s, allSubs(), night, SentHistory{})
	if dec.MarkOverdue {
		t.Fatalf("already overdue, no transition expected")
	}
}

func TestEvaluate_DisabledAndUnsubscribed(t *testing.T) {
	s := testSettings()
	created := mustLocalUTC(t, s.TZ, 2026, time.March, 1, 10, 0)
	due := mustLocalUTC(t, s.TZ, 2026, time.March, 10, 10, 0)
	d := Deadline{Status: StatusActive, CreatedAt: created, DueDate: ptrTime(due)}
	now := mustLocalUTC(t, s.TZ, 2026, time.March, 2, 9, 0)

	s.Enabled = false
	if dec := Evaluate(d, s, allSubs(), now, SentHistory{}); len(dec.Due) != 0 {
		t.Fatalf("global disable: got %v", dec.Due)
	}

	s.Enabled = true
	if dec := Evaluate(d, s, nil, now, SentHistory{}); len(dec.Due) != 0 {
		t.Fatalf("no subscriptions: got %v", dec.Due)
	}

	s.DailyReminders = false
	if dec := Evaluate(d, s, allSubs(), now, SentHistory{}); hasKind(dec, KindDaily) {
		t.Fatalf("daily toggle off: daily must not fire")
	}
}

func TestEvaluate_OpenEndedDeadline(t *testing.T) {
	s := testSettings()
	d := Deadline{Status: StatusActive, CreatedAt: time.Now().UTC().Add(-time.Hour)}
	now := mustLocalUTC(t, s.TZ, 2026, time.March, 2, 9, 0)
	dec := Evaluate(d, s, allSubs(), now, SentHistory{})
	if len(dec.Due) != 0 || dec.MarkOverdue {
		t.Fatalf("open-ended deadline is never due: %+v", dec)
	}
}
