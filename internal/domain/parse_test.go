package domain

import (
	"errors"
	"testing"
)

func TestParseClock(t *testing.T) {
	cases := []struct {
		in   string
		want int
		ok   bool
	}{
		{"09:00", 540, true},
		{"23:59", 1439, true},
		{"00:00", 0, true},
		{" 7:30 ", 450, true},
		{"24:00", 0, false},
		{"09:60", 0, false},
		{"0900", 0, false},
		{"", 0, false},
	}
	for _, c := range cases {
		got, err := ParseClock(c.in)
		if c.ok && (err != nil || got != c.want) {
			t.Fatalf("ParseClock(%q) = %d, %v; want %d", c.in, got, err, c.want)
		}
		if !c.ok && err == nil {
			t.Fatalf("ParseClock(%q): expected error", c.in)
		}
	}
}

func TestParseQuietWindow(t *testing.T) {
	from, to, err := ParseQuietWindow("22:00-07:00")
	if err != nil || from != 22*60 || to != 7*60 {
		t.Fatalf("got %d, %d, %v", from, to, err)
	}
	from, to, err = ParseQuietWindow("23:30–06:15") // en dash
	if err != nil || from != 23*60+30 || to != 6*60+15 {
		t.Fatalf("got %d, %d, %v", from, to, err)
	}
	if _, _, err := ParseQuietWindow("22:00"); !errors.Is(err, ErrInvalidWindow) {
		t.Fatalf("expected ErrInvalidWindow, got %v", err)
	}
}

func TestParseHour(t *testing.T) {
	for in, want := range map[string]int{"9": 9, "09": 9, "09:30": 9, "0": 0, "23": 23} {
		got, err := ParseHour(in)
		if err != nil || got != want {
			t.Fatalf("ParseHour(%q) = %d, %v; want %d", in, got, err, want)
		}
	}
	if _, err := ParseHour("24"); err == nil {
		t.Fatalf("expected error for 24")
	}
}

func TestParseWeeklyDays(t *testing.T) {
	days, err := ParseWeeklyDays("mon, wed, fri")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(days) != 3 || days[0] != 0 || days[1] != 2 || days[2] != 4 {
		t.Fatalf("got %v", days)
	}

	days, err = ParseWeeklyDays("mon-fri")
	if err != nil || len(days) != 5 {
		t.Fatalf("range: got %v, %v", days, err)
	}

	// wrapping range fri-tue = fri, sat, sun, mon, tue
	days, err = ParseWeeklyDays("fri-tue")
	if err != nil || len(days) != 5 || days[0] != 0 || days[4] != 6 {
		t.Fatalf("wrap range: got %v, %v", days, err)
	}

	days, err = ParseWeeklyDays("0,6,0")
	if err != nil || len(days) != 2 {
		t.Fatalf("numeric dedup: got %v, %v", days, err)
	}

	if _, err := ParseWeeklyDays("xyz"); !errors.Is(err, ErrNoWeekdays) {
		t.Fatalf("expected ErrNoWeekdays, got %v", err)
	}
}

func TestFormatWeeklyDays(t *testing.T) {
	cases := []struct {
		in   []int
		want string
	}{
		{[]int{0, 1, 2, 3, 4}, "Mon-Fri"},
		{[]int{0, 1, 2, 3, 4, 5, 6}, "every day"},
		{[]int{0, 2, 4}, "Mon, Wed, Fri"},
		{[]int{0, 1, 3, 5, 6}, "Mon-Tue, Thu, Sat-Sun"},
		{nil, "none"},
	}
	for _, c := range cases {
		if got := FormatWeeklyDays(c.in); got != c.want {
			t.Fatalf("FormatWeeklyDays(%v) = %q, want %q", c.in, got, c.want)
		}
	}
}
