package domain

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	ErrEmptyInput    = errors.New("empty input")
	ErrInvalidClock  = errors.New("invalid time, expected HH:MM")
	ErrInvalidHour   = errors.New("invalid hour, expected 0-23")
	ErrNoWeekdays    = errors.New("no weekdays recognized")
	ErrInvalidWindow = errors.New("invalid window, expected HH:MM-HH:MM")
)

var weekdayNames = map[string]int{
	"mon": 0, "monday": 0,
	"tue": 1, "tuesday": 1,
	"wed": 2, "wednesday": 2,
	"thu": 3, "thursday": 3,
	"fri": 4, "friday": 4,
	"sat": 5, "saturday": 5,
	"sun": 6, "sunday": 6,
}

var weekdayShort = []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// ParseClock parses "HH:MM" into minutes since midnight.
func ParseClock(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrEmptyInput
	}
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("%w: %s", ErrInvalidClock, s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("%w: %s", ErrInvalidClock, s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("%w: %s", ErrInvalidClock, s)
	}
	return h*60 + m, nil
}

// ParseQuietWindow parses "HH:MM-HH:MM" (also accepts the en dash) into
// minutes since midnight. The window may wrap past midnight.
func ParseQuietWindow(s string) (fromM, toM int, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, 0, ErrEmptyInput
	}
	sep := "–"
	if strings.Contains(s, "-") && !strings.Contains(s, "–") {
		sep = "-"
	}
	parts := strings.Split(s, sep)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: %s", ErrInvalidWindow, s)
	}
	fromM, err = ParseClock(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("from: %w", err)
	}
	toM, err = ParseClock(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("to: %w", err)
	}
	return fromM, toM, nil
}

// ParseHour parses a notification hour, accepting "9", "09" or "09:00".
func ParseHour(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrEmptyInput
	}
	if strings.Contains(s, ":") {
		m, err := ParseClock(s)
		if err != nil {
			return 0, err
		}
		return m / 60, nil
	}
	h, err := strconv.Atoi(s)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("%w: %s", ErrInvalidHour, s)
	}
	return h, nil
}

// ParseWeeklyDays parses weekday lists like "mon,wed,fri", "mon-fri",
// "fri-tue" (wrapping) or "0,2,4" into sorted unique day numbers
// (0=Monday .. 6=Sunday).
func ParseWeeklyDays(s string) ([]int, error) {
	s = strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))
	if s == "" {
		return nil, ErrEmptyInput
	}
	seen := map[int]bool{}
	for _, part := range strings.Split(s, ",") {
		if from, to, ok := strings.Cut(part, "-"); ok {
			a, aOK := parseWeekday(from)
			b, bOK := parseWeekday(to)
			if !aOK || !bOK {
				continue
			}
			if a <= b {
				for d := a; d <= b; d++ {
					seen[d] = true
				}
			} else {
				// range wraps the week, e.g. fri-tue
				for d := a; d <= 6; d++ {
					seen[d] = true
				}
				for d := 0; d <= b; d++ {
					seen[d] = true
				}
			}
			continue
		}
		if d, ok := parseWeekday(part); ok {
			seen[d] = true
		}
	}
	if len(seen) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoWeekdays, s)
	}
	days := make([]int, 0, len(seen))
	for d := range seen {
		days = append(days, d)
	}
	sort.Ints(days)
	return days, nil
}

func parseWeekday(s string) (int, bool) {
	if d, ok := weekdayNames[s]; ok {
		return d, true
	}
	if n, err := strconv.Atoi(s); err == nil && n >= 0 && n <= 6 {
		return n, true
	}
	return 0, false
}

// FormatWeeklyDays compacts sorted day numbers into ranges: "Mon-Fri, Sun".
func FormatWeeklyDays(days []int) string {
	if len(days) == 0 {
		return "none"
	}
	if len(days) == 7 {
		return "every day"
	}
	var ranges []string
	start, prev := days[0], days[0]
	flush := func() {
		if start == prev {
			ranges = append(ranges, weekdayShort[start])
		} else {
			ranges = append(ranges, weekdayShort[start]+"-"+weekdayShort[prev])
		}
	}
	for _, d := range days[1:] {
		if d == prev+1 {
			prev = d
			continue
		}
		flush()
		start, prev = d, d
	}
	flush()
	return strings.Join(ranges, ", ")
}

// FormatMinutes returns HH:MM for minutes since midnight.
func FormatMinutes(mins int) string {
	if mins < 0 {
		mins = 0
	}
	return fmt.Sprintf("%02d:%02d", mins/60, mins%60)
}

// ValidateTZ checks that tz is a valid IANA location.
func ValidateTZ(tz string) (string, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return "", err
	}
	return loc.String(), nil
}

// LocalizeTime formats t in the given timezone as "02.01.2006 15:04".
func LocalizeTime(t time.Time, tz string) string {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.UTC
	}
	return t.In(loc).Format("02.01.2006 15:04")
}
