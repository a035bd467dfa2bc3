package schedule

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hackgods/clinic-appointment-booking/internal/apperr"
)

const dateLayout = "2006-01-02"

// Date is a wall-clock calendar date in canonical YYYY-MM-DD form.
// Values are only produced by ParseDate or DateOf, so string comparison orders them.
type Date string

// ParseDate normalises raw into a Date. Only the canonical YYYY-MM-DD form is accepted;
// display strings such as "03 Dec 2025" are rejected.
func ParseDate(raw string) (Date, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", apperr.Invalid("date", "is required")
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil || t.Format(dateLayout) != s {
		return "", apperr.Invalid("date", fmt.Sprintf("%q is not a YYYY-MM-DD date", raw))
	}
	return Date(s), nil
}

// MustDate is ParseDate for literals known to be valid.
func MustDate(raw string) Date {
	d, err := ParseDate(raw)
	if err != nil {
		panic(err)
	}
	return d
}

// DateOf returns the wall-clock date of t in t's own location.
func DateOf(t time.Time) Date {
	return Date(t.Format(dateLayout))
}

func (d Date) String() string { return string(d) }

func (d Date) Before(other Date) bool { return d < other }

func (d Date) After(other Date) bool { return d > other }

// Midnight returns the start of d in loc.
func (d Date) Midnight(loc *time.Location) time.Time {
	t, _ := time.ParseInLocation(dateLayout, string(d), loc)
	return t
}

// Display renders d for people, e.g. "03 Dec 2025". It is never parsed back.
func (d Date) Display() string {
	t, err := time.Parse(dateLayout, string(d))
	if err != nil {
		return string(d)
	}
	return t.Format("02 Jan 2006")
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return apperr.Invalid("date", "must be a string")
	}
	parsed, err := ParseDate(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// TimeOfDay is a wall-clock time as minutes after midnight.
type TimeOfDay int

// ParseTime accepts a 24-hour "HH:MM" or a 12-hour "H:MM AM/PM" value.
// Single-digit 24-hour values ("9:00") and hour zero with a meridiem are rejected as ambiguous.
func ParseTime(raw string) (TimeOfDay, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return 0, apperr.Invalid("time", "is required")
	}
	invalid := apperr.Invalid("time", fmt.Sprintf("%q is not HH:MM or H:MM AM/PM", raw))

	meridiem := ""
	if strings.HasSuffix(s, "AM") || strings.HasSuffix(s, "PM") {
		meridiem = s[len(s)-2:]
		s = strings.TrimSpace(s[:len(s)-2])
	}

	hh, mm, ok := strings.Cut(s, ":")
	if !ok || len(mm) != 2 || !isDigits(hh) || !isDigits(mm) {
		return 0, invalid
	}
	h, _ := strconv.Atoi(hh)
	m, _ := strconv.Atoi(mm)
	if m > 59 {
		return 0, invalid
	}

	if meridiem == "" {
		if len(hh) != 2 || h > 23 {
			return 0, invalid
		}
		return TimeOfDay(h*60 + m), nil
	}

	if len(hh) > 2 || h < 1 || h > 12 {
		return 0, invalid
	}
	h %= 12
	if meridiem == "PM" {
		h += 12
	}
	return TimeOfDay(h*60 + m), nil
}

// MustTime is ParseTime for literals known to be valid.
func MustTime(raw string) TimeOfDay {
	t, err := ParseTime(raw)
	if err != nil {
		panic(err)
	}
	return t
}

// TimeOfDayOf returns the wall-clock time of t truncated to the minute.
func TimeOfDayOf(t time.Time) TimeOfDay {
	return TimeOfDay(t.Hour()*60 + t.Minute())
}

func (t TimeOfDay) Hour() int { return int(t) / 60 }

func (t TimeOfDay) Minute() int { return int(t) % 60 }

// String is the canonical 24-hour form.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// Display renders the 12-hour form, e.g. "10:00 AM".
func (t TimeOfDay) Display() string {
	h := t.Hour() % 12
	if h == 0 {
		h = 12
	}
	meridiem := "AM"
	if t.Hour() >= 12 {
		meridiem = "PM"
	}
	return fmt.Sprintf("%d:%02d %s", h, t.Minute(), meridiem)
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return apperr.Invalid("time", "must be a string")
	}
	parsed, err := ParseTime(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Slot is a date paired with a time of day; together they name one point in time.
type Slot struct {
	Date Date      `json:"date"`
	Time TimeOfDay `json:"time"`
}

// ParseSlot normalises a raw date and time, reporting problems with both at once.
func ParseSlot(rawDate, rawTime string) (Slot, error) {
	verr := &apperr.ValidationError{}
	d, err := ParseDate(rawDate)
	verr.Merge(err)
	t, err := ParseTime(rawTime)
	verr.Merge(err)
	if err := verr.OrNil(); err != nil {
		return Slot{}, err
	}
	return Slot{Date: d, Time: t}, nil
}

// At resolves the slot to an instant in loc.
func (s Slot) At(loc *time.Location) time.Time {
	day := s.Date.Midnight(loc)
	return time.Date(day.Year(), day.Month(), day.Day(), s.Time.Hour(), s.Time.Minute(), 0, 0, loc)
}

// Display renders e.g. "03 Dec 2025 • 10:00 AM".
func (s Slot) Display() string {
	return s.Date.Display() + " • " + s.Time.Display()
}

func (s Slot) String() string {
	return s.Date.String() + " " + s.Time.String()
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
