package schedule

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/hackgods/clinic-appointment-booking/internal/apperr"
)

var (
	ErrDuplicateDate = errors.New("date already exists in calendar")
	ErrUnknownDate   = errors.New("date is not in calendar")
	ErrDuplicateSlot = errors.New("time already exists for date")
)

// Calendar maps each offered date to its ascending, duplicate-free slot times.
// The zero value is an empty calendar ready for use. A Calendar is not safe for
// concurrent mutation; repositories serialise writers.
type Calendar struct {
	days map[Date][]TimeOfDay
}

func NewCalendar() *Calendar {
	return &Calendar{days: make(map[Date][]TimeOfDay)}
}

func (c *Calendar) init() {
	if c.days == nil {
		c.days = make(map[Date][]TimeOfDay)
	}
}

// AddDate inserts d with no slots.
func (c *Calendar) AddDate(d Date) error {
	c.init()
	if _, ok := c.days[d]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateDate, d)
	}
	c.days[d] = []TimeOfDay{}
	return nil
}

// AddSlot inserts t under an existing date, keeping the list sorted.
func (c *Calendar) AddSlot(d Date, t TimeOfDay) error {
	c.init()
	slots, ok := c.days[d]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDate, d)
	}
	i := sort.Search(len(slots), func(i int) bool { return slots[i] >= t })
	if i < len(slots) && slots[i] == t {
		return fmt.Errorf("%w: %s %s", ErrDuplicateSlot, d, t)
	}
	slots = append(slots, 0)
	copy(slots[i+1:], slots[i:])
	slots[i] = t
	c.days[d] = slots
	return nil
}

// EnsureSlot is AddSlot that creates the date first when it is missing.
func (c *Calendar) EnsureSlot(d Date, t TimeOfDay) error {
	if !c.HasDate(d) {
		if err := c.AddDate(d); err != nil {
			return err
		}
	}
	return c.AddSlot(d, t)
}

// RemoveSlot deletes t from d if present. The date stays even when it becomes empty.
func (c *Calendar) RemoveSlot(d Date, t TimeOfDay) {
	slots, ok := c.days[d]
	if !ok {
		return
	}
	i := sort.Search(len(slots), func(i int) bool { return slots[i] >= t })
	if i < len(slots) && slots[i] == t {
		c.days[d] = append(slots[:i], slots[i+1:]...)
	}
}

// RemoveDate deletes d and all of its slots.
func (c *Calendar) RemoveDate(d Date) {
	delete(c.days, d)
}

func (c *Calendar) HasDate(d Date) bool {
	_, ok := c.days[d]
	return ok
}

func (c *Calendar) HasSlot(d Date, t TimeOfDay) bool {
	slots := c.days[d]
	i := sort.Search(len(slots), func(i int) bool { return slots[i] >= t })
	return i < len(slots) && slots[i] == t
}

// Slots returns a copy of the times offered on d in ascending order.
func (c *Calendar) Slots(d Date) []TimeOfDay {
	slots := c.days[d]
	out := make([]TimeOfDay, len(slots))
	copy(out, slots)
	return out
}

// Dates returns every date in ascending order.
func (c *Calendar) Dates() []Date {
	out := make([]Date, 0, len(c.days))
	for d := range c.days {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (c *Calendar) Len() int {
	return len(c.days)
}

func (c *Calendar) Clone() *Calendar {
	out := NewCalendar()
	if c == nil {
		return out
	}
	for d, slots := range c.days {
		out.days[d] = append([]TimeOfDay{}, slots...)
	}
	return out
}

// MarshalJSON encodes the calendar as {"YYYY-MM-DD": ["HH:MM", ...]}.
func (c *Calendar) MarshalJSON() ([]byte, error) {
	out := make(map[string][]string, len(c.days))
	for d, slots := range c.days {
		times := make([]string, 0, len(slots))
		for _, t := range slots {
			times = append(times, t.String())
		}
		out[string(d)] = times
	}
	return json.Marshal(out)
}

// UnmarshalJSON normalises every date and time and rejects duplicates.
func (c *Calendar) UnmarshalJSON(data []byte) error {
	var raw map[string][]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return apperr.Invalid("slot_calendar", "must map dates to lists of times")
	}
	next := NewCalendar()
	for rawDate, times := range raw {
		d, err := ParseDate(rawDate)
		if err != nil {
			return err
		}
		if err := next.AddDate(d); err != nil {
			return apperr.Invalid("slot_calendar", err.Error())
		}
		for _, rawTime := range times {
			t, err := ParseTime(rawTime)
			if err != nil {
				return err
			}
			if err := next.AddSlot(d, t); err != nil {
				return apperr.Invalid("slot_calendar", err.Error())
			}
		}
	}
	*c = *next
	return nil
}
