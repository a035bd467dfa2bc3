package schedule

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

var ErrSlotInPast = errors.New("slot is in the past")

// OrderDates returns dates with the elapsed ones first, most recent leading,
// followed by today and later dates in ascending order.
func OrderDates(dates []Date, today Date) []Date {
	var past, upcoming []Date
	for _, d := range dates {
		if d.Before(today) {
			past = append(past, d)
		} else {
			upcoming = append(upcoming, d)
		}
	}
	sort.Slice(past, func(i, j int) bool { return past[i] > past[j] })
	sort.Slice(upcoming, func(i, j int) bool { return upcoming[i] < upcoming[j] })
	return append(past, upcoming...)
}

// ListDatesOrdered orders the calendar's dates relative to today, see OrderDates.
func (c *Calendar) ListDatesOrdered(today Date) []Date {
	return OrderDates(c.Dates(), today)
}

// CheckBookable rejects a slot whose point in time is at or before now.
// now must already be in the caller's local zone.
func CheckBookable(s Slot, now time.Time) error {
	today := DateOf(now)
	switch {
	case s.Date.Before(today):
		return fmt.Errorf("%w: %s has already passed", ErrSlotInPast, s.Date)
	case s.Date == today && s.Time <= TimeOfDayOf(now):
		return fmt.Errorf("%w: %s is at or before the current time", ErrSlotInPast, s)
	}
	return nil
}

// SlotView is one offered time annotated with whether it can be booked now.
type SlotView struct {
	Time     TimeOfDay `json:"time"`
	Display  string    `json:"display"`
	Bookable bool      `json:"bookable"`
	Taken    bool      `json:"taken"`
}

// DayView groups a date's slots for presentation.
type DayView struct {
	Date    Date       `json:"date"`
	Display string     `json:"display"`
	Past    bool       `json:"past"`
	Slots   []SlotView `json:"slots"`
}

// Agenda renders the calendar in display order with per-slot bookability at now.
func (c *Calendar) Agenda(now time.Time) []DayView {
	today := DateOf(now)
	dates := c.ListDatesOrdered(today)
	out := make([]DayView, 0, len(dates))
	for _, d := range dates {
		day := DayView{Date: d, Display: d.Display(), Past: d.Before(today), Slots: []SlotView{}}
		for _, t := range c.Slots(d) {
			day.Slots = append(day.Slots, SlotView{
				Time:     t,
				Display:  t.Display(),
				Bookable: CheckBookable(Slot{Date: d, Time: t}, now) == nil,
			})
		}
		out = append(out, day)
	}
	return out
}

// MarkTaken flags the slots held by an active appointment; they are never bookable.
func MarkTaken(days []DayView, taken map[Slot]bool) {
	if len(taken) == 0 {
		return
	}
	for i := range days {
		for j := range days[i].Slots {
			if taken[Slot{Date: days[i].Date, Time: days[i].Slots[j].Time}] {
				days[i].Slots[j].Taken = true
				days[i].Slots[j].Bookable = false
			}
		}
	}
}

// CloseBookings marks every slot unbookable, e.g. while a provider is unavailable.
func CloseBookings(days []DayView) {
	for i := range days {
		for j := range days[i].Slots {
			days[i].Slots[j].Bookable = false
		}
	}
}
