package appointment

import (
	"errors"
	"fmt"
	"time"

	"github.com/hackgods/clinic-appointment-booking/internal/schedule"
)

var (
	ErrTerminalState     = errors.New("appointment is in a terminal state")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrPastSlot          = errors.New("reschedule target is not in the future")
)

// transitions lists the explicit moves allowed from each non-terminal state.
// Rescheduled is entered only through Reschedule, never through a plain transition.
var transitions = map[AppointmentStatus][]AppointmentStatus{
	StatusPending:     {StatusConfirmed, StatusCanceled, StatusCompleted},
	StatusConfirmed:   {StatusCanceled, StatusCompleted},
	StatusRescheduled: {StatusCompleted, StatusCanceled},
}

// Elapsed reports whether now has passed the appointment's effective slot.
func Elapsed(a Appointment, now time.Time) bool {
	return now.After(a.EffectiveSlot().At(now.Location()))
}

// Project returns the appointment as callers must see it at now: a non-terminal
// appointment whose effective slot has passed reads as Completed. Nothing is persisted.
func Project(a Appointment, now time.Time) Appointment {
	if !a.Status.Terminal() && Elapsed(a, now) {
		a.Status = StatusCompleted
		a.StatusDerived = true
	}
	return a
}

// CheckTransition validates an explicit status change of the stored appointment.
// An elapsed appointment already reads as Completed, so the only change it accepts
// is persisting that completion.
func CheckTransition(a Appointment, to AppointmentStatus, now time.Time) error {
	if a.Status.Terminal() {
		return fmt.Errorf("%w: appointment is %s", ErrTerminalState, a.Status)
	}
	if to != StatusCompleted && Elapsed(a, now) {
		return fmt.Errorf("%w: appointment time has passed", ErrTerminalState)
	}
	for _, allowed := range transitions[a.Status] {
		if allowed == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, a.Status, to)
}

// CheckReschedule validates moving the appointment to target.
func CheckReschedule(a Appointment, target schedule.Slot, now time.Time) error {
	if a.Status.Terminal() {
		return fmt.Errorf("%w: appointment is %s", ErrTerminalState, a.Status)
	}
	if Elapsed(a, now) {
		return fmt.Errorf("%w: appointment time has passed", ErrTerminalState)
	}
	if a.Status != StatusPending && a.Status != StatusConfirmed {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, a.Status, StatusRescheduled)
	}
	if !target.At(now.Location()).After(now) {
		return fmt.Errorf("%w: %s", ErrPastSlot, target)
	}
	return nil
}
