package services

import (
	"time"

	"franchise-dispatch-api/models"
)

const DefaultCancelWindowDays = 7

// WindowPolicy holds the time-box rules shared by the cancellation and
// extension workflows. Day boundaries are taken in Location.
type WindowPolicy struct {
	Location         *time.Location
	CancelWindowDays int
}

func DefaultWindowPolicy() WindowPolicy {
	return WindowPolicy{Location: time.UTC, CancelWindowDays: DefaultCancelWindowDays}
}

func (p WindowPolicy) loc() *time.Location {
	if p.Location == nil {
		return time.UTC
	}
	return p.Location
}

func (p WindowPolicy) windowDays() int {
	if p.CancelWindowDays <= 0 {
		return DefaultCancelWindowDays
	}
	return p.CancelWindowDays
}

// ComputeExtendedDeadline returns the last millisecond of the month after
// deliveredAt's month, in loc. Delivered 2025-01-15 gives
// 2025-02-28 23:59:59.999.
func ComputeExtendedDeadline(deliveredAt time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	d := deliveredAt.In(loc)
	firstOfMonthAfter := time.Date(d.Year(), d.Month()+2, 1, 0, 0, 0, 0, loc)
	return firstOfMonthAfter.Add(-time.Millisecond)
}

// ElapsedDays counts calendar days between deliveredAt and now in loc.
// Same-day is 0.
func ElapsedDays(deliveredAt, now time.Time, loc *time.Location) int {
	if loc == nil {
		loc = time.UTC
	}
	d := deliveredAt.In(loc)
	n := now.In(loc)
	start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	end := time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.UTC)
	return int(end.Sub(start).Hours() / 24)
}

func (p WindowPolicy) ExtendedDeadline(deliveredAt time.Time) time.Time {
	return ComputeExtendedDeadline(deliveredAt, p.loc())
}

func (p WindowPolicy) ElapsedDays(deliveredAt, now time.Time) int {
	return ElapsedDays(deliveredAt, now, p.loc())
}

// EffectiveDeadline is the last instant a cancellation may be submitted for r:
// the extended deadline when one was approved, otherwise the end of the last
// day of the base window.
func (p WindowPolicy) EffectiveDeadline(r *models.DeliveryRecord) time.Time {
	if r.ExtendedDeadline != nil {
		return *r.ExtendedDeadline
	}
	d := r.DeliveredAt.In(p.loc())
	dayAfterWindow := time.Date(d.Year(), d.Month(), d.Day()+p.windowDays()+1, 0, 0, 0, 0, p.loc())
	return dayAfterWindow.Add(-time.Millisecond)
}

// WithinCancelWindow reports whether a cancellation submitted at now falls
// inside r's effective window, together with the elapsed day count.
func (p WindowPolicy) WithinCancelWindow(r *models.DeliveryRecord, now time.Time) (int, bool) {
	elapsed := p.ElapsedDays(r.DeliveredAt, now)
	if elapsed < 0 {
		return elapsed, false
	}
	if r.ExtendedDeadline != nil {
		return elapsed, !now.After(*r.ExtendedDeadline)
	}
	return elapsed, elapsed <= p.windowDays()
}
