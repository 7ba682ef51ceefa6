package enums

import "fmt"

// AppointmentStatus tracks the lifecycle of a consultation appointment.
type AppointmentStatus string

const (
	AppointmentStatusPending     AppointmentStatus = "Pending"
	AppointmentStatusConfirmed   AppointmentStatus = "Confirmed"
	AppointmentStatusRescheduled AppointmentStatus = "Rescheduled"
	AppointmentStatusCancelled   AppointmentStatus = "Cancelled"
	AppointmentStatusCompleted   AppointmentStatus = "Completed"
)

var validAppointmentStatuses = []AppointmentStatus{
	AppointmentStatusPending,
	AppointmentStatusConfirmed,
	AppointmentStatusRescheduled,
	AppointmentStatusCancelled,
	AppointmentStatusCompleted,
}

// String implements fmt.Stringer.
func (a AppointmentStatus) String() string {
	return string(a)
}

// IsValid reports whether the value is a known AppointmentStatus.
func (a AppointmentStatus) IsValid() bool {
	for _, candidate := range validAppointmentStatuses {
		if candidate == a {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the appointment is read-only. Completed is the
// only terminal state; Cancelled appointments may not be rescheduled but are
// surfaced for history.
func (a AppointmentStatus) IsTerminal() bool {
	return a == AppointmentStatusCompleted
}

// ParseAppointmentStatus converts raw input into an AppointmentStatus.
func ParseAppointmentStatus(value string) (AppointmentStatus, error) {
	for _, candidate := range validAppointmentStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid appointment status %q", value)
}
