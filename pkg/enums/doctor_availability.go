package enums

import "fmt"

// DoctorAvailability reports whether a doctor currently accepts bookings.
type DoctorAvailability string

const (
	DoctorAvailabilityAvailable   DoctorAvailability = "Available"
	DoctorAvailabilityUnavailable DoctorAvailability = "Unavailable"
	DoctorAvailabilityOnLeave     DoctorAvailability = "OnLeave"
)

var validDoctorAvailabilities = []DoctorAvailability{
	DoctorAvailabilityAvailable,
	DoctorAvailabilityUnavailable,
	DoctorAvailabilityOnLeave,
}

// String implements fmt.Stringer.
func (d DoctorAvailability) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DoctorAvailability.
func (d DoctorAvailability) IsValid() bool {
	for _, candidate := range validDoctorAvailabilities {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDoctorAvailability converts raw input into a DoctorAvailability.
func ParseDoctorAvailability(value string) (DoctorAvailability, error) {
	for _, candidate := range validDoctorAvailabilities {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid doctor availability %q", value)
}
