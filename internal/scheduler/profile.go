// File: internal/scheduler/profile.go
// Package scheduler generates three daily session triggers from a usage
// profile and polls the clock for them, spawning a session when a trigger
// comes due. Triggers are regenerated once a day in the small hours so no
// two days look alike.
package scheduler

import "fmt"

// Profile selects the daily rhythm the triggers are drawn from.
type Profile string

const (
	ProfileUniversity Profile = "university"
	ProfileHighSchool Profile = "high_school"
	ProfilePrimary    Profile = "primary"
)

// window is an inclusive HH:MM range a trigger is drawn from. End may be
// earlier than Start, which means the range wraps past midnight.
type window struct {
	Start string
	End   string
}

// profileWindows maps each profile to its morning, afternoon and bedtime
// draw ranges.
var profileWindows = map[Profile][3]window{
	ProfileUniversity: {
		{Start: "08:00", End: "09:00"},
		{Start: "15:00", End: "18:00"},
		{Start: "23:00", End: "00:30"},
	},
	ProfileHighSchool: {
		{Start: "07:30", End: "08:30"},
		{Start: "15:00", End: "16:00"},
		{Start: "21:00", End: "22:30"},
	},
	ProfilePrimary: {
		{Start: "07:30", End: "08:30"},
		{Start: "15:00", End: "16:00"},
		{Start: "20:00", End: "21:00"},
	},
}

// ParseProfile accepts both the full profile name and its single-letter
// shorthand.
func ParseProfile(code string) (Profile, error) {
	switch code {
	case "u", string(ProfileUniversity):
		return ProfileUniversity, nil
	case "h", string(ProfileHighSchool):
		return ProfileHighSchool, nil
	case "p", string(ProfilePrimary):
		return ProfilePrimary, nil
	default:
		return "", fmt.Errorf("unknown profile %q (expected u, h or p)", code)
	}
}
