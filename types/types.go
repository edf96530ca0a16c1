package types

import (
	"fmt"
	"time"
)

// Doctor represents a practitioner entry from the config file
type Doctor struct {
	Name              string `yaml:"name"`
	BookingURL        string `yaml:"booking_url"`        // Shown in the notification, never fetched
	AvailabilitiesURL string `yaml:"availabilities_url"` // availabilities.json request copied from browser dev tools
	MoveBookingURL    string `yaml:"move_booking_url"`   // Optional "move existing appointment" link
}

// AvailabilityDay is one day object of the availabilities.json response
type AvailabilityDay struct {
	Date  string `json:"date"`
	Slots []any  `json:"slots"` // Slot shape differs per practice, only the count matters
}

// AvailabilityPayload is the decoded availabilities.json response
type AvailabilityPayload struct {
	Total          int               `json:"total"`
	Availabilities []AvailabilityDay `json:"availabilities"`
	NextSlot       *string           `json:"next_slot,omitempty"`
}

// DaySlots is a day with at least one open slot
type DaySlots struct {
	Date  time.Time
	Count int
}

// NotifyReason tells why a doctor check asks for a notification
type NotifyReason int

const (
	ReasonNone NotifyReason = iota
	ReasonEarlySlot
	ReasonHourly
)

func (r NotifyReason) String() string {
	switch r {
	case ReasonEarlySlot:
		return "early_slot"
	case ReasonHourly:
		return "hourly"
	default:
		return "none"
	}
}

// AvailabilityResult is the outcome of one doctor check
type AvailabilityResult struct {
	Total    int
	Days     []DaySlots // Days with slots in service order, up to the first early one
	Earliest *time.Time // First day with slots inside the lookahead window
	NextSlot *time.Time // "next_slot" beyond the window, if the service sent one
	Reason   NotifyReason
}

// Notify reports whether the dispatcher should be called
func (r AvailabilityResult) Notify() bool {
	return r.Reason != ReasonNone
}

// RunSummary counts what happened during one pass over all doctors
type RunSummary struct {
	Checked int
	Sent    int
	Failed  int
	Skipped bool // Another invocation held the run lock
}

func (s RunSummary) String() string {
	if s.Skipped {
		return "skipped (run lock held)"
	}
	return fmt.Sprintf("%d/%d notifications sent, %d failed", s.Sent, s.Checked, s.Failed)
}
