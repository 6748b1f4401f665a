package capture

import "time"

// Event types published to notifiers.
const (
	EventEnroll         = "enroll"
	EventIdentify       = "identify"
	EventPreviewStarted = "preview_started"
	EventPreviewEnded   = "preview_ended"
)

// Event describes a finished capture operation.
type Event struct {
	Type        string    `json:"type"`
	DeviceIndex int       `json:"device_index"`
	Status      string    `json:"status"`
	Label       string    `json:"label,omitempty"`
	CaptureID   string    `json:"capture_id,omitempty"`
	Distance    *float64  `json:"distance,omitempty"`
	SessionID   string    `json:"session_id,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Notifier receives capture events. Notify must not block.
type Notifier interface {
	Notify(evt Event)
}

// Notifiers fans an event out to several notifiers.
type Notifiers []Notifier

// Notify forwards evt to every notifier.
func (n Notifiers) Notify(evt Event) {
	for _, notifier := range n {
		if notifier != nil {
			notifier.Notify(evt)
		}
	}
}
