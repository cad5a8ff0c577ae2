package domain

// Trigger is an event-type tag a webhook opts into.
type Trigger string

const (
	TriggerLinkViewed      Trigger = "link.viewed"
	TriggerLinkCreated     Trigger = "link.created"
	TriggerDocumentCreated Trigger = "document.created"
	TriggerDataroomCreated Trigger = "dataroom.created"
)

// Triggers lists every trigger a webhook may subscribe to.
var Triggers = []Trigger{
	TriggerLinkViewed,
	TriggerLinkCreated,
	TriggerDocumentCreated,
	TriggerDataroomCreated,
}

// IsValid reports whether t is a known trigger.
func (t Trigger) IsValid() bool {
	for _, known := range Triggers {
		if t == known {
			return true
		}
	}
	return false
}

func (t Trigger) String() string {
	return string(t)
}
