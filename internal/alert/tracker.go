package alert

import (
	"time"

	"metricagent/internal/models"
	"metricagent/internal/rules"
)

// Tracker holds the in-memory state of one firing alert instance. It is
// created when an alert id first triggers and destroyed on resolution;
// the open store row is its durable counterpart.
type Tracker struct {
	AlertID           string
	Rule              *rules.Rule
	FirstTriggeredAt  time.Time
	LastTriggeredAt   time.Time
	LastNotifiedAt    time.Time // zero until the first notification
	LastValue         float64
	Labels            map[string]string
	State             string
	NotificationCount int
}

func newTracker(alertID string, rule *rules.Rule, value float64, labels map[string]string, now time.Time) *Tracker {
	return &Tracker{
		AlertID:          alertID,
		Rule:             rule,
		FirstTriggeredAt: now,
		LastTriggeredAt:  now,
		LastValue:        value,
		Labels:           labels,
		State:            models.StateTriggered,
	}
}

// Update refreshes the tracker with a newly observed value.
func (t *Tracker) Update(value float64, now time.Time) {
	t.LastTriggeredAt = now
	t.LastValue = value
}

// ShouldNotify reports whether a notification is due: the condition has
// held for the rule's for-duration, and either no notification has been
// sent yet or the cooldown has elapsed since the last one.
func (t *Tracker) ShouldNotify(now time.Time) bool {
	if now.Sub(t.FirstTriggeredAt) < t.Rule.ForDuration {
		return false
	}
	if !t.LastNotifiedAt.IsZero() && now.Sub(t.LastNotifiedAt) < t.Rule.Cooldown {
		return false
	}
	return true
}

// MarkNotified records a completed dispatch attempt and moves the
// tracker to the active state.
func (t *Tracker) MarkNotified(now time.Time) {
	t.LastNotifiedAt = now
	t.State = models.StateActive
	t.NotificationCount++
}
