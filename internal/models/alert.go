package models

import (
	"encoding/json"
	"time"
)

// Alert lifecycle states.
const (
	StateTriggered = "triggered" // condition met, hysteresis window running
	StateActive    = "active"    // at least one notification sent
	StateResolved  = "resolved"  // condition no longer met
)

// AlertRecord is one persisted alert lifecycle instance. A resolved and
// re-triggered alert id produces a new row, so (alert_id, triggered_at)
// identifies the instance, not alert_id alone.
type AlertRecord struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	AlertID           string     `gorm:"size:255;not null;index:idx_alert_id" json:"alert_id"`
	RuleName          string     `gorm:"size:255;not null;index:idx_rule_name" json:"rule_name"`
	State             string     `gorm:"size:20;not null;index:idx_state" json:"state"`
	Severity          string     `gorm:"size:20" json:"severity"`
	MetricName        string     `gorm:"size:255" json:"metric_name"`
	MetricValue       float64    `json:"metric_value"`
	Threshold         float64    `json:"threshold"`
	Labels            string     `gorm:"type:text" json:"labels"`      // JSON object
	Annotations       string     `gorm:"type:text" json:"annotations"` // JSON object
	TriggeredAt       time.Time  `gorm:"not null;index:idx_triggered_at" json:"triggered_at"`
	ResolvedAt        *time.Time `json:"resolved_at"`
	LastNotifiedAt    *time.Time `json:"last_notified_at"`
	NotificationCount int        `gorm:"default:0" json:"notification_count"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func (AlertRecord) TableName() string {
	return "alert_history"
}

// SetLabels stores the label set as JSON text.
func (a *AlertRecord) SetLabels(labels map[string]string) {
	a.Labels = encodeMap(labels)
}

// GetLabels decodes the stored label set. A corrupt column yields an
// empty map rather than an error; history reads are best-effort.
func (a *AlertRecord) GetLabels() map[string]string {
	return decodeMap(a.Labels)
}

// SetAnnotations stores the annotation map as JSON text.
func (a *AlertRecord) SetAnnotations(annotations map[string]string) {
	a.Annotations = encodeMap(annotations)
}

// GetAnnotations decodes the stored annotation map.
func (a *AlertRecord) GetAnnotations() map[string]string {
	return decodeMap(a.Annotations)
}

func encodeMap(m map[string]string) string {
	if len(m) == 0 {
		return "{}"
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(data)
}

func decodeMap(s string) map[string]string {
	m := map[string]string{}
	if s == "" {
		return m
	}
	_ = json.Unmarshal([]byte(s), &m)
	return m
}
