package alert

import (
	"sync"
	"time"

	"metricagent/internal/models"
	"metricagent/internal/rules"

	"go.uber.org/zap"
)

// Manager owns the tracker table and is the only writer to the alert
// store. It decides when to notify and drives the lifecycle
// transitions: triggered -> active -> resolved.
type Manager struct {
	store        Store
	channels     map[string]Channel
	mu           sync.RWMutex // guards trackers; evaluator writes, API goroutines read
	trackers     map[string]*Tracker
	sendResolved bool
	log          *zap.Logger

	// injectable clock for deterministic tests
	now func() time.Time
}

// NewManager builds a manager over the given store and named channels.
// The tracker table and store must only be mutated through the single
// evaluation goroutine; concurrent readers use the aggregate accessors.
func NewManager(store Store, channels map[string]Channel, sendResolved bool, log *zap.Logger) *Manager {
	if channels == nil {
		channels = map[string]Channel{}
	}
	if len(channels) == 0 {
		log.Warn("no notification channels configured")
	}
	return &Manager{
		store:        store,
		channels:     channels,
		trackers:     make(map[string]*Tracker),
		sendResolved: sendResolved,
		log:          log,
		now:          time.Now,
	}
}

// Process handles a condition-met event for (rule, labels). The first
// event for an alert id creates a tracker and persists an open record;
// later events refresh the tracker only. When the notify gate opens,
// notifications are dispatched and the transition to active is
// persisted. Persistence write failures propagate.
func (m *Manager) Process(rule *rules.Rule, value float64, labels map[string]string) error {
	alertID := rule.AlertID(labels)
	now := m.now()

	m.mu.RLock()
	tracker, ok := m.trackers[alertID]
	m.mu.RUnlock()
	if !ok {
		tracker = newTracker(alertID, rule, value, labels, now)

		record := &models.AlertRecord{
			AlertID:     alertID,
			RuleName:    rule.Name,
			State:       models.StateTriggered,
			Severity:    rule.Severity,
			MetricName:  rule.MetricName,
			MetricValue: value,
			Threshold:   rule.Threshold,
			TriggeredAt: tracker.FirstTriggeredAt,
		}
		record.SetLabels(labels)
		record.SetAnnotations(rule.Annotations)
		if err := m.store.Save(record); err != nil {
			return err
		}

		m.mu.Lock()
		m.trackers[alertID] = tracker
		m.mu.Unlock()
		m.log.Info("alert triggered",
			zap.String("alert_id", alertID),
			zap.String("rule", rule.Name),
			zap.Float64("value", value),
		)
	} else {
		tracker.Update(value, now)
	}

	if tracker.ShouldNotify(now) {
		return m.notify(tracker)
	}
	return nil
}

// Resolve handles a condition-not-met event. Without a tracker it is a
// no-op, which makes repeated resolution idempotent.
func (m *Manager) Resolve(rule *rules.Rule, labels map[string]string) error {
	alertID := rule.AlertID(labels)

	m.mu.RLock()
	tracker, ok := m.trackers[alertID]
	m.mu.RUnlock()
	if !ok {
		return nil
	}

	resolvedAt := m.now()
	if err := m.store.UpdateState(alertID, models.StateResolved, &resolvedAt); err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.trackers, alertID)
	m.mu.Unlock()

	m.log.Info("alert resolved",
		zap.String("alert_id", alertID),
		zap.String("rule", rule.Name),
	)

	if m.sendResolved {
		m.notifyResolved(tracker)
	}
	return nil
}

// notify dispatches through every channel named by the rule, in order.
// A channel failure is logged and the remaining channels are still
// attempted; the state transition happens regardless of outcome.
func (m *Manager) notify(tracker *Tracker) error {
	rule := tracker.Rule
	m.log.Info("sending notifications", zap.String("alert_id", tracker.AlertID))

	for _, name := range rule.Channels {
		channel, ok := m.channels[name]
		if !ok {
			m.log.Warn("channel not configured, skipping",
				zap.String("channel", name),
				zap.String("alert_id", tracker.AlertID),
			)
			continue
		}
		if err := channel.Send(rule, tracker.LastValue, tracker.Labels); err != nil {
			m.log.Error("failed to send notification",
				zap.String("channel", name),
				zap.String("alert_id", tracker.AlertID),
				zap.Error(err),
			)
			continue
		}
		m.log.Info("notification sent",
			zap.String("channel", name),
			zap.String("alert_id", tracker.AlertID),
		)
	}

	tracker.MarkNotified(m.now())
	if err := m.store.UpdateNotification(tracker.AlertID, tracker.LastNotifiedAt); err != nil {
		return err
	}
	return m.store.UpdateState(tracker.AlertID, models.StateActive, nil)
}

// notifyResolved sends best-effort resolution messages through channels
// that support them.
func (m *Manager) notifyResolved(tracker *Tracker) {
	for _, name := range tracker.Rule.Channels {
		channel, ok := m.channels[name]
		if !ok {
			continue
		}
		rs, ok := channel.(ResolvedSender)
		if !ok {
			continue
		}
		if err := rs.SendResolved(tracker.Rule, tracker.LastValue, tracker.Labels); err != nil {
			m.log.Error("failed to send resolution notification",
				zap.String("channel", name),
				zap.String("alert_id", tracker.AlertID),
				zap.Error(err),
			)
		}
	}
}

// RestoreActive rebuilds trackers from open store rows after a restart.
// Rows are matched to loaded rules by rule name; timers and counts come
// from the row, so hysteresis and cooldown survive the restart. Open
// rows whose rule is no longer loaded are left in the store untouched.
func (m *Manager) RestoreActive(ruleSet []*rules.Rule) {
	byName := make(map[string]*rules.Rule, len(ruleSet))
	for _, r := range ruleSet {
		byName[r.Name] = r
	}

	records := m.store.GetActive()
	restored := 0
	m.mu.Lock()
	for i := range records {
		record := &records[i]
		rule, ok := byName[record.RuleName]
		if !ok {
			m.log.Warn("open alert references unknown rule, leaving record open",
				zap.String("alert_id", record.AlertID),
				zap.String("rule", record.RuleName),
			)
			continue
		}

		tracker := newTracker(record.AlertID, rule, record.MetricValue, record.GetLabels(), record.TriggeredAt)
		tracker.State = record.State
		tracker.NotificationCount = record.NotificationCount
		if record.LastNotifiedAt != nil {
			tracker.LastNotifiedAt = *record.LastNotifiedAt
		}
		m.trackers[record.AlertID] = tracker
		restored++
	}
	m.mu.Unlock()

	if len(records) > 0 {
		m.log.Info("restored active alerts from storage",
			zap.Int("restored", restored),
			zap.Int("open_records", len(records)),
		)
	}
}

// ActiveCount returns the number of currently tracked alerts.
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.trackers)
}

// CountsBySeverity groups currently tracked alerts by rule severity.
func (m *Manager) CountsBySeverity() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[string]int)
	for _, tracker := range m.trackers {
		counts[tracker.Rule.Severity]++
	}
	return counts
}

// ActiveRecords returns the open rows from the store, the durable view
// of in-flight alerts.
func (m *Manager) ActiveRecords() []models.AlertRecord {
	return m.store.GetActive()
}

// History returns recent lifecycle rows for one rule, newest first.
func (m *Manager) History(ruleName string, limit int) []models.AlertRecord {
	return m.store.GetByRule(ruleName, limit)
}

// Cleanup delegates a retention sweep to the store.
func (m *Manager) Cleanup(retentionDays int) {
	if deleted := m.store.Cleanup(retentionDays); deleted > 0 {
		m.log.Info("alert retention sweep complete", zap.Int64("deleted", deleted))
	}
}

// Shutdown releases the store handle and clears the tracker table.
// Open alerts are not auto-resolved; RestoreActive rebuilds them on the
// next start.
func (m *Manager) Shutdown() error {
	m.log.Info("shutting down alert manager")
	err := m.store.Close()
	m.mu.Lock()
	m.trackers = make(map[string]*Tracker)
	m.mu.Unlock()
	return err
}
