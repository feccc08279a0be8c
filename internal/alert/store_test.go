package alert

import (
	"path/filepath"
	"testing"
	"time"

	"metricagent/internal/config"
	"metricagent/internal/database"
	"metricagent/internal/models"

	"go.uber.org/zap"
)

func newTestStore(t *testing.T) *GormStore {
	t.Helper()
	db, err := database.Open(config.DatabaseConfig{
		Driver: "sqlite",
		DBName: filepath.Join(t.TempDir(), "alerts.db"),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	store := NewGormStore(db, zap.NewNop())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func openRecord(alertID string, triggeredAt time.Time) *models.AlertRecord {
	return &models.AlertRecord{
		AlertID:     alertID,
		RuleName:    "cpu_high",
		State:       models.StateTriggered,
		Severity:    "critical",
		MetricName:  "cpu_usage_percent",
		MetricValue: 95,
		Threshold:   90,
		TriggeredAt: triggeredAt,
	}
}

func TestStoreSaveAndGetActive(t *testing.T) {
	store := newTestStore(t)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	record := openRecord("cpu_high", base)
	record.SetLabels(map[string]string{"core": "0"})
	if err := store.Save(record); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	active := store.GetActive()
	if len(active) != 1 {
		t.Fatalf("GetActive() = %d records, want 1", len(active))
	}
	if active[0].AlertID != "cpu_high" {
		t.Errorf("alert_id = %q", active[0].AlertID)
	}
	if got := active[0].GetLabels(); got["core"] != "0" {
		t.Errorf("labels = %v, want core=0", got)
	}
}

func TestStoreUpdateStateClosesRow(t *testing.T) {
	store := newTestStore(t)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	if err := store.Save(openRecord("cpu_high", base)); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	resolvedAt := base.Add(10 * time.Minute)
	if err := store.UpdateState("cpu_high", models.StateResolved, &resolvedAt); err != nil {
		t.Fatalf("UpdateState() failed: %v", err)
	}

	if active := store.GetActive(); len(active) != 0 {
		t.Fatalf("GetActive() after resolve = %d records, want 0", len(active))
	}

	// A resolved row is no longer open, so further updates must not
	// touch it.
	if err := store.UpdateState("cpu_high", models.StateActive, nil); err != nil {
		t.Fatalf("UpdateState() on closed row failed: %v", err)
	}
	history := store.GetByRule("cpu_high", 10)
	if len(history) != 1 {
		t.Fatalf("history = %d rows, want 1", len(history))
	}
	if history[0].State != models.StateResolved {
		t.Errorf("state = %q, closed row must stay resolved", history[0].State)
	}
}

func TestStoreReTriggerCreatesNewRow(t *testing.T) {
	store := newTestStore(t)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	first := openRecord("cpu_high", base)
	if err := store.Save(first); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	resolvedAt := base.Add(5 * time.Minute)
	if err := store.UpdateState("cpu_high", models.StateResolved, &resolvedAt); err != nil {
		t.Fatalf("UpdateState() failed: %v", err)
	}

	second := openRecord("cpu_high", base.Add(20*time.Minute))
	if err := store.Save(second); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	if active := store.GetActive(); len(active) != 1 {
		t.Fatalf("GetActive() = %d, want exactly the re-triggered row", len(active))
	}
	if history := store.GetByRule("cpu_high", 10); len(history) != 2 {
		t.Fatalf("history = %d rows, want 2 lifecycle instances", len(history))
	}
}

func TestStoreUpdateNotification(t *testing.T) {
	store := newTestStore(t)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	if err := store.Save(openRecord("cpu_high", base)); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	notifiedAt := base.Add(5 * time.Minute)
	if err := store.UpdateNotification("cpu_high", notifiedAt); err != nil {
		t.Fatalf("UpdateNotification() failed: %v", err)
	}
	if err := store.UpdateNotification("cpu_high", notifiedAt.Add(15*time.Minute)); err != nil {
		t.Fatalf("UpdateNotification() failed: %v", err)
	}

	active := store.GetActive()
	if len(active) != 1 {
		t.Fatalf("GetActive() = %d, want 1", len(active))
	}
	if active[0].NotificationCount != 2 {
		t.Errorf("notification_count = %d, want 2", active[0].NotificationCount)
	}
	if active[0].LastNotifiedAt == nil {
		t.Fatal("last_notified_at should be set")
	}
}

func TestStoreGetByRuleOrderAndLimit(t *testing.T) {
	store := newTestStore(t)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		r := openRecord("cpu_high", base.Add(time.Duration(i)*time.Hour))
		r.MetricValue = float64(90 + i)
		if err := store.Save(r); err != nil {
			t.Fatalf("Save() failed: %v", err)
		}
	}

	rows := store.GetByRule("cpu_high", 3)
	if len(rows) != 3 {
		t.Fatalf("GetByRule() = %d rows, want limit 3", len(rows))
	}
	// Newest first.
	if rows[0].MetricValue != 94 {
		t.Errorf("first row value = %v, want newest (94)", rows[0].MetricValue)
	}

	if other := store.GetByRule("unknown_rule", 10); len(other) != 0 {
		t.Fatalf("GetByRule(unknown) = %d rows, want 0", len(other))
	}
}

func TestStoreCleanup(t *testing.T) {
	store := newTestStore(t)
	now := time.Now()

	// Old resolved row: swept.
	old := openRecord("old", now.AddDate(0, 0, -40))
	if err := store.Save(old); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	resolvedAt := now.AddDate(0, 0, -39)
	if err := store.UpdateState("old", models.StateResolved, &resolvedAt); err != nil {
		t.Fatalf("UpdateState() failed: %v", err)
	}

	// Old but still open row: kept regardless of age.
	if err := store.Save(openRecord("old_open", now.AddDate(0, 0, -40))); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	// Recent resolved row: kept.
	recent := openRecord("recent", now.AddDate(0, 0, -2))
	if err := store.Save(recent); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	recentResolved := now.AddDate(0, 0, -1)
	if err := store.UpdateState("recent", models.StateResolved, &recentResolved); err != nil {
		t.Fatalf("UpdateState() failed: %v", err)
	}

	if deleted := store.Cleanup(30); deleted != 1 {
		t.Fatalf("Cleanup() deleted %d rows, want 1", deleted)
	}
	if open := store.GetActive(); len(open) != 1 || open[0].AlertID != "old_open" {
		t.Fatal("open rows must survive retention sweeps")
	}
}
