package rules

import (
	"testing"
	"time"
)

func validRule() Rule {
	return Rule{
		Name:        "cpu_high",
		MetricName:  "cpu_usage_percent",
		Operator:    ">",
		Threshold:   90,
		ForDuration: 5 * time.Minute,
		Cooldown:    15 * time.Minute,
		Severity:    "critical",
		Channels:    []string{"slack"},
		Enabled:     true,
	}
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Rule)
		wantErr bool
	}{
		{"valid", func(r *Rule) {}, false},
		{"empty name", func(r *Rule) { r.Name = "" }, true},
		{"empty metric", func(r *Rule) { r.MetricName = "" }, true},
		{"bad operator", func(r *Rule) { r.Operator = "=>" }, true},
		{"bad severity", func(r *Rule) { r.Severity = "fatal" }, true},
		{"negative for duration", func(r *Rule) { r.ForDuration = -time.Minute }, true},
		{"negative cooldown", func(r *Rule) { r.Cooldown = -time.Second }, true},
		{"no channels", func(r *Rule) { r.Channels = nil }, true},
		{"zero durations ok", func(r *Rule) { r.ForDuration = 0; r.Cooldown = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRule()
			tt.mutate(&r)
			_, err := New(r)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewNormalizesNilMaps(t *testing.T) {
	r := validRule()
	r.Labels = nil
	r.LabelSelector = nil
	r.Annotations = nil

	rule, err := New(r)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if rule.Labels == nil || rule.LabelSelector == nil || rule.Annotations == nil {
		t.Fatal("expected nil maps to be normalized to empty")
	}
}

func TestAlertID(t *testing.T) {
	rule, err := New(validRule())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	if got := rule.AlertID(nil); got != "cpu_high" {
		t.Errorf("AlertID(nil) = %q, want rule name", got)
	}
	if got := rule.AlertID(map[string]string{}); got != "cpu_high" {
		t.Errorf("AlertID(empty) = %q, want rule name", got)
	}

	want := "cpu_high_core=0_host=web1"
	if got := rule.AlertID(map[string]string{"host": "web1", "core": "0"}); got != want {
		t.Errorf("AlertID = %q, want %q", got, want)
	}
}

func TestAlertIDOrderIndependent(t *testing.T) {
	rule, err := New(validRule())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	a := rule.AlertID(map[string]string{"a": "1", "b": "2", "c": "3"})
	b := rule.AlertID(map[string]string{"c": "3", "a": "1", "b": "2"})
	if a != b {
		t.Errorf("AlertID depends on insertion order: %q vs %q", a, b)
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		operator  string
		threshold float64
		value     float64
		want      bool
	}{
		{">", 90, 95, true},
		{">", 90, 90, false},
		{"<", 10, 5, true},
		{"<", 10, 10, false},
		{">=", 90, 90, true},
		{"<=", 10, 10, true},
		{"==", 50, 50, true},
		{"==", 50, 50.0001, false},
		{"!=", 50, 51, true},
		{"!=", 50, 50, false},
	}

	for _, tt := range tests {
		r := validRule()
		r.Operator = tt.operator
		r.Threshold = tt.threshold
		rule, err := New(r)
		if err != nil {
			t.Fatalf("New() failed: %v", err)
		}

		got, err := rule.Compare(tt.value)
		if err != nil {
			t.Fatalf("Compare(%v) failed: %v", tt.value, err)
		}
		if got != tt.want {
			t.Errorf("Compare(%v %s %v) = %v, want %v", tt.value, tt.operator, tt.threshold, got, tt.want)
		}
	}
}
