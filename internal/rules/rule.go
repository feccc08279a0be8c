package rules

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Valid comparison operators for rule conditions.
var validOperators = map[string]bool{
	">": true, "<": true, ">=": true, "<=": true, "==": true, "!=": true,
}

// Valid alert severities.
var validSeverities = map[string]bool{
	"info": true, "warning": true, "critical": true,
}

// Rule is an immutable alerting rule. Construct with New so invalid
// definitions are rejected up front.
type Rule struct {
	Name          string
	MetricName    string
	Operator      string
	Threshold     float64
	ForDuration   time.Duration // condition must hold this long before the first notification
	Severity      string
	Channels      []string
	Enabled       bool
	Labels        map[string]string // static, informational
	LabelSelector map[string]string // exact-match filter on metric samples
	Annotations   map[string]string
	Cooldown      time.Duration // minimum gap between repeat notifications
	Description   string
}

// New validates and returns a rule. Missing maps are normalized to empty
// so callers never deal with nil.
func New(r Rule) (*Rule, error) {
	if r.Name == "" {
		return nil, fmt.Errorf("rule name cannot be empty")
	}
	if r.MetricName == "" {
		return nil, fmt.Errorf("rule %s: metric_name cannot be empty", r.Name)
	}
	if !validOperators[r.Operator] {
		return nil, fmt.Errorf("rule %s: invalid operator: %s", r.Name, r.Operator)
	}
	if !validSeverities[r.Severity] {
		return nil, fmt.Errorf("rule %s: invalid severity: %s", r.Name, r.Severity)
	}
	if r.ForDuration < 0 {
		return nil, fmt.Errorf("rule %s: for duration must be >= 0, got %s", r.Name, r.ForDuration)
	}
	if r.Cooldown < 0 {
		return nil, fmt.Errorf("rule %s: cooldown must be >= 0, got %s", r.Name, r.Cooldown)
	}
	if len(r.Channels) == 0 {
		return nil, fmt.Errorf("rule %s: at least one channel must be specified", r.Name)
	}
	if r.Labels == nil {
		r.Labels = map[string]string{}
	}
	if r.LabelSelector == nil {
		r.LabelSelector = map[string]string{}
	}
	if r.Annotations == nil {
		r.Annotations = map[string]string{}
	}
	return &r, nil
}

// AlertID derives the deduplication key for one firing of this rule
// against one label combination. Labels are sorted by key so insertion
// order never changes the id.
func (r *Rule) AlertID(labels map[string]string) string {
	if len(labels) == 0 {
		return r.Name
	}

	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+labels[k])
	}
	return r.Name + "_" + strings.Join(parts, "_")
}

// Compare evaluates the rule condition against a sample value.
// Equality operators compare raw floats with no tolerance; rules on
// float-valued metrics that use == or != may flap on rounding noise.
func (r *Rule) Compare(value float64) (bool, error) {
	switch r.Operator {
	case ">":
		return value > r.Threshold, nil
	case "<":
		return value < r.Threshold, nil
	case ">=":
		return value >= r.Threshold, nil
	case "<=":
		return value <= r.Threshold, nil
	case "==":
		return value == r.Threshold, nil
	case "!=":
		return value != r.Threshold, nil
	default:
		return false, fmt.Errorf("unknown operator: %s", r.Operator)
	}
}
