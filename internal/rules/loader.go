package rules

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// ruleDocument is the on-disk rules file layout.
type ruleDocument struct {
	AlertRules []ruleSpec `yaml:"alert_rules"`
}

type ruleSpec struct {
	Name               string            `yaml:"name"`
	MetricName         string            `yaml:"metric_name"`
	Condition          conditionSpec     `yaml:"condition"`
	ForDurationMinutes *int              `yaml:"for_duration_minutes"`
	Severity           string            `yaml:"severity"`
	Channels           []string          `yaml:"channels"`
	Enabled            *bool             `yaml:"enabled"`
	Labels             map[string]string `yaml:"labels"`
	LabelSelector      map[string]string `yaml:"label_selector"`
	Annotations        map[string]string `yaml:"annotations"`
	CooldownMinutes    *int              `yaml:"cooldown_minutes"`
	Description        string            `yaml:"description"`
}

type conditionSpec struct {
	Operator  string  `yaml:"operator"`
	Threshold float64 `yaml:"threshold"`
}

// LoadFile parses the alert rules document at path. A rule that fails
// validation is logged and skipped; loading continues with the rest.
// A missing or unparsable file is an error.
func LoadFile(path string, log *zap.Logger) ([]*Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	var doc ruleDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse rules file: %w", err)
	}

	if len(doc.AlertRules) == 0 {
		log.Warn("no alert_rules found in rules file", zap.String("path", path))
		return []*Rule{}, nil
	}

	rules := make([]*Rule, 0, len(doc.AlertRules))
	for _, spec := range doc.AlertRules {
		rule, err := fromSpec(spec)
		if err != nil {
			log.Error("skipping invalid alert rule",
				zap.String("rule", spec.Name),
				zap.Error(err),
			)
			continue
		}
		rules = append(rules, rule)
		log.Debug("loaded alert rule", zap.String("rule", rule.Name))
	}

	log.Info("loaded alert rules",
		zap.Int("count", len(rules)),
		zap.String("path", path),
	)
	return rules, nil
}

func fromSpec(spec ruleSpec) (*Rule, error) {
	operator := spec.Condition.Operator
	if operator == "" {
		operator = ">"
	}
	severity := spec.Severity
	if severity == "" {
		severity = "warning"
	}

	forDuration := 1 * time.Minute
	if spec.ForDurationMinutes != nil {
		forDuration = time.Duration(*spec.ForDurationMinutes) * time.Minute
	}
	cooldown := 15 * time.Minute
	if spec.CooldownMinutes != nil {
		cooldown = time.Duration(*spec.CooldownMinutes) * time.Minute
	}
	enabled := true
	if spec.Enabled != nil {
		enabled = *spec.Enabled
	}

	return New(Rule{
		Name:          spec.Name,
		MetricName:    spec.MetricName,
		Operator:      operator,
		Threshold:     spec.Condition.Threshold,
		ForDuration:   forDuration,
		Severity:      severity,
		Channels:      spec.Channels,
		Enabled:       enabled,
		Labels:        spec.Labels,
		LabelSelector: spec.LabelSelector,
		Annotations:   spec.Annotations,
		Cooldown:      cooldown,
		Description:   spec.Description,
	})
}
