package alert

import (
	"context"
	"sync"
	"time"

	"metricagent/internal/metrics"
	"metricagent/internal/rules"

	"go.uber.org/zap"
)

// Evaluator drives periodic rule evaluation against the metric source
// and routes condition events to the manager. It holds no persistent
// state beyond its rule list; rules may be added, removed or replaced
// between ticks and take effect on the next EvaluateAll.
type Evaluator struct {
	mu      sync.RWMutex
	rules   []*rules.Rule
	source  metrics.Source
	manager *Manager
	log     *zap.Logger
}

func NewEvaluator(ruleSet []*rules.Rule, source metrics.Source, manager *Manager, log *zap.Logger) *Evaluator {
	log.Info("alert evaluator initialized", zap.Int("rules", len(ruleSet)))
	return &Evaluator{
		rules:   ruleSet,
		source:  source,
		manager: manager,
		log:     log,
	}
}

// EvaluateAll evaluates every enabled rule once. A rule that fails to
// evaluate is logged and skipped; the batch always continues.
func (e *Evaluator) EvaluateAll() {
	e.mu.RLock()
	snapshot := make([]*rules.Rule, len(e.rules))
	copy(snapshot, e.rules)
	e.mu.RUnlock()

	for _, rule := range snapshot {
		if !rule.Enabled {
			continue
		}
		if err := e.evaluateRule(rule); err != nil {
			e.log.Error("rule evaluation failed",
				zap.String("rule", rule.Name),
				zap.Error(err),
			)
		}
	}
}

func (e *Evaluator) evaluateRule(rule *rules.Rule) error {
	samples, err := e.source.Get(rule.MetricName, rule.LabelSelector)
	if err != nil {
		return err
	}

	// No samples means the metric is momentarily absent. Skip the rule
	// rather than resolving open alerts on a gap in the data.
	if len(samples) == 0 {
		e.log.Debug("no samples for rule",
			zap.String("rule", rule.Name),
			zap.String("metric", rule.MetricName),
		)
		return nil
	}

	for _, sample := range samples {
		met, err := rule.Compare(sample.Value)
		if err != nil {
			return err
		}
		if met {
			if err := e.manager.Process(rule, sample.Value, sample.Labels); err != nil {
				return err
			}
		} else {
			if err := e.manager.Resolve(rule, sample.Labels); err != nil {
				return err
			}
		}
	}
	return nil
}

// AddRule registers a rule for evaluation starting with the next tick.
func (e *Evaluator) AddRule(rule *rules.Rule) {
	e.mu.Lock()
	e.rules = append(e.rules, rule)
	e.mu.Unlock()
	e.log.Info("added alert rule", zap.String("rule", rule.Name))
}

// RemoveRule removes a rule by name and reports whether it was found.
func (e *Evaluator) RemoveRule(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, rule := range e.rules {
		if rule.Name == name {
			e.rules = append(e.rules[:i], e.rules[i+1:]...)
			e.log.Info("removed alert rule", zap.String("rule", name))
			return true
		}
	}
	e.log.Warn("rule not found", zap.String("rule", name))
	return false
}

// ReplaceRules swaps the whole rule set, used by the rules file watcher.
func (e *Evaluator) ReplaceRules(ruleSet []*rules.Rule) {
	e.mu.Lock()
	e.rules = ruleSet
	e.mu.Unlock()
	e.log.Info("replaced rule set", zap.Int("rules", len(ruleSet)))
}

// RuleCount returns the total number of registered rules.
func (e *Evaluator) RuleCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.rules)
}

// EnabledRuleCount returns the number of enabled rules.
func (e *Evaluator) EnabledRuleCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	count := 0
	for _, rule := range e.rules {
		if rule.Enabled {
			count++
		}
	}
	return count
}

// Rules returns a snapshot of the current rule set for introspection.
func (e *Evaluator) Rules() []*rules.Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	snapshot := make([]*rules.Rule, len(e.rules))
	copy(snapshot, e.rules)
	return snapshot
}

// Run evaluates on evalInterval and sweeps retention on cleanupInterval
// until ctx is cancelled. Evaluation and dispatch are sequential within
// one tick; a slow channel delays the next tick rather than overlapping
// it.
func (e *Evaluator) Run(ctx context.Context, evalInterval, cleanupInterval time.Duration, retentionDays int) {
	evalTicker := time.NewTicker(evalInterval)
	defer evalTicker.Stop()
	cleanupTicker := time.NewTicker(cleanupInterval)
	defer cleanupTicker.Stop()

	e.log.Info("alert evaluation loop started",
		zap.Duration("interval", evalInterval),
		zap.Duration("cleanup_interval", cleanupInterval),
	)

	for {
		select {
		case <-ctx.Done():
			e.log.Info("alert evaluation loop stopped")
			return
		case <-evalTicker.C:
			e.EvaluateAll()
		case <-cleanupTicker.C:
			e.manager.Cleanup(retentionDays)
		}
	}
}
