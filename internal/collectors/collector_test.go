package collectors

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"metricagent/internal/config"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func TestBuildHonorsEnabledFlags(t *testing.T) {
	cfg := config.CollectorsConfig{
		CPU:     config.CPUCollectorConfig{CollectorConfig: config.CollectorConfig{Enabled: true, Interval: 5}},
		Memory:  config.CollectorConfig{Enabled: true, Interval: 5},
		Disk:    config.DiskCollectorConfig{CollectorConfig: config.CollectorConfig{Enabled: false, Interval: 30}},
		Network: config.NetworkCollectorConfig{CollectorConfig: config.CollectorConfig{Enabled: false, Interval: 5}},
		Process: config.ProcessCollectorConfig{CollectorConfig: config.CollectorConfig{Enabled: false, Interval: 10}, TopN: 5},
	}

	built := Build(cfg, prometheus.NewRegistry())
	if len(built) != 2 {
		t.Fatalf("Build() = %d collectors, want 2", len(built))
	}
	names := map[string]bool{}
	for _, c := range built {
		names[c.Name()] = true
	}
	if !names["cpu"] || !names["memory"] {
		t.Errorf("built collectors = %v, want cpu and memory", names)
	}
}

// tickCollector counts invocations and optionally fails.
type tickCollector struct {
	calls int32
	fail  bool
}

func (c *tickCollector) Name() string            { return "tick" }
func (c *tickCollector) Interval() time.Duration { return 10 * time.Millisecond }

func (c *tickCollector) Collect() error {
	atomic.AddInt32(&c.calls, 1)
	if c.fail {
		return errors.New("collect failed")
	}
	return nil
}

func TestServiceRunsAndStops(t *testing.T) {
	collector := &tickCollector{}
	svc := NewService([]Collector{collector}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	svc.Start(ctx)

	deadline := time.After(2 * time.Second)
	for atomic.LoadInt32(&collector.calls) < 3 {
		select {
		case <-deadline:
			t.Fatal("collector was not invoked repeatedly")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	svc.Wait()
}

func TestServiceSurvivesFailingCollector(t *testing.T) {
	failing := &tickCollector{fail: true}
	healthy := &tickCollector{}
	svc := NewService([]Collector{failing, healthy}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	svc.Start(ctx)

	deadline := time.After(2 * time.Second)
	for atomic.LoadInt32(&healthy.calls) < 3 || atomic.LoadInt32(&failing.calls) < 3 {
		select {
		case <-deadline:
			t.Fatal("loops should keep running despite failures")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	svc.Wait()
}
