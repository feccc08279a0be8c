package collectors

import (
	"fmt"
	"strconv"
	"time"

	"metricagent/internal/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/load"
)

// CPUCollector samples aggregate and optionally per-core CPU usage plus
// load averages.
type CPUCollector struct {
	interval time.Duration
	perCPU   bool

	usage     prometheus.Gauge
	usageCore *prometheus.GaugeVec
	loadAvg   *prometheus.GaugeVec
	coreCount prometheus.Gauge
}

func NewCPUCollector(cfg config.CPUCollectorConfig, reg *prometheus.Registry) *CPUCollector {
	c := &CPUCollector{
		interval: time.Duration(cfg.Interval) * time.Second,
		perCPU:   cfg.PerCPU,
		usage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cpu_usage_percent",
			Help: "Aggregate CPU usage percentage across all cores.",
		}),
		usageCore: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cpu_core_usage_percent",
			Help: "CPU usage percentage per core.",
		}, []string{"core"}),
		loadAvg: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cpu_load_average",
			Help: "System load average.",
		}, []string{"period"}),
		coreCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cpu_core_count",
			Help: "Number of logical CPU cores.",
		}),
	}
	reg.MustRegister(c.usage, c.loadAvg, c.coreCount)
	if c.perCPU {
		reg.MustRegister(c.usageCore)
	}
	return c
}

func (c *CPUCollector) Name() string            { return "cpu" }
func (c *CPUCollector) Interval() time.Duration { return c.interval }

func (c *CPUCollector) Collect() error {
	// Interval 0 measures against the previous call, so the first
	// sample after startup may read zero.
	percents, err := cpu.Percent(0, false)
	if err != nil {
		return fmt.Errorf("failed to read cpu usage: %w", err)
	}
	if len(percents) > 0 {
		c.usage.Set(percents[0])
	}

	counts, err := cpu.Counts(true)
	if err == nil {
		c.coreCount.Set(float64(counts))
	}

	if c.perCPU {
		perCore, err := cpu.Percent(0, true)
		if err != nil {
			return fmt.Errorf("failed to read per-core cpu usage: %w", err)
		}
		for i, p := range perCore {
			c.usageCore.WithLabelValues(strconv.Itoa(i)).Set(p)
		}
	}

	avg, err := load.Avg()
	if err != nil {
		return fmt.Errorf("failed to read load average: %w", err)
	}
	c.loadAvg.WithLabelValues("1m").Set(avg.Load1)
	c.loadAvg.WithLabelValues("5m").Set(avg.Load5)
	c.loadAvg.WithLabelValues("15m").Set(avg.Load15)

	return nil
}
