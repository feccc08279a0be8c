package collectors

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"metricagent/internal/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v3/process"
)

// ProcessCollector samples the process table and exposes per-process
// gauges for the top consumers by CPU.
type ProcessCollector struct {
	interval time.Duration
	topN     int

	count      prometheus.Gauge
	cpuPercent *prometheus.GaugeVec
	memRSS     *prometheus.GaugeVec
}

func NewProcessCollector(cfg config.ProcessCollectorConfig, reg *prometheus.Registry) *ProcessCollector {
	labels := []string{"pid", "name"}
	c := &ProcessCollector{
		interval: time.Duration(cfg.Interval) * time.Second,
		topN:     cfg.TopN,
		count: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "process_count",
			Help: "Total number of processes.",
		}),
		cpuPercent: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "process_cpu_percent",
			Help: "CPU usage percentage of the process.",
		}, labels),
		memRSS: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "process_memory_rss_bytes",
			Help: "Resident set size of the process in bytes.",
		}, labels),
	}
	reg.MustRegister(c.count, c.cpuPercent, c.memRSS)
	return c
}

func (c *ProcessCollector) Name() string            { return "process" }
func (c *ProcessCollector) Interval() time.Duration { return c.interval }

type processSample struct {
	pid  int32
	name string
	cpu  float64
	rss  uint64
}

func (c *ProcessCollector) Collect() error {
	procs, err := process.Processes()
	if err != nil {
		return fmt.Errorf("failed to list processes: %w", err)
	}
	c.count.Set(float64(len(procs)))

	samples := make([]processSample, 0, len(procs))
	for _, p := range procs {
		// Processes can exit mid-scan; skip anything unreadable.
		name, err := p.Name()
		if err != nil {
			continue
		}
		cpuPct, err := p.CPUPercent()
		if err != nil {
			continue
		}
		var rss uint64
		if memInfo, err := p.MemoryInfo(); err == nil && memInfo != nil {
			rss = memInfo.RSS
		}
		samples = append(samples, processSample{pid: p.Pid, name: name, cpu: cpuPct, rss: rss})
	}

	sort.Slice(samples, func(i, j int) bool { return samples[i].cpu > samples[j].cpu })
	if len(samples) > c.topN {
		samples = samples[:c.topN]
	}

	// Exited processes drop out of the exposition.
	c.cpuPercent.Reset()
	c.memRSS.Reset()
	for _, s := range samples {
		pid := strconv.Itoa(int(s.pid))
		c.cpuPercent.WithLabelValues(pid, s.name).Set(s.cpu)
		c.memRSS.WithLabelValues(pid, s.name).Set(float64(s.rss))
	}

	return nil
}
