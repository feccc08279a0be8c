package collectors

import (
	"fmt"
	"time"

	"metricagent/internal/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v3/mem"
)

// MemoryCollector samples virtual memory and swap usage.
type MemoryCollector struct {
	interval time.Duration

	usagePercent prometheus.Gauge
	usedBytes    prometheus.Gauge
	totalBytes   prometheus.Gauge
	availBytes   prometheus.Gauge
	swapPercent  prometheus.Gauge
	swapUsed     prometheus.Gauge
}

func NewMemoryCollector(cfg config.CollectorConfig, reg *prometheus.Registry) *MemoryCollector {
	c := &MemoryCollector{
		interval: time.Duration(cfg.Interval) * time.Second,
		usagePercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "memory_usage_percent",
			Help: "Used physical memory as a percentage of total.",
		}),
		usedBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "memory_used_bytes",
			Help: "Used physical memory in bytes.",
		}),
		totalBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "memory_total_bytes",
			Help: "Total physical memory in bytes.",
		}),
		availBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "memory_available_bytes",
			Help: "Memory available for allocation in bytes.",
		}),
		swapPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "swap_usage_percent",
			Help: "Used swap as a percentage of total.",
		}),
		swapUsed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "swap_used_bytes",
			Help: "Used swap in bytes.",
		}),
	}
	reg.MustRegister(c.usagePercent, c.usedBytes, c.totalBytes, c.availBytes, c.swapPercent, c.swapUsed)
	return c
}

func (c *MemoryCollector) Name() string            { return "memory" }
func (c *MemoryCollector) Interval() time.Duration { return c.interval }

func (c *MemoryCollector) Collect() error {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return fmt.Errorf("failed to read virtual memory: %w", err)
	}
	c.usagePercent.Set(vm.UsedPercent)
	c.usedBytes.Set(float64(vm.Used))
	c.totalBytes.Set(float64(vm.Total))
	c.availBytes.Set(float64(vm.Available))

	swap, err := mem.SwapMemory()
	if err != nil {
		return fmt.Errorf("failed to read swap memory: %w", err)
	}
	c.swapPercent.Set(swap.UsedPercent)
	c.swapUsed.Set(float64(swap.Used))

	return nil
}
