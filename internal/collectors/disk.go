package collectors

import (
	"fmt"
	"strings"
	"time"

	"metricagent/internal/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v3/disk"
)

// DiskCollector samples filesystem usage per mounted partition and IO
// counters per block device.
type DiskCollector struct {
	interval          time.Duration
	excludeFS         map[string]bool
	excludeMountPaths []string

	usagePercent *prometheus.GaugeVec
	usedBytes    *prometheus.GaugeVec
	totalBytes   *prometheus.GaugeVec
	readBytes    *prometheus.GaugeVec
	writeBytes   *prometheus.GaugeVec
}

func NewDiskCollector(cfg config.DiskCollectorConfig, reg *prometheus.Registry) *DiskCollector {
	excludeFS := make(map[string]bool, len(cfg.ExcludeFilesystems))
	for _, fs := range cfg.ExcludeFilesystems {
		excludeFS[fs] = true
	}

	partLabels := []string{"mount_point", "device"}
	c := &DiskCollector{
		interval:          time.Duration(cfg.Interval) * time.Second,
		excludeFS:         excludeFS,
		excludeMountPaths: cfg.ExcludeMountPoints,
		usagePercent: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "disk_usage_percent",
			Help: "Used filesystem space as a percentage of total.",
		}, partLabels),
		usedBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "disk_used_bytes",
			Help: "Used filesystem space in bytes.",
		}, partLabels),
		totalBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "disk_total_bytes",
			Help: "Total filesystem size in bytes.",
		}, partLabels),
		readBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "disk_read_bytes",
			Help: "Cumulative bytes read from the device.",
		}, []string{"device"}),
		writeBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "disk_write_bytes",
			Help: "Cumulative bytes written to the device.",
		}, []string{"device"}),
	}
	reg.MustRegister(c.usagePercent, c.usedBytes, c.totalBytes, c.readBytes, c.writeBytes)
	return c
}

func (c *DiskCollector) Name() string            { return "disk" }
func (c *DiskCollector) Interval() time.Duration { return c.interval }

func (c *DiskCollector) excluded(p disk.PartitionStat) bool {
	if c.excludeFS[p.Fstype] {
		return true
	}
	for _, prefix := range c.excludeMountPaths {
		if strings.HasPrefix(p.Mountpoint, prefix) {
			return true
		}
	}
	return false
}

func (c *DiskCollector) Collect() error {
	partitions, err := disk.Partitions(false)
	if err != nil {
		return fmt.Errorf("failed to list partitions: %w", err)
	}

	// Unmounted partitions drop out rather than reporting stale values.
	c.usagePercent.Reset()
	c.usedBytes.Reset()
	c.totalBytes.Reset()

	for _, p := range partitions {
		if c.excluded(p) {
			continue
		}
		usage, err := disk.Usage(p.Mountpoint)
		if err != nil {
			// Transient mounts can disappear between listing and stat.
			continue
		}
		c.usagePercent.WithLabelValues(p.Mountpoint, p.Device).Set(usage.UsedPercent)
		c.usedBytes.WithLabelValues(p.Mountpoint, p.Device).Set(float64(usage.Used))
		c.totalBytes.WithLabelValues(p.Mountpoint, p.Device).Set(float64(usage.Total))
	}

	counters, err := disk.IOCounters()
	if err != nil {
		return fmt.Errorf("failed to read disk io counters: %w", err)
	}
	for device, stat := range counters {
		c.readBytes.WithLabelValues(device).Set(float64(stat.ReadBytes))
		c.writeBytes.WithLabelValues(device).Set(float64(stat.WriteBytes))
	}

	return nil
}
