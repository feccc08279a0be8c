package collectors

import (
	"fmt"
	"time"

	"metricagent/internal/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v3/net"
)

// NetworkCollector samples per-interface traffic and error counters.
type NetworkCollector struct {
	interval time.Duration
	exclude  map[string]bool

	bytesSent   *prometheus.GaugeVec
	bytesRecv   *prometheus.GaugeVec
	packetsSent *prometheus.GaugeVec
	packetsRecv *prometheus.GaugeVec
	errorsIn    *prometheus.GaugeVec
	errorsOut   *prometheus.GaugeVec
}

func NewNetworkCollector(cfg config.NetworkCollectorConfig, reg *prometheus.Registry) *NetworkCollector {
	exclude := make(map[string]bool, len(cfg.ExcludeInterfaces))
	for _, iface := range cfg.ExcludeInterfaces {
		exclude[iface] = true
	}

	labels := []string{"interface"}
	c := &NetworkCollector{
		interval: time.Duration(cfg.Interval) * time.Second,
		exclude:  exclude,
		bytesSent: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "network_bytes_sent",
			Help: "Cumulative bytes sent on the interface.",
		}, labels),
		bytesRecv: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "network_bytes_recv",
			Help: "Cumulative bytes received on the interface.",
		}, labels),
		packetsSent: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "network_packets_sent",
			Help: "Cumulative packets sent on the interface.",
		}, labels),
		packetsRecv: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "network_packets_recv",
			Help: "Cumulative packets received on the interface.",
		}, labels),
		errorsIn: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "network_errors_in",
			Help: "Cumulative receive errors on the interface.",
		}, labels),
		errorsOut: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "network_errors_out",
			Help: "Cumulative transmit errors on the interface.",
		}, labels),
	}
	reg.MustRegister(c.bytesSent, c.bytesRecv, c.packetsSent, c.packetsRecv, c.errorsIn, c.errorsOut)
	return c
}

func (c *NetworkCollector) Name() string            { return "network" }
func (c *NetworkCollector) Interval() time.Duration { return c.interval }

func (c *NetworkCollector) Collect() error {
	counters, err := net.IOCounters(true)
	if err != nil {
		return fmt.Errorf("failed to read network io counters: %w", err)
	}

	for _, stat := range counters {
		if c.exclude[stat.Name] {
			continue
		}
		c.bytesSent.WithLabelValues(stat.Name).Set(float64(stat.BytesSent))
		c.bytesRecv.WithLabelValues(stat.Name).Set(float64(stat.BytesRecv))
		c.packetsSent.WithLabelValues(stat.Name).Set(float64(stat.PacketsSent))
		c.packetsRecv.WithLabelValues(stat.Name).Set(float64(stat.PacketsRecv))
		c.errorsIn.WithLabelValues(stat.Name).Set(float64(stat.Errin))
		c.errorsOut.WithLabelValues(stat.Name).Set(float64(stat.Errout))
	}

	return nil
}
