package collectors

import (
	"context"
	"sync"
	"time"

	"metricagent/internal/config"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Collector samples one subsystem of the host into registered gauges.
type Collector interface {
	Name() string
	Interval() time.Duration
	Collect() error
}

// unhealthyAfter is the consecutive-failure count at which a collector
// is reported unhealthy.
const unhealthyAfter = 3

// Build instantiates the enabled collectors and registers their gauges.
func Build(cfg config.CollectorsConfig, reg *prometheus.Registry) []Collector {
	var cs []Collector
	if cfg.CPU.Enabled {
		cs = append(cs, NewCPUCollector(cfg.CPU, reg))
	}
	if cfg.Memory.Enabled {
		cs = append(cs, NewMemoryCollector(cfg.Memory, reg))
	}
	if cfg.Disk.Enabled {
		cs = append(cs, NewDiskCollector(cfg.Disk, reg))
	}
	if cfg.Network.Enabled {
		cs = append(cs, NewNetworkCollector(cfg.Network, reg))
	}
	if cfg.Process.Enabled {
		cs = append(cs, NewProcessCollector(cfg.Process, reg))
	}
	return cs
}

// Service runs one collection loop per collector.
type Service struct {
	collectors []Collector
	log        *zap.Logger
	wg         sync.WaitGroup
}

func NewService(collectors []Collector, log *zap.Logger) *Service {
	return &Service{collectors: collectors, log: log}
}

// Start launches the collection loops. They stop when ctx is cancelled.
func (s *Service) Start(ctx context.Context) {
	for _, c := range s.collectors {
		s.wg.Add(1)
		go func(c Collector) {
			defer s.wg.Done()
			s.runLoop(ctx, c)
		}(c)
		s.log.Info("started collector",
			zap.String("collector", c.Name()),
			zap.Duration("interval", c.Interval()),
		)
	}
}

// Wait blocks until all collection loops have exited.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) runLoop(ctx context.Context, c Collector) {
	ticker := time.NewTicker(c.Interval())
	defer ticker.Stop()

	errorCount := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			start := time.Now()
			if err := c.Collect(); err != nil {
				errorCount++
				s.log.Error("collection failed",
					zap.String("collector", c.Name()),
					zap.Int("consecutive_errors", errorCount),
					zap.Error(err),
				)
				if errorCount == unhealthyAfter {
					s.log.Warn("collector unhealthy",
						zap.String("collector", c.Name()),
					)
				}
				continue
			}
			errorCount = 0
			s.log.Debug("collection completed",
				zap.String("collector", c.Name()),
				zap.Duration("duration", time.Since(start)),
			)
		}
	}
}
