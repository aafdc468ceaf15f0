// Package monitor samples host resource usage for the status endpoint and
// Prometheus gauges.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"

	"github.com/t77yq/coastal-alert/internal/model"
	"github.com/t77yq/coastal-alert/internal/observability"
)

// sampleFunc returns CPU and memory utilisation percentages
type sampleFunc func(ctx context.Context) (cpuPercent, memPercent float64, err error)

// HostCollector periodically samples CPU and memory usage
type HostCollector struct {
	logger   *zap.Logger
	metrics  *observability.Metrics
	interval time.Duration
	sample   sampleFunc

	mu     sync.RWMutex
	latest model.HostStats

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewHostCollector creates a new host collector
func NewHostCollector(interval time.Duration, metrics *observability.Metrics, logger *zap.Logger) *HostCollector {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if metrics == nil {
		metrics = observability.NewMetricsForTesting()
	}
	return &HostCollector{
		logger:   logger.Named("host-collector"),
		metrics:  metrics,
		interval: interval,
		sample:   sampleHost,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func sampleHost(ctx context.Context) (float64, float64, error) {
	cpuPercent, err := cpu.PercentWithContext(ctx, time.Second, false)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to get CPU usage: %w", err)
	}
	if len(cpuPercent) == 0 {
		return 0, 0, errors.New("failed to get CPU usage: no samples")
	}

	memInfo, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to get memory usage: %w", err)
	}

	return cpuPercent[0], memInfo.UsedPercent, nil
}

// Start takes a first sample and then samples every interval until ctx is
// done or Stop is called
func (c *HostCollector) Start(ctx context.Context) {
	c.logger.Info("Starting host collector", zap.Duration("interval", c.interval))
	go c.collectLoop(ctx)
}

// Stop stops the loop started by Start and waits for it to exit
func (c *HostCollector) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
	<-c.done
}

func (c *HostCollector) collectLoop(ctx context.Context) {
	defer close(c.done)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.Collect(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stop:
			return
		case <-ticker.C:
			c.Collect(ctx)
		}
	}
}

// Collect takes one sample now and updates the gauges
func (c *HostCollector) Collect(ctx context.Context) {
	cpuPercent, memPercent, err := c.sample(ctx)
	if err != nil {
		c.logger.Warn("Failed to sample host", zap.Error(err))
		return
	}

	stats := model.HostStats{
		CPUUsage:    cpuPercent,
		MemoryUsage: memPercent,
		Goroutines:  runtime.NumGoroutine(),
		CollectedAt: time.Now(),
	}

	c.mu.Lock()
	c.latest = stats
	c.mu.Unlock()

	c.metrics.HostCPU.Set(cpuPercent)
	c.metrics.HostMemory.Set(memPercent)

	c.logger.Debug("Host sampled",
		zap.Float64("cpu_usage", cpuPercent),
		zap.Float64("memory_usage", memPercent))
}

// Latest returns the most recent sample
func (c *HostCollector) Latest() model.HostStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.latest
}
