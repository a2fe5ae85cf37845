package api

import (
	"context"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/tphakala/trailcam-go/internal/logger"
)

// Health status values.
const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status        string            `json:"status"`
	Version       string            `json:"version"`
	BuildDate     string            `json:"build_date"`
	Uptime        string            `json:"uptime"`
	UptimeSeconds float64           `json:"uptime_seconds"`
	Timestamp     string            `json:"timestamp"`
	Checks        map[string]string `json:"checks"`
	System        *SystemStats      `json:"system,omitempty"`
}

// SystemStats reports memory usage of the host and this process.
type SystemStats struct {
	MemoryTotal       uint64  `json:"memory_total"`
	MemoryUsed        uint64  `json:"memory_used"`
	MemoryUsedPercent float64 `json:"memory_used_percent"`
	ProcessRSS        uint64  `json:"process_rss,omitempty"`
}

// HealthCheck handles GET /health. It answers 503 when any check fails.
func (c *Controller) HealthCheck(ctx echo.Context) error {
	reqCtx, cancel := context.WithTimeout(ctx.Request().Context(), c.healthTimeout)
	defer cancel()

	checks := c.runHealthChecks(reqCtx)
	status := StatusHealthy
	code := http.StatusOK
	for _, result := range checks {
		if result != "ok" {
			status = StatusDegraded
			code = http.StatusServiceUnavailable
			break
		}
	}

	uptime := time.Since(c.startTime)
	return ctx.JSON(code, HealthResponse{
		Status:        status,
		Version:       c.build.GetVersion(),
		BuildDate:     c.build.GetBuildDate(),
		Uptime:        uptime.Round(time.Second).String(),
		UptimeSeconds: uptime.Seconds(),
		Timestamp:     time.Now().Format(time.RFC3339),
		Checks:        checks,
		System:        c.systemStats(reqCtx),
	})
}

// runHealthChecks runs all checks concurrently.
func (c *Controller) runHealthChecks(ctx context.Context) map[string]string {
	results := make(map[string]string, len(c.healthChecks))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, hc := range c.healthChecks {
		wg.Go(func() {
			result := "ok"
			if err := hc.Check(ctx); err != nil {
				result = err.Error()
				c.log.Warn("health check failed",
					logger.String("check", hc.Name),
					logger.Error(err))
			}
			mu.Lock()
			results[hc.Name] = result
			mu.Unlock()
		})
	}
	wg.Wait()
	return results
}

func (c *Controller) systemStats(ctx context.Context) *SystemStats {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		c.log.Debug("failed to read memory stats", logger.Error(err))
		return nil
	}
	stats := &SystemStats{
		MemoryTotal:       vm.Total,
		MemoryUsed:        vm.Used,
		MemoryUsedPercent: vm.UsedPercent,
	}
	if p, err := process.NewProcessWithContext(ctx, int32(os.Getpid())); err == nil { //nolint:gosec // pid fits int32
		if info, err := p.MemoryInfoWithContext(ctx); err == nil {
			stats.ProcessRSS = info.RSS
		}
	}
	return stats
}
