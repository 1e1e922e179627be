package health

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	log "github.com/sirupsen/logrus"
)

const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
	StatusDisabled  = "disabled"

	checkTimeout = 2 * time.Second
)

// Pinger is the database handle the checker probes. *pgxpool.Pool satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CacheProbe reports on the optional redis cache.
type CacheProbe interface {
	Enabled() bool
	IsHealthy(ctx context.Context) bool
}

type poolStatter interface {
	Stat() *pgxpool.Stat
}

type HealthChecker struct {
	db         Pinger
	cache      CacheProbe
	uploadRoot string
	startedAt  time.Time
}

type HealthStatus struct {
	Status   string         `json:"status"`
	Database DatabaseHealth `json:"database"`
}

type DatabaseHealth struct {
	Status       string `json:"status"`
	ResponseTime int64  `json:"response_time_ms"`
}

type PoolHealth struct {
	TotalConns    int32 `json:"total_conns"`
	IdleConns     int32 `json:"idle_conns"`
	AcquiredConns int32 `json:"acquired_conns"`
	MaxConns      int32 `json:"max_conns"`
}

type UsageHealth struct {
	Total       uint64  `json:"total_bytes"`
	Used        uint64  `json:"used_bytes"`
	UsedPercent float64 `json:"used_percent"`
}

// DetailedStatus is the monitoring view: dependencies plus host resources.
type DetailedStatus struct {
	Status        string         `json:"status"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Database      DatabaseHealth `json:"database"`
	Pool          *PoolHealth    `json:"pool,omitempty"`
	Cache         string         `json:"cache"`
	Memory        *UsageHealth   `json:"memory,omitempty"`
	Disk          *UsageHealth   `json:"disk,omitempty"`
}

// NewHealthChecker builds a checker. cache may be nil; uploadRoot is the
// directory whose filesystem usage is reported, empty skips the disk probe.
func NewHealthChecker(db Pinger, cache CacheProbe, uploadRoot string) *HealthChecker {
	return &HealthChecker{db: db, cache: cache, uploadRoot: uploadRoot, startedAt: time.Now()}
}

func (h *HealthChecker) CheckBasic(ctx context.Context) HealthStatus {
	dbHealth := h.checkDatabase(ctx)

	status := StatusHealthy
	if dbHealth.Status != StatusHealthy {
		status = StatusUnhealthy
	}

	return HealthStatus{
		Status:   status,
		Database: dbHealth,
	}
}

// CheckDetailed never fails outright: a probe that errors is left out.
func (h *HealthChecker) CheckDetailed(ctx context.Context) DetailedStatus {
	basic := h.CheckBasic(ctx)
	out := DetailedStatus{
		Status:        basic.Status,
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
		Database:      basic.Database,
		Cache:         h.checkCache(ctx),
	}

	if ps, ok := h.db.(poolStatter); ok {
		st := ps.Stat()
		out.Pool = &PoolHealth{
			TotalConns:    st.TotalConns(),
			IdleConns:     st.IdleConns(),
			AcquiredConns: st.AcquiredConns(),
			MaxConns:      st.MaxConns(),
		}
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		out.Memory = &UsageHealth{Total: vm.Total, Used: vm.Used, UsedPercent: vm.UsedPercent}
	} else {
		log.WithError(err).Debug("[Health] memory probe failed")
	}

	if h.uploadRoot != "" {
		if du, err := disk.UsageWithContext(ctx, h.uploadRoot); err == nil {
			out.Disk = &UsageHealth{Total: du.Total, Used: du.Used, UsedPercent: du.UsedPercent}
		} else {
			log.WithError(err).Debug("[Health] disk probe failed")
		}
	}

	if out.Status == StatusHealthy && out.Cache == StatusUnhealthy {
		out.Status = StatusDegraded
	}
	return out
}

func (h *HealthChecker) checkDatabase(ctx context.Context) DatabaseHealth {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	start := time.Now()
	err := h.db.Ping(ctx)
	responseTime := time.Since(start).Milliseconds()

	if err != nil {
		log.WithError(err).Warn("[Health] database ping failed")
		return DatabaseHealth{
			Status:       StatusUnhealthy,
			ResponseTime: responseTime,
		}
	}

	return DatabaseHealth{
		Status:       StatusHealthy,
		ResponseTime: responseTime,
	}
}

func (h *HealthChecker) checkCache(ctx context.Context) string {
	if h.cache == nil || !h.cache.Enabled() {
		return StatusDisabled
	}
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	if !h.cache.IsHealthy(ctx) {
		return StatusUnhealthy
	}
	return StatusHealthy
}
