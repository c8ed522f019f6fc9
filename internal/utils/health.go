package utils

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type HealthStatus struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Services  []Service `json:"services"`
}

type Service struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Probe is an extra dependency check. A failing probe degrades the status.
type Probe struct {
	Name  string
	Check func(ctx context.Context) error
}

type HealthChecker struct {
	DB     *gorm.DB
	Redis  *redis.Client
	Probes []Probe
}

func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	probes := make([]Probe, 0, len(h.Probes)+2)
	if h.DB != nil {
		probes = append(probes, Probe{Name: "PostgreSQL", Check: func(ctx context.Context) error {
			sqlDB, err := h.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}})
	}
	if h.Redis != nil {
		probes = append(probes, Probe{Name: "Redis", Check: func(ctx context.Context) error {
			return h.Redis.Ping(ctx).Err()
		}})
	}
	probes = append(probes, h.Probes...)

	services := make([]Service, 0, len(probes))
	overallStatus := "healthy"
	for _, p := range probes {
		service := Service{Name: p.Name, Status: "up"}
		pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := p.Check(pctx); err != nil {
			service.Status = "down"
			service.Message = err.Error()
			overallStatus = "degraded"
		}
		cancel()
		services = append(services, service)
	}

	return HealthStatus{
		Status:    overallStatus,
		Timestamp: time.Now().UTC(),
		Services:  services,
	}
}
