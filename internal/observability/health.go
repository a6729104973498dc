package observability

import (
	"context"
	"sync"
	"time"
)

// ComponentStatus is the health status of a component.
type ComponentStatus string

const (
	StatusHealthy   ComponentStatus = "healthy"
	StatusDegraded  ComponentStatus = "degraded"
	StatusUnhealthy ComponentStatus = "unhealthy"
)

// HealthCheck probes one component.
type HealthCheck func(ctx context.Context) ComponentHealth

// ComponentHealth is the health report of a single component.
type ComponentHealth struct {
	Name        string          `json:"name"`
	Status      ComponentStatus `json:"status"`
	Message     string          `json:"message,omitempty"`
	LastChecked time.Time       `json:"last_checked"`
	Details     map[string]any  `json:"details,omitempty"`
}

// SystemHealth is the aggregate health of the whole service.
type SystemHealth struct {
	Status     ComponentStatus            `json:"status"`
	Components map[string]ComponentHealth `json:"components"`
	Timestamp  time.Time                  `json:"ts"`
	Uptime     time.Duration              `json:"uptime"`
}

// HealthMonitor runs registered checks on demand and caches the results.
type HealthMonitor struct {
	mu        sync.RWMutex
	checks    map[string]HealthCheck
	results   map[string]ComponentHealth
	startTime time.Time
}

// NewHealthMonitor creates an empty health monitor.
func NewHealthMonitor() *HealthMonitor {
	return &HealthMonitor{
		checks:    make(map[string]HealthCheck),
		results:   make(map[string]ComponentHealth),
		startTime: time.Now(),
	}
}

// Register adds a named health check.
func (m *HealthMonitor) Register(name string, check HealthCheck) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks[name] = check
}

// Check runs every registered check and returns the aggregate. The overall
// status is the worst individual status.
func (m *HealthMonitor) Check(ctx context.Context) SystemHealth {
	m.mu.RLock()
	names := make([]string, 0, len(m.checks))
	for name := range m.checks {
		names = append(names, name)
	}
	m.mu.RUnlock()

	overall := StatusHealthy
	components := make(map[string]ComponentHealth, len(names))
	for _, name := range names {
		m.mu.RLock()
		check := m.checks[name]
		m.mu.RUnlock()

		health := check(ctx)
		health.Name = name
		health.LastChecked = time.Now()
		components[name] = health

		switch health.Status {
		case StatusUnhealthy:
			overall = StatusUnhealthy
		case StatusDegraded:
			if overall == StatusHealthy {
				overall = StatusDegraded
			}
		}
	}

	m.mu.Lock()
	m.results = components
	m.mu.Unlock()

	return SystemHealth{
		Status:     overall,
		Components: components,
		Timestamp:  time.Now(),
		Uptime:     time.Since(m.startTime),
	}
}
