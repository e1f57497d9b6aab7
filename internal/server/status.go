package server

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/edgebound/gateway/internal/registry"
)

// heapPressureThreshold is the fraction of the configured heap budget
// above which /live reports unhealthy.
const heapPressureThreshold = 0.9

// serviceHealthView is one service's health as reported by status endpoints.
type serviceHealthView struct {
	Service        string    `json:"service"`
	Status         string    `json:"status"`
	LastChecked    time.Time `json:"lastChecked,omitempty"`
	ResponseTimeMs int64     `json:"responseTimeMs,omitempty"`
	LastError      string    `json:"lastError,omitempty"`
}

// healthView converts a registry record to its response form.
func healthView(record registry.HealthRecord) serviceHealthView {
	view := serviceHealthView{
		Service:     record.Service,
		Status:      string(record.Status),
		LastChecked: record.LastChecked,
		LastError:   record.LastError,
	}
	if record.HasResponseTime {
		view.ResponseTimeMs = record.ResponseTime.Milliseconds()
	}
	return view
}

// handleHealth reports process liveness. It always returns 200 while
// the process can respond.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"uptime":    time.Since(s.startTime).Round(time.Second).String(),
		"timestamp": time.Now(),
	})
}

// handleReady probes every backend and reports ready when at least one
// is healthy.
func (s *Server) handleReady(c *gin.Context) {
	records := s.registry.CheckAllServicesHealth(c.Request.Context())

	healthy := 0
	views := make([]serviceHealthView, 0, len(records))
	for _, record := range records {
		if record.Status == registry.StatusHealthy {
			healthy++
		}
		views = append(views, healthView(record))
	}

	status := http.StatusOK
	state := "ready"
	if healthy == 0 {
		status = http.StatusServiceUnavailable
		state = "not_ready"
	}

	c.JSON(status, gin.H{
		"status":   state,
		"services": views,
	})
}

// handleLive reports liveness under memory pressure: 503 once heap
// utilization exceeds 90% of the configured heap budget.
func (s *Server) handleLive(c *gin.Context) {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)

	limit := float64(s.heapLimitBytes) * heapPressureThreshold
	if float64(stats.HeapAlloc) > limit {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":        "memory_pressure",
			"heapBytes":     stats.HeapAlloc,
			"heapLimit":     s.heapLimitBytes,
			"heapThreshold": uint64(limit),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"heapBytes": stats.HeapAlloc,
		"heapLimit": s.heapLimitBytes,
	})
}

// handleStatus reports the full gateway status: per-service health,
// average response time across healthy services, and uptime.
func (s *Server) handleStatus(c *gin.Context) {
	records := s.registry.GetAllHealthStatuses()

	views := make([]serviceHealthView, 0, len(records))
	var totalMs int64
	healthy := 0
	for _, record := range records {
		views = append(views, healthView(record))
		if record.Status == registry.StatusHealthy && record.HasResponseTime {
			totalMs += record.ResponseTime.Milliseconds()
			healthy++
		}
	}

	var avgMs int64
	if healthy > 0 {
		avgMs = totalMs / int64(healthy)
	}

	c.JSON(http.StatusOK, gin.H{
		"uptime":                time.Since(s.startTime).Round(time.Second).String(),
		"services":              views,
		"healthyServices":       healthy,
		"averageResponseTimeMs": avgMs,
	})
}

// handleServices lists the registered services with their current URL
// and last known health.
func (s *Server) handleServices(c *gin.Context) {
	names := s.registry.ServiceNames()

	services := make([]gin.H, 0, len(names))
	for _, name := range names {
		svc, err := s.registry.GetService(name)
		if err != nil {
			continue
		}
		record, _ := s.registry.GetHealthStatus(name)
		services = append(services, gin.H{
			"name":   name,
			"url":    svc.BaseURL,
			"health": healthView(record),
		})
	}

	c.JSON(http.StatusOK, gin.H{"services": services})
}
