package app

import (
	"context"
	"fmt"
	"time"

	"sfclink/internal/shared/util"
)

type HealthStatus struct {
	Status     string            `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
	Components map[string]string `json:"components"`
}

type HealthService struct {
	app *App
}

func NewHealthService(app *App) *HealthService {
	return &HealthService{app: app}
}

func (s *HealthService) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:     "up",
		Timestamp:  time.Now().UTC(),
		Components: make(map[string]string),
	}

	// File store
	if store := s.app.sources(); store == nil || store.Len() == 0 {
		status.Status = "degraded"
		status.Components["store"] = "empty"
	} else {
		status.Components["store"] = fmt.Sprintf("ok (%d files)", store.Len())
	}

	// Last build
	last, err := s.app.LastResult()
	switch {
	case err != nil:
		status.Status = "degraded"
		status.Components["last_build"] = fmt.Sprintf("error: %v", err)
	case last == nil:
		status.Components["last_build"] = "pending"
	case last.Failed():
		status.Status = "degraded"
		status.Components["last_build"] = fmt.Sprintf("failed (%d modules, %d failures)", last.Modules, len(last.Failures))
	default:
		status.Components["last_build"] = fmt.Sprintf("ok (%d modules in %s)", last.Modules, last.Duration.Round(time.Millisecond))
	}

	// History
	cfg, _, _ := s.app.config()
	switch {
	case s.app.history != nil:
		status.Components["history"] = fmt.Sprintf("ok (%d queued)", s.app.historyQueue.Len())
	case cfg.DB.IsEnabled():
		status.Status = "degraded"
		status.Components["history"] = "missing but enabled in config"
	default:
		status.Components["history"] = "disabled"
	}

	proc := util.ReadProcess()
	status.Components["heap_mb"] = fmt.Sprintf("%d", proc.HeapMB)
	status.Components["goroutines"] = fmt.Sprintf("%d", proc.Goroutines)
	return status
}
