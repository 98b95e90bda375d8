package rest

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const checkTimeout = 2 * time.Second

type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"
	HealthUnhealthy HealthStatus = "unhealthy"
)

// CheckFunc probes one dependency. A nil error means reachable.
type CheckFunc func(ctx context.Context) error

type ComponentHealth struct {
	Status     HealthStatus `json:"status"`
	Message    string       `json:"message,omitempty"`
	CheckedAt  time.Time    `json:"checked_at"`
	DurationMs int64        `json:"duration_ms"`
}

type HealthResponse struct {
	Status     HealthStatus               `json:"status"`
	CheckedAt  time.Time                  `json:"checked_at"`
	Components map[string]ComponentHealth `json:"components"`
}

// HealthHandler reports readiness over the service's hard
// dependencies, the payment store and the processor's token endpoint.
type HealthHandler struct {
	checks map[string]CheckFunc
}

func NewHealthHandler(checks map[string]CheckFunc) *HealthHandler {
	return &HealthHandler{checks: checks}
}

// DatabaseCheck pings the shared connection pool.
func DatabaseCheck(db *sql.DB) CheckFunc {
	return func(ctx context.Context) error {
		return db.PingContext(ctx)
	}
}

// ProcessorCheck verifies the processor's token endpoint answers at
// all. Any HTTP response counts as reachable, we hold no credentials
// here; only transport failures are reported.
func ProcessorCheck(tokenURL string) CheckFunc {
	client := &http.Client{Timeout: checkTimeout}
	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, tokenURL, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("token endpoint unreachable: %w", err)
		}
		resp.Body.Close()
		return nil
	}
}

func (h *HealthHandler) livenessHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "OK"})
}

// readinessHandler runs every registered check and answers 503 when
// any dependency is down.
func (h *HealthHandler) readinessHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()

	resp := HealthResponse{
		Status:     HealthHealthy,
		CheckedAt:  time.Now(),
		Components: make(map[string]ComponentHealth, len(h.checks)),
	}

	for name, check := range h.checks {
		start := time.Now()
		err := check(ctx)

		component := ComponentHealth{
			Status:     HealthHealthy,
			CheckedAt:  time.Now(),
			DurationMs: time.Since(start).Milliseconds(),
		}
		if err != nil {
			component.Status = HealthUnhealthy
			component.Message = err.Error()
			resp.Status = HealthUnhealthy
		}
		resp.Components[name] = component
	}

	statusCode := http.StatusOK
	if resp.Status == HealthUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(resp)
}
