package health

import (
	"encoding/json"
	"net/http"
	"sync"
)

// Status represents the health state of a component.
type Status string

const (
	StatusUp       Status = "up"
	StatusDown     Status = "down"
	StatusDegraded Status = "degraded"
)

type component struct {
	status Status
	detail string
}

// Checker tracks the health of registered components. The daemon registers
// "source" and "destination". An unreachable source is degraded rather than
// down: the daemon keeps polling it.
type Checker struct {
	mu         sync.RWMutex
	components map[string]component
}

// NewChecker creates a Checker with no registered components.
func NewChecker() *Checker {
	return &Checker{
		components: make(map[string]component),
	}
}

// Register adds a component with an initial status of down.
func (c *Checker) Register(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.components[name] = component{status: StatusDown}
}

// SetStatus updates the health status of a named component and clears its
// detail.
func (c *Checker) SetStatus(name string, status Status) {
	c.SetStatusDetail(name, status, "")
}

// SetStatusDetail updates the status of a named component along with a short
// human-readable reason, typically the last error.
func (c *Checker) SetStatusDetail(name string, status Status, detail string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.components[name] = component{status: status, detail: detail}
}

// Status returns the current status of a component and whether it is
// registered.
func (c *Checker) Status(name string) (Status, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	comp, ok := c.components[name]
	return comp.status, ok
}

type response struct {
	Status     Status            `json:"status"`
	Components map[string]Status `json:"components"`
	Details    map[string]string `json:"details,omitempty"`
}

// ServeHTTP responds with the aggregated health status.
// Returns 200 when all components are up or degraded, 503 when any is down.
func (c *Checker) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	c.mu.RLock()
	overall := StatusUp
	comps := make(map[string]Status, len(c.components))
	var details map[string]string
	for name, comp := range c.components {
		comps[name] = comp.status
		if comp.detail != "" {
			if details == nil {
				details = make(map[string]string)
			}
			details[name] = comp.detail
		}
		switch comp.status {
		case StatusDown:
			overall = StatusDown
		case StatusDegraded:
			if overall == StatusUp {
				overall = StatusDegraded
			}
		}
	}
	c.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	if overall == StatusDown {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(response{
		Status:     overall,
		Components: comps,
		Details:    details,
	})
}

// ReadinessChecker tracks whether the daemon is polling. It is not ready
// while starting up or recovering the destination connection.
type ReadinessChecker struct {
	mu    sync.RWMutex
	ready bool
	state string
}

// NewReadinessChecker creates a ReadinessChecker in not-ready state.
func NewReadinessChecker() *ReadinessChecker {
	return &ReadinessChecker{}
}

// SetState records the daemon state name reported alongside readiness and
// marks the checker ready when ready is true.
func (r *ReadinessChecker) SetState(state string, ready bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = state
	r.ready = ready
}

// Ready reports the current readiness.
func (r *ReadinessChecker) Ready() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ready
}

type readyResponse struct {
	Ready bool   `json:"ready"`
	State string `json:"state,omitempty"`
}

// ServeHTTP responds with readiness status.
// Returns 200 when ready, 503 when not ready.
func (r *ReadinessChecker) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	r.mu.RLock()
	resp := readyResponse{Ready: r.ready, State: r.state}
	r.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	if !resp.Ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(resp)
}
