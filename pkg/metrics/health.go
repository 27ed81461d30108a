package metrics

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Health verdicts reported in HealthStatus.Status
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
	StatusReady     = "ready"
	StatusNotReady  = "not_ready"
)

// ReadyComponents must all be registered and healthy for the daemon to
// report ready.
var ReadyComponents = []string{"store", "supervisor", "control"}

// ComponentState is the last reported state of one daemon component
type ComponentState struct {
	Healthy bool      `json:"healthy"`
	Message string    `json:"message,omitempty"`
	Since   time.Time `json:"since"`
}

// HealthStatus is the body of the health and readiness endpoints
type HealthStatus struct {
	Status     string                    `json:"status"`
	Timestamp  time.Time                 `json:"timestamp"`
	Components map[string]ComponentState `json:"components,omitempty"`
	Message    string                    `json:"message,omitempty"`
	Version    string                    `json:"version,omitempty"`
	Uptime     string                    `json:"uptime,omitempty"`
}

type componentRegistry struct {
	mu         sync.RWMutex
	components map[string]ComponentState
	started    time.Time
	version    string
}

var registry = newRegistry()

func newRegistry() *componentRegistry {
	return &componentRegistry{
		components: make(map[string]ComponentState),
		started:    time.Now(),
	}
}

// SetVersion sets the version string for health responses
func SetVersion(version string) {
	registry.mu.Lock()
	registry.version = version
	registry.mu.Unlock()
}

// RegisterComponent records the state of a component. Since only moves
// when the verdict changes.
func RegisterComponent(name string, healthy bool, message string) {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	state, ok := registry.components[name]
	if !ok || state.Healthy != healthy {
		state.Since = time.Now()
	}
	state.Healthy = healthy
	state.Message = message
	registry.components[name] = state
}

// UpdateComponent is RegisterComponent for components already known
func UpdateComponent(name string, healthy bool, message string) {
	RegisterComponent(name, healthy, message)
}

// GetHealth reports unhealthy as soon as any registered component is
func GetHealth() HealthStatus {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	status := registry.status(StatusHealthy)
	for name, state := range registry.components {
		status.Components[name] = state
		if !state.Healthy {
			status.Status = StatusUnhealthy
			status.Message = name + ": " + state.Message
		}
	}
	return status
}

// GetReadiness reports ready once every component in ReadyComponents
// is registered and healthy.
func GetReadiness() HealthStatus {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	status := registry.status(StatusReady)
	for _, name := range ReadyComponents {
		state, ok := registry.components[name]
		if !ok {
			status.Status = StatusNotReady
			status.Message = "waiting for " + name
			continue
		}
		status.Components[name] = state
		if !state.Healthy && status.Status == StatusReady {
			status.Status = StatusNotReady
			status.Message = name + ": " + state.Message
		}
	}
	return status
}

// status must be called with mu held
func (r *componentRegistry) status(verdict string) HealthStatus {
	return HealthStatus{
		Status:     verdict,
		Timestamp:  time.Now(),
		Components: make(map[string]ComponentState, len(r.components)),
		Version:    r.version,
		Uptime:     time.Since(r.started).Round(time.Second).String(),
	}
}

// HealthHandler serves GetHealth, with 503 while unhealthy
func HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := GetHealth()
		writeStatus(w, health, health.Status == StatusHealthy)
	}
}

// ReadyHandler serves GetReadiness, with 503 until ready
func ReadyHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		readiness := GetReadiness()
		writeStatus(w, readiness, readiness.Status == StatusReady)
	}
}

// LivenessHandler answers 200 for as long as the process runs
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		registry.mu.RLock()
		uptime := time.Since(registry.started).Round(time.Second).String()
		registry.mu.RUnlock()

		writeStatus(w, map[string]string{"status": "alive", "uptime": uptime}, true)
	}
}

func writeStatus(w http.ResponseWriter, body any, ok bool) {
	w.Header().Set("Content-Type", "application/json")
	if ok {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(body)
}
