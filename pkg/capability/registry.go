// pkg/capability/registry.go
package capability

import (
	"encoding/json"
	"os"
	"sync"
)

func LoadRegistry(path string) (*ChannelRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg ChannelRegistry
	err = json.Unmarshal(data, &reg)
	return &reg, err
}

// DefaultRegistry describes the channels compiled into this binary. Used
// when no registry file is configured.
func DefaultRegistry() *ChannelRegistry {
	return &ChannelRegistry{
		Version: "1.0.0",
		Channels: []Capability{
			{Channel: "EMAIL", DisplayName: "Email", Transport: "ses", Timeout: "10s", Retries: 3, Tags: []string{"external"}},
			{Channel: "SMS", DisplayName: "SMS", Transport: "sns", Timeout: "5s", Retries: 2, Tags: []string{"external"}},
			{Channel: "PUSH", DisplayName: "Push", Transport: "webhook", SupportsReadReceipt: true, Timeout: "5s", Retries: 3, Tags: []string{"external"}},
			{Channel: "IN_APP", DisplayName: "In-App", Transport: "redis", SupportsReadReceipt: true, SupportsRealtime: true, Timeout: "2s", Retries: 1, Tags: []string{"internal"}},
		},
	}
}

// HealthFunc reports whether one dependency is currently reachable.
type HealthFunc func() error

// HealthReporter aggregates per-dependency probes into a single snapshot
// for the health endpoint.
type HealthReporter struct {
	mu     sync.RWMutex
	probes map[string]HealthFunc
}

func NewHealthReporter() *HealthReporter {
	return &HealthReporter{probes: make(map[string]HealthFunc)}
}

func (h *HealthReporter) Register(name string, probe HealthFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.probes[name] = probe
}

// Snapshot runs every probe and returns per-dependency status plus an
// overall healthy flag.
func (h *HealthReporter) Snapshot() (map[string]string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make(map[string]string, len(h.probes))
	healthy := true
	for name, probe := range h.probes {
		if err := probe(); err != nil {
			out[name] = err.Error()
			healthy = false
			continue
		}
		out[name] = "ok"
	}
	return out, healthy
}
