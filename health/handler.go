package health

import (
	"encoding/json"
	"net/http"
)

// Handler serves the monitor's aggregate as JSON. Unhealthy systems answer
// 503.
func Handler(m *Monitor, system string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		status := m.Check(system)

		w.Header().Set("Content-Type", "application/json")
		if status.IsUnhealthy() {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(status)
	})
}
