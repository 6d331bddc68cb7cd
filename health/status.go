package health

import (
	"regexp"
	"strings"
	"time"
)

// Status levels.
const (
	StateHealthy   = "healthy"
	StateDegraded  = "degraded"
	StateUnhealthy = "unhealthy"
)

var (
	httpURLRegex     = regexp.MustCompile(`https?://[^\s]+`)
	natsURLRegex     = regexp.MustCompile(`nats://[^\s]+`)
	unixPathRegex    = regexp.MustCompile(`/[a-zA-Z0-9/_.-]+`)
	windowsPathRegex = regexp.MustCompile(`[A-Z]:\\[^:\s]+`)
	ipAddrRegex      = regexp.MustCompile(`\b\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3}\b`)
	portRegex        = regexp.MustCompile(`:\d{2,5}\b`)
	credentialRegex  = regexp.MustCompile(`(?i)(password|token|key|secret|credential)[^a-zA-Z]*[:=][^,\s}]+`)
)

// Status represents the health of a component or of the whole system.
type Status struct {
	Component   string    `json:"component"`
	Healthy     bool      `json:"healthy"`
	Status      string    `json:"status"`
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
	SubStatuses []Status  `json:"sub_statuses,omitempty"`
}

// IsHealthy returns true if the status is healthy
func (s Status) IsHealthy() bool { return s.Status == StateHealthy }

// IsDegraded returns true if the status is degraded
func (s Status) IsDegraded() bool { return s.Status == StateDegraded }

// IsUnhealthy returns true if the status is unhealthy
func (s Status) IsUnhealthy() bool { return s.Status == StateUnhealthy }

func newStatus(component, state, message string) Status {
	return Status{
		Component: component,
		Healthy:   state == StateHealthy,
		Status:    state,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// NewHealthy creates a healthy status.
func NewHealthy(component, message string) Status {
	return newStatus(component, StateHealthy, message)
}

// NewDegraded creates a degraded status.
func NewDegraded(component, message string) Status {
	return newStatus(component, StateDegraded, message)
}

// NewUnhealthy creates an unhealthy status.
func NewUnhealthy(component, message string) Status {
	return newStatus(component, StateUnhealthy, message)
}

// FromError returns an unhealthy status carrying a sanitized err, or a
// healthy one when err is nil.
func FromError(component string, err error) Status {
	if err == nil {
		return NewHealthy(component, "ok")
	}
	return NewUnhealthy(component, sanitizeErrorMessage(err.Error()))
}

// Aggregate folds sub-statuses into one status for component.
func Aggregate(component string, subStatuses []Status) Status {
	if len(subStatuses) == 0 {
		return NewHealthy(component, "no sub-components")
	}

	state := StateHealthy
	for _, sub := range subStatuses {
		if sub.IsUnhealthy() {
			state = StateUnhealthy
			break
		}
		if sub.IsDegraded() {
			state = StateDegraded
		}
	}

	var status Status
	switch state {
	case StateUnhealthy:
		status = NewUnhealthy(component, "one or more sub-components are unhealthy")
	case StateDegraded:
		status = NewDegraded(component, "one or more sub-components are degraded")
	default:
		status = NewHealthy(component, "all sub-components are healthy")
	}

	status.SubStatuses = make([]Status, len(subStatuses))
	copy(status.SubStatuses, subStatuses)
	return status
}

// sanitizeErrorMessage masks URLs, paths, IP addresses, ports and
// credentials. URLs go first because they contain paths.
func sanitizeErrorMessage(msg string) string {
	if msg == "" {
		return ""
	}

	s := httpURLRegex.ReplaceAllString(msg, "[URL]")
	s = natsURLRegex.ReplaceAllString(s, "[URL]")
	s = unixPathRegex.ReplaceAllString(s, "[PATH]")
	s = windowsPathRegex.ReplaceAllString(s, "[PATH]")
	s = ipAddrRegex.ReplaceAllString(s, "[IP]")
	s = portRegex.ReplaceAllString(s, "[PORT]")

	lower := strings.ToLower(s)
	for _, word := range []string{"password", "token", "key", "secret", "credential"} {
		if strings.Contains(lower, word) {
			s = credentialRegex.ReplaceAllString(s, "[REDACTED]")
			break
		}
	}
	return s
}
