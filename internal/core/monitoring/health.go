// Package monitoring provides pure functions for service readiness.
// This package contains NO I/O: callers probe components and pass the results in.
package monitoring

// CheckStatus is the outcome of probing one component.
type CheckStatus string

const (
	CheckOK       CheckStatus = "ok"
	CheckDegraded CheckStatus = "degraded"
	CheckFailed   CheckStatus = "failed"
)

// Check is the probed status of a named component.
type Check struct {
	Name   string
	Status CheckStatus
}

// Readiness is the overall state reported by the readiness endpoint.
type Readiness string

const (
	ReadinessReady    Readiness = "ready"
	ReadinessDegraded Readiness = "degraded"
	ReadinessNotReady Readiness = "not_ready"
)

// =============================================================================
// Readiness Aggregation (Pure Functions)
// =============================================================================

// AggregateReadiness determines overall readiness from component checks.
// Every component is required, so a single failure makes the service not ready.
func AggregateReadiness(checks []Check) Readiness {
	if len(checks) == 0 {
		return ReadinessNotReady
	}

	degraded := 0

	for _, c := range checks {
		switch c.Status {
		case CheckOK:
		case CheckFailed:
			return ReadinessNotReady
		default:
			// Degraded and unrecognized statuses
			degraded++
		}
	}

	if degraded > 0 {
		return ReadinessDegraded
	}
	return ReadinessReady
}

// StoreStatus maps a store ping result to a check status.
func StoreStatus(pingErr error) CheckStatus {
	if pingErr != nil {
		return CheckFailed
	}
	return CheckOK
}

// TrailStatus determines the status of an audit trail from its lifecycle
// state and counters. A stopped trail loses every entry, so it has failed.
// A running trail that has dropped or given up on entries is degraded.
func TrailStatus(running bool, dropped, failed uint64) CheckStatus {
	if !running {
		return CheckFailed
	}
	if dropped > 0 || failed > 0 {
		return CheckDegraded
	}
	return CheckOK
}

// Summarize flattens checks into the name to status map served to clients.
func Summarize(checks []Check) map[string]string {
	out := make(map[string]string, len(checks))
	for _, c := range checks {
		out[c.Name] = string(c.Status)
	}
	return out
}
