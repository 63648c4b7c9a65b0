package monitoring

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

// =============================================================================
// AggregateReadiness Tests
// =============================================================================

func TestAggregateReadiness_AllOK(t *testing.T) {
	checks := []Check{
		{Name: "database", Status: CheckOK},
		{Name: "activity_log", Status: CheckOK},
	}

	assert.Equal(t, ReadinessReady, AggregateReadiness(checks))
}

func TestAggregateReadiness_OneFailed(t *testing.T) {
	checks := []Check{
		{Name: "database", Status: CheckFailed},
		{Name: "activity_log", Status: CheckOK},
	}

	assert.Equal(t, ReadinessNotReady, AggregateReadiness(checks))
}

func TestAggregateReadiness_FailedWinsOverDegraded(t *testing.T) {
	checks := []Check{
		{Name: "activity_log", Status: CheckDegraded},
		{Name: "request_tracker", Status: CheckFailed},
	}

	assert.Equal(t, ReadinessNotReady, AggregateReadiness(checks))
}

func TestAggregateReadiness_Degraded(t *testing.T) {
	checks := []Check{
		{Name: "database", Status: CheckOK},
		{Name: "activity_log", Status: CheckDegraded},
	}

	assert.Equal(t, ReadinessDegraded, AggregateReadiness(checks))
}

func TestAggregateReadiness_UnknownCountsAsDegraded(t *testing.T) {
	checks := []Check{
		{Name: "database", Status: CheckOK},
		{Name: "cache", Status: "starting"},
	}

	assert.Equal(t, ReadinessDegraded, AggregateReadiness(checks))
}

func TestAggregateReadiness_Empty(t *testing.T) {
	assert.Equal(t, ReadinessNotReady, AggregateReadiness(nil))
}

// =============================================================================
// Component Status Tests
// =============================================================================

func TestStoreStatus(t *testing.T) {
	assert.Equal(t, CheckOK, StoreStatus(nil))
	assert.Equal(t, CheckFailed, StoreStatus(errors.New("database is closed")))
}

func TestTrailStatus(t *testing.T) {
	tests := []struct {
		name    string
		running bool
		dropped uint64
		failed  uint64
		want    CheckStatus
	}{
		{"running clean", true, 0, 0, CheckOK},
		{"stopped", false, 0, 0, CheckFailed},
		{"stopped with drops", false, 3, 0, CheckFailed},
		{"dropped entries", true, 1, 0, CheckDegraded},
		{"failed writes", true, 0, 2, CheckDegraded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TrailStatus(tt.running, tt.dropped, tt.failed))
		})
	}
}

func TestSummarize(t *testing.T) {
	checks := []Check{
		{Name: "database", Status: CheckOK},
		{Name: "request_tracker", Status: CheckFailed},
	}

	assert.Equal(t, map[string]string{
		"database":        "ok",
		"request_tracker": "failed",
	}, Summarize(checks))
}
