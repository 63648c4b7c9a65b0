package api

// =============================================================================
// Request Types
// =============================================================================

// EmployeeInput is the request body for creating or replacing an employee.
// The service decodes bodies loosely; this type documents the expected shape.
type EmployeeInput struct {
	Name       string `json:"name"`
	Age        int    `json:"age"`
	Position   string `json:"position"`
	Department string `json:"department"`
}

// =============================================================================
// Response Types
// =============================================================================

// HealthResponse is the health check response.
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadyResponse is the readiness check response.
type ReadyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
