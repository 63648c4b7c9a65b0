// Package domain defines core domain types for Roster.
// This is part of the Functional Core - all functions are pure with no I/O.
package domain

// =============================================================================
// Employee
// =============================================================================

// Field limits for employee records.
const (
	NameMaxLength       = 255
	PositionMaxLength   = 100
	DepartmentMaxLength = 100
	MinAge              = 18
	MaxAge              = 65
)

// Employee is a single employee record. ID is assigned by the store on
// creation and never changes afterwards.
type Employee struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Age        int    `json:"age"`
	Position   string `json:"position"`
	Department string `json:"department"`
}

// WithID returns a copy of the employee carrying the given ID.
func (e Employee) WithID(id int64) Employee {
	e.ID = id
	return e
}

// Confirmation is the body returned by operations that have no entity to
// return, such as deletion.
type Confirmation struct {
	Message string `json:"message"`
}
