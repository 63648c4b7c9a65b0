// Package validation provides pure validation functions for API handlers.
//
// All functions are pure (no I/O, no side effects). Validation of employee
// payloads collects every violation instead of stopping at the first one, so
// a client can fix a request in a single round trip.
//
// # Functions
//
//   - ValidateEmployeeData: Validate the fields of an employee payload
//   - ValidateID: Validate a path identifier
//   - ParseID: Convert a validated path identifier to an integer
//   - EmployeeFromData: Build a domain.Employee from a validated payload
//
// # Usage
//
//	if msgs := validation.ValidateEmployeeData(data); len(msgs) > 0 {
//	    // Return 400 Bad Request with msgs
//	}
package validation
