package validation

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/artpar/roster/internal/core/domain"
)

// =============================================================================
// Messages
// =============================================================================

const (
	MsgNameInvalid       = "Name is required and must be a string between 1 and 255 characters."
	MsgAgeInvalid        = "Age is required and must be a number between 18 and 65."
	MsgPositionInvalid   = "Position is required and must be a string between 1 and 100 characters."
	MsgDepartmentInvalid = "Department is required and must be a string between 1 and 100 characters."
	MsgIDInvalid         = "Invalid employee ID."
)

// =============================================================================
// Employee Validation Functions
// =============================================================================

// ValidateEmployeeData validates an employee payload decoded from JSON.
// It returns one message per invalid field, in the order name, age,
// position, department. An empty result means the payload is valid.
//
// Age is coerced the way a loosely typed client would expect: JSON numbers,
// numeric strings and booleans are accepted as numbers. A coerced value of
// zero is rejected along with anything that is not a whole number in range.
func ValidateEmployeeData(data map[string]any) []string {
	var msgs []string

	if !isStringInRange(data["name"], 1, domain.NameMaxLength) {
		msgs = append(msgs, MsgNameInvalid)
	}
	if _, ok := coerceAge(data["age"]); !ok {
		msgs = append(msgs, MsgAgeInvalid)
	}
	if !isStringInRange(data["position"], 1, domain.PositionMaxLength) {
		msgs = append(msgs, MsgPositionInvalid)
	}
	if !isStringInRange(data["department"], 1, domain.DepartmentMaxLength) {
		msgs = append(msgs, MsgDepartmentInvalid)
	}

	return msgs
}

// ValidateID validates an employee identifier taken from a URL path.
// Returns an empty string if the id is a positive base-10 integer.
func ValidateID(raw string) string {
	if _, ok := ParseID(raw); !ok {
		return MsgIDInvalid
	}
	return ""
}

// ParseID converts a path identifier to an integer. It reports false for
// empty, non-numeric, zero and negative values.
func ParseID(raw string) (int64, bool) {
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// EmployeeFromData builds an employee from a payload that already passed
// ValidateEmployeeData. The ID is left zero.
func EmployeeFromData(data map[string]any) domain.Employee {
	age, _ := coerceAge(data["age"])
	name, _ := data["name"].(string)
	position, _ := data["position"].(string)
	department, _ := data["department"].(string)

	return domain.Employee{
		Name:       name,
		Age:        age,
		Position:   position,
		Department: department,
	}
}

// =============================================================================
// Helpers
// =============================================================================

func isStringInRange(v any, min, max int) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	n := utf8.RuneCountInString(s)
	return n >= min && n <= max
}

// coerceAge converts v to an age and reports whether it is acceptable.
func coerceAge(v any) (int, bool) {
	n := toNumber(v)
	if math.IsNaN(n) || math.IsInf(n, 0) || n == 0 {
		return 0, false
	}
	if n != math.Trunc(n) {
		return 0, false
	}
	if n < domain.MinAge || n > domain.MaxAge {
		return 0, false
	}
	return int(n), true
}

// toNumber returns NaN for values that have no numeric reading.
func toNumber(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case float32:
		return float64(x)
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return math.NaN()
		}
		return f
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	case bool:
		if x {
			return 1
		}
		return 0
	case nil:
		return 0
	default:
		return math.NaN()
	}
}
