// Package employees implements the employee operations and the audit
// bookkeeping that accompanies every call.
//
// Each operation validates its input, talks to the store and, on every exit
// path, emits exactly one activity entry and one tracking entry before
// returning to the caller.
package employees

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/artpar/roster/internal/core/domain"
	"github.com/artpar/roster/internal/core/validation"
	"github.com/artpar/roster/internal/shell/store"
)

// Activity actions.
const (
	ActionList   = "LIST_EMPLOYEES"
	ActionGet    = "GET_EMPLOYEE"
	ActionCreate = "CREATE_EMPLOYEE"
	ActionUpdate = "UPDATE_EMPLOYEE"
	ActionDelete = "DELETE_EMPLOYEE"
)

// ActivityLogger accepts human-readable activity entries.
type ActivityLogger interface {
	Record(entry domain.ActivityEntry)
}

// RequestTracker accepts one tracking entry per API call.
type RequestTracker interface {
	Record(entry domain.TrackingEntry)
}

// Request describes the inbound call being served.
type Request struct {
	Method    string
	Path      string
	RequestID string

	// Body is the raw request body. BodyErr is set when it could not be read.
	Body    []byte
	BodyErr error
}

// Endpoint returns the tracking label for the call, e.g. "GET - /api/employees".
func (r Request) Endpoint() string {
	return domain.EndpointLabel(r.Method, r.Path)
}

// Service implements the employee operations.
type Service struct {
	store    store.Store
	activity ActivityLogger
	tracker  RequestTracker
	logger   *slog.Logger
}

// NewService creates a new employee service.
func NewService(s store.Store, activity ActivityLogger, tracker RequestTracker, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		store:    s,
		activity: activity,
		tracker:  tracker,
		logger:   logger.With("component", "employees"),
	}
}

// =============================================================================
// Operations
// =============================================================================

// List returns every employee.
func (s *Service) List(ctx context.Context, req Request) (employees []domain.Employee, err error) {
	defer func() {
		p := recover()
		if p != nil {
			err = s.recoverFailure(req, "ListEmployees", p)
		}

		desc := fmt.Sprintf("Fetched %d employees", len(employees))
		if err != nil {
			desc = describeFailure("Failed to fetch employees", err)
		}
		s.record(req, ActionList, desc, employees, err)
		if p != nil {
			panic(p)
		}
	}()

	employees, err = s.store.ListEmployees(ctx)
	if err != nil {
		return nil, s.storeFailure(req, "ListEmployees", err)
	}
	if employees == nil {
		employees = []domain.Employee{}
	}

	return employees, nil
}

// Get returns the employee with the given id.
func (s *Service) Get(ctx context.Context, req Request, rawID string) (employee *domain.Employee, err error) {
	defer func() {
		p := recover()
		if p != nil {
			err = s.recoverFailure(req, "GetEmployee", p)
		}

		desc := fmt.Sprintf("Fetched employee %s", rawID)
		if err != nil {
			desc = describeFailure(fmt.Sprintf("Failed to fetch employee %q", rawID), err)
		}
		s.record(req, ActionGet, desc, employee, err)
		if p != nil {
			panic(p)
		}
	}()

	id, err := parseID(rawID)
	if err != nil {
		return nil, err
	}

	employee, err = s.store.GetEmployee(ctx, id)
	if err != nil {
		return nil, s.storeFailure(req, "GetEmployee", err)
	}

	return employee, nil
}

// Add validates the request body and creates a new employee.
func (s *Service) Add(ctx context.Context, req Request) (employee *domain.Employee, err error) {
	defer func() {
		p := recover()
		if p != nil {
			err = s.recoverFailure(req, "CreateEmployee", p)
		}

		var desc string
		if err != nil {
			desc = describeFailure("Failed to add employee", err)
		} else {
			desc = fmt.Sprintf("Added employee %d (%s)", employee.ID, employee.Name)
		}
		s.record(req, ActionCreate, desc, employee, err)
		if p != nil {
			panic(p)
		}
	}()

	data, err := decodeObject(req)
	if err != nil {
		return nil, err
	}
	if messages := validation.ValidateEmployeeData(data); len(messages) > 0 {
		return nil, &ValidationError{Messages: messages}
	}

	created := validation.EmployeeFromData(data)
	if err := s.store.CreateEmployee(ctx, &created); err != nil {
		return nil, s.storeFailure(req, "CreateEmployee", err)
	}

	return &created, nil
}

// Update validates the id and the request body and replaces every field of
// the employee.
func (s *Service) Update(ctx context.Context, req Request, rawID string) (employee *domain.Employee, err error) {
	defer func() {
		p := recover()
		if p != nil {
			err = s.recoverFailure(req, "UpdateEmployee", p)
		}

		desc := fmt.Sprintf("Updated employee %s", rawID)
		if err != nil {
			desc = describeFailure(fmt.Sprintf("Failed to update employee %q", rawID), err)
		}
		s.record(req, ActionUpdate, desc, employee, err)
		if p != nil {
			panic(p)
		}
	}()

	id, err := parseID(rawID)
	if err != nil {
		return nil, err
	}

	data, err := decodeObject(req)
	if err != nil {
		return nil, err
	}
	if messages := validation.ValidateEmployeeData(data); len(messages) > 0 {
		return nil, &ValidationError{Messages: messages}
	}

	updated := validation.EmployeeFromData(data).WithID(id)
	if err := s.store.UpdateEmployee(ctx, &updated); err != nil {
		return nil, s.storeFailure(req, "UpdateEmployee", err)
	}

	return &updated, nil
}

// Delete removes the employee with the given id.
func (s *Service) Delete(ctx context.Context, req Request, rawID string) (confirmation *domain.Confirmation, err error) {
	defer func() {
		p := recover()
		if p != nil {
			err = s.recoverFailure(req, "DeleteEmployee", p)
		}

		desc := fmt.Sprintf("Deleted employee %s", rawID)
		if err != nil {
			desc = describeFailure(fmt.Sprintf("Failed to delete employee %q", rawID), err)
		}
		s.record(req, ActionDelete, desc, confirmation, err)
		if p != nil {
			panic(p)
		}
	}()

	id, err := parseID(rawID)
	if err != nil {
		return nil, err
	}

	if err := s.store.DeleteEmployee(ctx, id); err != nil {
		return nil, s.storeFailure(req, "DeleteEmployee", err)
	}

	return &domain.Confirmation{Message: MsgDeleted}, nil
}

// =============================================================================
// Helpers
// =============================================================================

func parseID(raw string) (int64, error) {
	if msg := validation.ValidateID(raw); msg != "" {
		return 0, &InvalidIDError{Message: msg}
	}
	id, _ := validation.ParseID(raw)
	return id, nil
}

// storeFailure translates a store error. Not-found passes through as
// ErrNotFound; anything else is logged and wrapped in a StoreError.
func (s *Service) storeFailure(req Request, op string, err error) error {
	if store.IsNotFound(err) {
		return ErrNotFound
	}

	s.logger.Error("store operation failed",
		"op", op,
		"request_id", req.RequestID,
		"error", err,
	)
	return &StoreError{Op: op, Err: err}
}

// recoverFailure turns a panic raised during an operation into a StoreError
// so the call is still audited as a server error. The caller re-panics after
// recording.
func (s *Service) recoverFailure(req Request, op string, p any) error {
	s.logger.Error("panic during store operation",
		"op", op,
		"request_id", req.RequestID,
		"panic", p,
	)
	return &StoreError{Op: op, Err: fmt.Errorf("panic: %v", p)}
}

// decodeObject decodes the request body as a JSON object. An empty body is
// treated as an empty object so that every field is reported missing.
func decodeObject(req Request) (map[string]any, error) {
	if req.BodyErr != nil {
		return nil, &ValidationError{Messages: []string{MsgBodyUnreadable}}
	}
	if len(bytes.TrimSpace(req.Body)) == 0 {
		return map[string]any{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(req.Body))
	dec.UseNumber()

	var data map[string]any
	if err := dec.Decode(&data); err != nil || data == nil || dec.More() {
		return nil, &ValidationError{Messages: []string{MsgBodyNotObject}}
	}

	return data, nil
}

func describeFailure(prefix string, err error) string {
	var validationErr *ValidationError
	var idErr *InvalidIDError

	switch {
	case errors.As(err, &validationErr):
		return fmt.Sprintf("%s: %d validation errors", prefix, len(validationErr.Messages))
	case errors.As(err, &idErr):
		return prefix + ": invalid id"
	case errors.Is(err, ErrNotFound):
		return prefix + ": not found"
	default:
		return prefix + ": server error"
	}
}

// record emits the activity and tracking entries for one call.
func (s *Service) record(req Request, action, description string, v any, err error) {
	s.activity.Record(domain.NewActivityEntry(action, description))

	status, body := Reply(v, err)
	s.tracker.Record(domain.TrackingEntry{
		Endpoint:   req.Endpoint(),
		Request:    requestPayload(req.Body),
		Response:   s.marshalPayload(body),
		StatusCode: status,
		RequestID:  req.RequestID,
	})
}

// requestPayload serializes the inbound body for the tracking trail.
func requestPayload(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return ""
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err == nil {
		return buf.String()
	}

	quoted, _ := json.Marshal(string(body))
	return string(quoted)
}

func (s *Service) marshalPayload(body any) string {
	data, err := json.Marshal(body)
	if err != nil {
		s.logger.Warn("failed to serialize tracking payload", "error", err)
		return ""
	}
	return string(data)
}
