package api

import (
	"github.com/artpar/roster/internal/core/domain"
	"github.com/artpar/roster/internal/shell/api/openapi"
)

// NewDocs builds the OpenAPI document for the API mounted under basePath.
func NewDocs(basePath string) *openapi.Generator {
	if basePath == "" {
		basePath = "/"
	}

	g := openapi.NewGenerator(
		openapi.WithTitle("Roster API"),
		openapi.WithVersion("1.0.0"),
		openapi.WithDescription("Employee records API. Every call is recorded in the activity log and the API tracking trail."),
		openapi.WithServer(basePath),
	)

	g.RegisterResource(openapi.ResourceInfo{
		Name:  "employees",
		Model: domain.Employee{},
		Input: EmployeeInput{},
		Rules: map[string]openapi.FieldRule{
			"name":       {MinLength: 1, MaxLength: domain.NameMaxLength},
			"age":        {Minimum: domain.MinAge, Maximum: domain.MaxAge},
			"position":   {MinLength: 1, MaxLength: domain.PositionMaxLength},
			"department": {MinLength: 1, MaxLength: domain.DepartmentMaxLength},
		},
		SupportsFind:   true,
		SupportsCreate: true,
		SupportsUpdate: true,
		SupportsDelete: true,
	})

	return g
}
