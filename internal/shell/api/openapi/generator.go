// Package openapi provides reflective OpenAPI 3.0 document generation.
package openapi

import (
	"encoding/json"
	"net/http"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"
)

// =============================================================================
// Generator
// =============================================================================

// Generator produces OpenAPI 3.0 documents by reflecting on registered resources.
type Generator struct {
	title       string
	version     string
	description string
	servers     []string
	resources   []ResourceInfo
	mu          sync.RWMutex
	cachedSpec  *openapi3.T
}

// ResourceInfo holds information about a registered resource for OpenAPI generation.
type ResourceInfo struct {
	Name  string // Collection name (e.g., "employees")
	Model any    // The response model, including its id
	Input any    // The request body model for create and update

	// Rules adds constraints to input properties, keyed by JSON name.
	// Every property with a rule is required.
	Rules map[string]FieldRule

	SupportsFind   bool // GET /{name} and GET /{name}/{id}
	SupportsCreate bool // POST /{name}
	SupportsUpdate bool // PUT /{name}/{id}
	SupportsDelete bool // DELETE /{name}/{id}
}

// FieldRule describes the accepted range of an input property.
type FieldRule struct {
	MinLength uint64
	MaxLength uint64
	Minimum   float64
	Maximum   float64
}

// Option configures the generator.
type Option func(*Generator)

// WithTitle sets the API title.
func WithTitle(title string) Option {
	return func(g *Generator) {
		g.title = title
	}
}

// WithVersion sets the API version.
func WithVersion(version string) Option {
	return func(g *Generator) {
		g.version = version
	}
}

// WithDescription sets the API description.
func WithDescription(description string) Option {
	return func(g *Generator) {
		g.description = description
	}
}

// WithServer adds a server URL. Resource paths are relative to it.
func WithServer(url string) Option {
	return func(g *Generator) {
		g.servers = append(g.servers, url)
	}
}

// NewGenerator creates a new OpenAPI generator.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{
		title:       "Roster API",
		version:     "1.0.0",
		description: "Employee records API",
		resources:   make([]ResourceInfo, 0),
	}

	for _, opt := range opts {
		opt(g)
	}

	if len(g.servers) == 0 {
		g.servers = []string{"/api"}
	}

	return g
}

// RegisterResource adds a resource to the generator for document generation.
func (g *Generator) RegisterResource(info ResourceInfo) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resources = append(g.resources, info)
	g.cachedSpec = nil // Invalidate cache
}

// Generate produces the complete OpenAPI 3.0 document.
func (g *Generator) Generate() *openapi3.T {
	g.mu.RLock()
	if g.cachedSpec != nil {
		spec := g.cachedSpec
		g.mu.RUnlock()
		return spec
	}
	g.mu.RUnlock()

	g.mu.Lock()
	defer g.mu.Unlock()

	// Double-check after acquiring write lock
	if g.cachedSpec != nil {
		return g.cachedSpec
	}

	spec := &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:       g.title,
			Version:     g.version,
			Description: g.description,
		},
		Servers: make(openapi3.Servers, 0, len(g.servers)),
		Paths:   &openapi3.Paths{},
		Components: &openapi3.Components{
			Schemas: make(openapi3.Schemas),
		},
	}

	for _, url := range g.servers {
		spec.Servers = append(spec.Servers, &openapi3.Server{URL: url})
	}

	g.addCommonSchemas(spec)

	for _, res := range g.resources {
		g.addResourceToSpec(spec, res)
	}

	g.cachedSpec = spec
	return spec
}

// JSON renders the document as JSON.
func (g *Generator) JSON() ([]byte, error) {
	return json.Marshal(g.Generate())
}

// YAML renders the document as YAML. The document goes through
// its JSON form so that kin-openapi's field names and omissions are kept.
func (g *Generator) YAML() ([]byte, error) {
	data, err := g.JSON()
	if err != nil {
		return nil, err
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	return yaml.Marshal(doc)
}

// Handler returns an HTTP handler that serves the document as JSON.
func (g *Generator) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := g.JSON()
		if err != nil {
			http.Error(w, "Failed to encode OpenAPI spec", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	}
}

// YAMLHandler returns an HTTP handler that serves the document as YAML.
func (g *Generator) YAMLHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := g.YAML()
		if err != nil {
			http.Error(w, "Failed to encode OpenAPI spec", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/yaml")
		w.Write(data)
	}
}

// =============================================================================
// Schema Generation
// =============================================================================

// addCommonSchemas adds the error body schemas shared by every resource.
func (g *Generator) addCommonSchemas(spec *openapi3.T) {
	stringSchema := func() *openapi3.SchemaRef {
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}}
	}

	spec.Components.Schemas["Error"] = &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"error": stringSchema(),
			},
			Required: []string{"error"},
		},
	}

	spec.Components.Schemas["ValidationErrors"] = &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"errors": &openapi3.SchemaRef{
					Value: &openapi3.Schema{
						Type:  &openapi3.Types{"array"},
						Items: stringSchema(),
					},
				},
			},
			Required: []string{"errors"},
		},
	}

	spec.Components.Schemas["Message"] = &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type: &openapi3.Types{"object"},
			Properties: openapi3.Schemas{
				"message": stringSchema(),
			},
			Required: []string{"message"},
		},
	}
}

// addResourceToSpec adds paths and schemas for a resource.
func (g *Generator) addResourceToSpec(spec *openapi3.T, res ResourceInfo) {
	basePath := "/" + res.Name
	schemaName := capitalize(singularize(res.Name))

	spec.Components.Schemas[schemaName] = g.extractSchema(res.Model)

	inputName := schemaName + "Input"
	if res.Input != nil {
		input := g.extractSchema(res.Input)
		applyRules(input.Value, res.Rules)
		spec.Components.Schemas[inputName] = input
	}

	collectionPath := &openapi3.PathItem{}
	if res.SupportsFind {
		collectionPath.Get = g.createListOperation(spec, res, schemaName)
	}
	if res.SupportsCreate {
		collectionPath.Post = g.createCreateOperation(spec, res, schemaName, inputName)
	}
	spec.Paths.Set(basePath, collectionPath)

	itemPath := &openapi3.PathItem{
		Parameters: openapi3.Parameters{
			&openapi3.ParameterRef{
				Value: &openapi3.Parameter{
					Name:        "id",
					In:          "path",
					Required:    true,
					Description: "Positive integer identifier",
					Schema: &openapi3.SchemaRef{
						Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int64"},
					},
				},
			},
		},
	}
	if res.SupportsFind {
		itemPath.Get = g.createGetOperation(spec, res, schemaName)
	}
	if res.SupportsUpdate {
		itemPath.Put = g.createUpdateOperation(spec, res, schemaName, inputName)
	}
	if res.SupportsDelete {
		itemPath.Delete = g.createDeleteOperation(spec, res, schemaName)
	}
	spec.Paths.Set(basePath+"/{id}", itemPath)
}

// applyRules marks ruled properties required and attaches their bounds.
func applyRules(schema *openapi3.Schema, rules map[string]FieldRule) {
	for name, rule := range rules {
		prop, ok := schema.Properties[name]
		if !ok || prop.Value == nil {
			continue
		}
		v := prop.Value
		if v.Type.Is("string") {
			v.MinLength = rule.MinLength
			if rule.MaxLength > 0 {
				max := rule.MaxLength
				v.MaxLength = &max
			}
		} else {
			min, max := rule.Minimum, rule.Maximum
			v.Min = &min
			v.Max = &max
		}
		schema.Required = append(schema.Required, name)
	}
	slices.Sort(schema.Required)
}

// extractSchema extracts an OpenAPI schema from a Go struct.
func (g *Generator) extractSchema(model any) *openapi3.SchemaRef {
	t := reflect.TypeOf(model)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	schema := &openapi3.Schema{
		Type:       &openapi3.Types{"object"},
		Properties: make(openapi3.Schemas),
	}

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)

		if !field.IsExported() {
			continue
		}

		jsonTag := field.Tag.Get("json")
		if jsonTag == "-" {
			continue
		}

		name := field.Name
		if jsonTag != "" {
			parts := strings.Split(jsonTag, ",")
			if parts[0] != "" {
				name = parts[0]
			}
		}

		if propSchema := g.goTypeToSchema(field.Type); propSchema != nil {
			schema.Properties[name] = propSchema
		}
	}

	return &openapi3.SchemaRef{Value: schema}
}

// goTypeToSchema converts a Go type to an OpenAPI schema.
func (g *Generator) goTypeToSchema(t reflect.Type) *openapi3.SchemaRef {
	switch t.Kind() {
	case reflect.String:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"string"}}}

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int32"}}

	case reflect.Int64:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}, Format: "int64"}}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"integer"}}}

	case reflect.Float32, reflect.Float64:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"number"}}}

	case reflect.Bool:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"boolean"}}}

	case reflect.Slice, reflect.Array:
		return &openapi3.SchemaRef{
			Value: &openapi3.Schema{
				Type:  &openapi3.Types{"array"},
				Items: g.goTypeToSchema(t.Elem()),
			},
		}

	case reflect.Ptr:
		schema := g.goTypeToSchema(t.Elem())
		if schema != nil && schema.Value != nil {
			schema.Value.Nullable = true
		}
		return schema

	case reflect.Struct:
		if t == reflect.TypeOf(time.Time{}) {
			return &openapi3.SchemaRef{
				Value: &openapi3.Schema{Type: &openapi3.Types{"string"}, Format: "date-time"},
			}
		}
		return g.extractSchema(reflect.New(t).Interface())

	default:
		return &openapi3.SchemaRef{Value: &openapi3.Schema{Type: &openapi3.Types{"object"}}}
	}
}

// =============================================================================
// Operation Generation
// =============================================================================

func (g *Generator) createListOperation(spec *openapi3.T, res ResourceInfo, schemaName string) *openapi3.Operation {
	list := &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			Type:  &openapi3.Types{"array"},
			Items: componentRef(spec, schemaName),
		},
	}

	return &openapi3.Operation{
		OperationID: "list" + capitalize(res.Name),
		Summary:     "List " + res.Name,
		Tags:        []string{capitalize(res.Name)},
		Responses: responses(
			jsonResponse(http.StatusOK, "All "+res.Name, list),
			jsonResponse(http.StatusInternalServerError, "Server error", componentRef(spec, "Error")),
		),
	}
}

func (g *Generator) createGetOperation(spec *openapi3.T, res ResourceInfo, schemaName string) *openapi3.Operation {
	return &openapi3.Operation{
		OperationID: "get" + schemaName,
		Summary:     "Get a " + singularize(res.Name),
		Tags:        []string{capitalize(res.Name)},
		Responses: responses(
			jsonResponse(http.StatusOK, "The "+singularize(res.Name), componentRef(spec, schemaName)),
			jsonResponse(http.StatusBadRequest, "Invalid id", componentRef(spec, "Error")),
			jsonResponse(http.StatusNotFound, "Not found", componentRef(spec, "Error")),
			jsonResponse(http.StatusInternalServerError, "Server error", componentRef(spec, "Error")),
		),
	}
}

func (g *Generator) createCreateOperation(spec *openapi3.T, res ResourceInfo, schemaName, inputName string) *openapi3.Operation {
	return &openapi3.Operation{
		OperationID: "create" + schemaName,
		Summary:     "Create a " + singularize(res.Name),
		Tags:        []string{capitalize(res.Name)},
		RequestBody: requestBody(componentRef(spec, inputName)),
		Responses: responses(
			jsonResponse(http.StatusOK, "The created "+singularize(res.Name), componentRef(spec, schemaName)),
			jsonResponse(http.StatusBadRequest, "Validation failed", componentRef(spec, "ValidationErrors")),
			jsonResponse(http.StatusInternalServerError, "Server error", componentRef(spec, "Error")),
		),
	}
}

func (g *Generator) createUpdateOperation(spec *openapi3.T, res ResourceInfo, schemaName, inputName string) *openapi3.Operation {
	badRequest := &openapi3.SchemaRef{
		Value: &openapi3.Schema{
			OneOf: openapi3.SchemaRefs{
				componentRef(spec, "Error"),
				componentRef(spec, "ValidationErrors"),
			},
		},
	}

	return &openapi3.Operation{
		OperationID: "update" + schemaName,
		Summary:     "Replace a " + singularize(res.Name),
		Tags:        []string{capitalize(res.Name)},
		RequestBody: requestBody(componentRef(spec, inputName)),
		Responses: responses(
			jsonResponse(http.StatusOK, "The updated "+singularize(res.Name), componentRef(spec, schemaName)),
			jsonResponse(http.StatusBadRequest, "Invalid id or validation failed", badRequest),
			jsonResponse(http.StatusNotFound, "Not found", componentRef(spec, "Error")),
			jsonResponse(http.StatusInternalServerError, "Server error", componentRef(spec, "Error")),
		),
	}
}

func (g *Generator) createDeleteOperation(spec *openapi3.T, res ResourceInfo, schemaName string) *openapi3.Operation {
	return &openapi3.Operation{
		OperationID: "delete" + schemaName,
		Summary:     "Delete a " + singularize(res.Name),
		Tags:        []string{capitalize(res.Name)},
		Responses: responses(
			jsonResponse(http.StatusOK, "Deleted", componentRef(spec, "Message")),
			jsonResponse(http.StatusBadRequest, "Invalid id", componentRef(spec, "Error")),
			jsonResponse(http.StatusNotFound, "Not found", componentRef(spec, "Error")),
			jsonResponse(http.StatusInternalServerError, "Server error", componentRef(spec, "Error")),
		),
	}
}

// =============================================================================
// Helpers
// =============================================================================

type statusResponse struct {
	status int
	ref    *openapi3.ResponseRef
}

// componentRef points at a component schema. The value is carried along so
// the document validates without a loader pass.
func componentRef(spec *openapi3.T, name string) *openapi3.SchemaRef {
	ref := &openapi3.SchemaRef{Ref: "#/components/schemas/" + name}
	if existing, ok := spec.Components.Schemas[name]; ok {
		ref.Value = existing.Value
	}
	return ref
}

func jsonResponse(status int, description string, schema *openapi3.SchemaRef) statusResponse {
	return statusResponse{
		status: status,
		ref: &openapi3.ResponseRef{
			Value: openapi3.NewResponse().
				WithDescription(description).
				WithJSONSchemaRef(schema),
		},
	}
}

func responses(entries ...statusResponse) *openapi3.Responses {
	r := &openapi3.Responses{}
	for _, e := range entries {
		r.Set(strconv.Itoa(e.status), e.ref)
	}
	return r
}

func requestBody(schema *openapi3.SchemaRef) *openapi3.RequestBodyRef {
	return &openapi3.RequestBodyRef{
		Value: openapi3.NewRequestBody().
			WithRequired(true).
			WithJSONSchemaRef(schema),
	}
}

// capitalize returns the string with the first letter capitalized.
func capitalize(s string) string {
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// singularize performs basic singularization (removes trailing 's').
func singularize(s string) string {
	if strings.HasSuffix(s, "ies") {
		return s[:len(s)-3] + "y"
	}
	if strings.HasSuffix(s, "s") {
		return s[:len(s)-1]
	}
	return s
}
