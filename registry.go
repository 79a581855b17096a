// Copyright (C) 2025 MyCastle Ltd. All rights reserved.
//
// adminrpc is licensed under the Apache License Version 2.0.

package adminrpc

import (
	"context"

	"github.com/getkin/kin-openapi/openapi3"

	errs "github.com/mycastle/adminrpc/internal/errors"
)

// ResourceScheme is the fixed URI scheme prefix for catalog resources.
const ResourceScheme = "res://"

// ErrValidation marks a handler failure caused by bad arguments. Backend
// implementations wrap it with fmt.Errorf("%w: ...") so the dispatcher
// answers with a validation error instead of a generic internal one.
var ErrValidation = errs.ErrValidation

// Tool describes one callable tool. The input schema is introspection
// metadata for tools/list; deep argument validation belongs to the tool
// implementation itself.
type Tool struct {
	Name           string           `json:"name"`
	Description    string           `json:"description"`
	InputSchema    *openapi3.Schema `json:"inputSchema"`
	RequiredScopes []Scope          `json:"requiredScopes,omitempty"`
}

// Resource describes one readable resource.
type Resource struct {
	URI            string  `json:"uri"`
	Name           string  `json:"name"`
	Description    string  `json:"description,omitempty"`
	MimeType       string  `json:"mimeType,omitempty"`
	RequiredScopes []Scope `json:"requiredScopes,omitempty"`
}

// ToolHandler executes one tool call. Implementations may return an error
// wrapping ErrValidation for bad arguments; anything else is treated as an
// internal fault.
type ToolHandler func(ctx context.Context, args map[string]interface{}, actor *Actor) (interface{}, error)

// ResourceHandler produces the contents of one resource.
type ResourceHandler func(ctx context.Context, actor *Actor) (interface{}, error)

// ToolOption configures a Tool under construction.
type ToolOption func(*Tool)

// PropertyOption configures one schema property.
type PropertyOption func(*openapi3.Schema)

// NewTool creates a tool descriptor with an object input schema.
func NewTool(name string, options ...ToolOption) *Tool {
	tool := &Tool{
		Name: name,
		InputSchema: &openapi3.Schema{
			Type:       &openapi3.Types{openapi3.TypeObject},
			Properties: make(openapi3.Schemas),
		},
	}
	for _, option := range options {
		option(tool)
	}
	return tool
}

// WithDescription sets the tool description.
func WithDescription(description string) ToolOption {
	return func(t *Tool) {
		t.Description = description
	}
}

// WithString adds a string property to the tool's input schema.
func WithString(name string, options ...PropertyOption) ToolOption {
	return schemaProperty(name, openapi3.TypeString, options...)
}

// WithNumber adds a number property to the tool's input schema.
func WithNumber(name string, options ...PropertyOption) ToolOption {
	return schemaProperty(name, openapi3.TypeNumber, options...)
}

// WithBoolean adds a boolean property to the tool's input schema.
func WithBoolean(name string, options ...PropertyOption) ToolOption {
	return schemaProperty(name, openapi3.TypeBoolean, options...)
}

// WithArray adds an array property to the tool's input schema.
func WithArray(name string, options ...PropertyOption) ToolOption {
	return schemaProperty(name, openapi3.TypeArray, options...)
}

// WithObject adds an object property to the tool's input schema.
func WithObject(name string, options ...PropertyOption) ToolOption {
	return schemaProperty(name, openapi3.TypeObject, options...)
}

func schemaProperty(name, typeName string, options ...PropertyOption) ToolOption {
	return func(t *Tool) {
		schema := &openapi3.Schema{Type: &openapi3.Types{typeName}}
		for _, option := range options {
			option(schema)
		}
		t.InputSchema.Properties[name] = openapi3.NewSchemaRef("", schema)
	}
}

// Description sets a property description.
func Description(description string) PropertyOption {
	return func(s *openapi3.Schema) {
		s.Description = description
	}
}

// Enum restricts a property to the given values.
func Enum(values ...string) PropertyOption {
	return func(s *openapi3.Schema) {
		s.Enum = make([]interface{}, len(values))
		for i, v := range values {
			s.Enum[i] = v
		}
	}
}

// RequiredProperty marks input properties as required. It is a tool-level
// option because openapi3 keeps the required list on the parent object schema.
func RequiredProperty(names ...string) ToolOption {
	return func(t *Tool) {
		t.InputSchema.Required = append(t.InputSchema.Required, names...)
	}
}

// registeredTool pairs a tool descriptor with its handler and its
// authorization and audit metadata.
type registeredTool struct {
	Tool         *Tool
	Scopes       []Scope
	Mutating     bool
	ResourceType string
	Handler      ToolHandler
}

// registeredResource pairs a resource descriptor with its handler.
type registeredResource struct {
	Resource *Resource
	Scopes   []Scope
	Handler  ResourceHandler
}

// methodRegistry is the static catalog of callable tools and readable
// resources. It is built once at process start and never mutated afterwards,
// so concurrent reads need no synchronization. It performs no authorization;
// the request processor consults it before the scope checks run.
type methodRegistry struct {
	tools          map[string]*registeredTool
	toolsOrder     []string
	resources      map[string]*registeredResource
	resourcesOrder []string
}

func newEmptyRegistry() *methodRegistry {
	return &methodRegistry{
		tools:     make(map[string]*registeredTool),
		resources: make(map[string]*registeredResource),
	}
}

// registerTool adds a tool during catalog construction.
func (r *methodRegistry) registerTool(tool *Tool, scopes []Scope, mutating bool, resourceType string, handler ToolHandler) {
	if tool == nil || tool.Name == "" {
		return
	}
	tool.RequiredScopes = scopes
	if _, exists := r.tools[tool.Name]; !exists {
		r.toolsOrder = append(r.toolsOrder, tool.Name)
	}
	r.tools[tool.Name] = &registeredTool{
		Tool:         tool,
		Scopes:       scopes,
		Mutating:     mutating,
		ResourceType: resourceType,
		Handler:      handler,
	}
}

// registerResource adds a resource during catalog construction.
func (r *methodRegistry) registerResource(resource *Resource, scopes []Scope, handler ResourceHandler) {
	if resource == nil || resource.URI == "" {
		return
	}
	resource.RequiredScopes = scopes
	if _, exists := r.resources[resource.URI]; !exists {
		r.resourcesOrder = append(r.resourcesOrder, resource.URI)
	}
	r.resources[resource.URI] = &registeredResource{
		Resource: resource,
		Scopes:   scopes,
		Handler:  handler,
	}
}

// listTools returns all tool descriptors in registration order.
func (r *methodRegistry) listTools() []Tool {
	out := make([]Tool, 0, len(r.toolsOrder))
	for _, name := range r.toolsOrder {
		out = append(out, *r.tools[name].Tool)
	}
	return out
}

// listResources returns all resource descriptors in registration order.
func (r *methodRegistry) listResources() []Resource {
	out := make([]Resource, 0, len(r.resourcesOrder))
	for _, uri := range r.resourcesOrder {
		out = append(out, *r.resources[uri].Resource)
	}
	return out
}

// resolveTool looks up a tool by name.
func (r *methodRegistry) resolveTool(name string) (*registeredTool, bool) {
	tool, ok := r.tools[name]
	return tool, ok
}

// resolveResource looks up a resource by URI.
func (r *methodRegistry) resolveResource(uri string) (*registeredResource, bool) {
	resource, ok := r.resources[uri]
	return resource, ok
}
