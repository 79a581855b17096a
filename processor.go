// Copyright (C) 2025 MyCastle Ltd. All rights reserved.
//
// adminrpc is licensed under the Apache License Version 2.0.

package adminrpc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	ictx "github.com/mycastle/adminrpc/internal/context"
	errs "github.com/mycastle/adminrpc/internal/errors"
)

// Client-visible error messages for protocol-level rejections. Internal
// failure detail never appears here; it goes to the diagnostic log only.
const (
	msgInternalError = "internal server error"
	msgTimeout       = "request timed out"
)

// methodHandler executes one catalog method for an already authenticated
// actor. Protocol-level rejections never reach a handler.
type methodHandler func(ctx context.Context, req *JSONRPCRequest, actor *Actor) (interface{}, error)

// requestProcessor validates, authenticates, authorizes and dispatches one
// request envelope at a time. The method table is closed: it is populated once
// at construction with every supported method and never mutated, so an
// unknown method name cannot slip past the lookup.
type requestProcessor struct {
	registry *methodRegistry
	resolver ActorResolver
	audit    AuditSink
	metrics  *serverMetrics
	logger   Logger
	timeout  time.Duration

	handlers map[string]methodHandler
	// open methods dispatch without an actor: ping, the perpetually empty
	// prompt listing and the permanently unimplemented methods.
	open map[string]bool
}

func newRequestProcessor(registry *methodRegistry, resolver ActorResolver, audit AuditSink,
	metrics *serverMetrics, logger Logger, timeout time.Duration) *requestProcessor {
	if logger == nil {
		logger = GetDefaultLogger()
	}
	p := &requestProcessor{
		registry: registry,
		resolver: resolver,
		audit:    audit,
		metrics:  metrics,
		logger:   logger,
		timeout:  timeout,
	}
	p.handlers = map[string]methodHandler{
		MethodPing:               p.handlePing,
		MethodToolsList:          p.handleToolsList,
		MethodToolsCall:          p.handleToolsCall,
		MethodResourcesList:      p.handleResourcesList,
		MethodResourcesRead:      p.handleResourcesRead,
		MethodResourcesSubscribe: p.handleNotImplemented,
		MethodPromptsList:        p.handlePromptsList,
		MethodCompletionComplete: p.handleNotImplemented,
	}
	p.open = map[string]bool{
		MethodPing:               true,
		MethodPromptsList:        true,
		MethodResourcesSubscribe: true,
		MethodCompletionComplete: true,
	}
	return p
}

// Supported method names.
const (
	MethodPing               = "ping"
	MethodToolsList          = "tools/list"
	MethodToolsCall          = "tools/call"
	MethodResourcesList      = "resources/list"
	MethodResourcesRead      = "resources/read"
	MethodResourcesSubscribe = "resources/subscribe"
	MethodPromptsList        = "prompts/list"
	MethodCompletionComplete = "completion/complete"
)

// correlationIDKey carries the request correlation identifier through the
// context to the audit path.
type correlationIDKey struct{}

func withCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey{}, id)
}

// CorrelationIDFromContext returns the correlation identifier assigned to the
// in-flight request, or an empty string outside request processing.
func CorrelationIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(correlationIDKey{}).(string)
	return id
}

// HandleRequest processes one envelope end to end and always returns exactly
// one response mirroring the request identifier, null included.
func (p *requestProcessor) HandleRequest(ctx context.Context, req *JSONRPCRequest, authorization string) *JSONRPCResponse {
	correlationID := ""
	if req.Meta != nil {
		correlationID = req.Meta.CorrelationID
	}
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	ctx = withCorrelationID(ctx, correlationID)

	if req.JSONRPC != JSONRPCVersion {
		return newJSONRPCErrorResponse(req.ID, ErrCodeInvalidRequest,
			fmt.Sprintf("invalid jsonrpc version: expected %q", JSONRPCVersion), nil)
	}

	handler, ok := p.handlers[req.Method]
	if !ok {
		return newJSONRPCErrorResponse(req.ID, ErrCodeMethodNotFound,
			fmt.Sprintf("method not found: %s", req.Method), nil)
	}

	ctx, span := p.metrics.startSpan(ctx, req.Method)
	defer span.End()
	p.metrics.recordRequest(ctx, req.Method)
	p.metrics.recordInFlight(ctx, req.Method, 1)
	defer p.metrics.recordInFlight(ctx, req.Method, -1)
	start := time.Now()
	defer func() {
		p.metrics.recordLatency(ctx, req.Method, float64(time.Since(start).Milliseconds()))
	}()

	var actor *Actor
	if !p.open[req.Method] {
		if p.resolver == nil {
			return p.errorResponse(ctx, req, &AuthError{Message: authMsgNotConfigured})
		}
		var err error
		actor, err = p.resolver.Resolve(ctx, authorization)
		if err != nil {
			p.logger.Debugf("authentication failed for %s (correlation %s): %v", req.Method, correlationID, err)
			return p.errorResponse(ctx, req, err)
		}
	}

	result, err := p.dispatch(ctx, handler, req, actor)
	if err != nil {
		return p.errorResponse(ctx, req, err)
	}
	return newJSONRPCResponse(req.ID, result)
}

// dispatch races the handler against the request time budget. On expiry the
// response path returns immediately with a timeout error; the handler keeps
// running on its (now cancelled) context and its late result is discarded.
func (p *requestProcessor) dispatch(ctx context.Context, handler methodHandler, req *JSONRPCRequest, actor *Actor) (interface{}, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	type outcome struct {
		result interface{}
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				p.logger.Errorf("handler panic in %s: %v", req.Method, r)
				done <- outcome{err: fmt.Errorf("handler panic: %v", r)}
			}
		}()
		result, err := handler(ctx, req, actor)
		done <- outcome{result: result, err: err}
	}()

	select {
	case o := <-done:
		return o.result, o.err
	case <-ctx.Done():
		return nil, errs.ErrTimeout
	}
}

// errorResponse maps a failure onto the closed error taxonomy. Anything that
// is not a recognized protocol or validation failure is reported generically
// and logged in full.
func (p *requestProcessor) errorResponse(ctx context.Context, req *JSONRPCRequest, err error) *JSONRPCResponse {
	code, message := classifyError(err)
	if code == ErrCodeInternal {
		p.logger.Errorf("internal failure in %s (correlation %s): %v",
			req.Method, CorrelationIDFromContext(ctx), err)
	}
	p.metrics.recordError(ctx, req.Method, code)
	return newJSONRPCErrorResponse(req.ID, code, message, nil)
}

func classifyError(err error) (int, string) {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return ErrCodeUnauthenticated, authErr.Message
	}
	var scopeErr *ScopeError
	if errors.As(err, &scopeErr) {
		return ErrCodeUnauthorized, scopeErr.Error()
	}

	switch {
	case errors.Is(err, errs.ErrTimeout):
		return ErrCodeTimeout, msgTimeout
	case errors.Is(err, errs.ErrNotImplemented):
		return ErrCodeMethodNotFound, err.Error()
	case errors.Is(err, errs.ErrToolNotFound),
		errors.Is(err, errs.ErrResourceNotFound),
		errors.Is(err, errs.ErrInvalidParams),
		errors.Is(err, errs.ErrMissingParams),
		errors.Is(err, errs.ErrValidation):
		return ErrCodeInvalidParams, err.Error()
	default:
		return ErrCodeInternal, msgInternalError
	}
}

func (p *requestProcessor) handlePing(_ context.Context, _ *JSONRPCRequest, _ *Actor) (interface{}, error) {
	return map[string]interface{}{
		"pong":      true,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	}, nil
}

// listToolsResult is the result payload of tools/list.
type listToolsResult struct {
	Tools []Tool `json:"tools"`
}

func (p *requestProcessor) handleToolsList(_ context.Context, _ *JSONRPCRequest, _ *Actor) (interface{}, error) {
	return &listToolsResult{Tools: p.registry.listTools()}, nil
}

// callToolParams is the parameter shape of tools/call.
type callToolParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments,omitempty"`
}

func (p *requestProcessor) handleToolsCall(ctx context.Context, req *JSONRPCRequest, actor *Actor) (interface{}, error) {
	var params callToolParams
	if err := parseJSONRPCParams(req.Params, &params); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrInvalidParams, err)
	}
	if params.Name == "" {
		return nil, fmt.Errorf("%w: name", errs.ErrMissingParams)
	}

	// An unknown tool name is a parameter-level failure, not an unknown
	// method: the top-level method tools/call itself was found.
	tool, ok := p.registry.resolveTool(params.Name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", errs.ErrToolNotFound, params.Name)
	}

	if err := RequireAllScopes(actor, tool.Scopes...); err != nil {
		return nil, err
	}

	if tool.Mutating {
		p.emitAudit(ctx, actor, tool, params.Arguments)
	}

	return tool.Handler(ctx, params.Arguments, actor)
}

// listResourcesResult is the result payload of resources/list.
type listResourcesResult struct {
	Resources []Resource `json:"resources"`
}

func (p *requestProcessor) handleResourcesList(_ context.Context, _ *JSONRPCRequest, _ *Actor) (interface{}, error) {
	return &listResourcesResult{Resources: p.registry.listResources()}, nil
}

// readResourceParams is the parameter shape of resources/read.
type readResourceParams struct {
	URI string `json:"uri"`
}

// readResourceResult is the result payload of resources/read.
type readResourceResult struct {
	URI      string      `json:"uri"`
	MimeType string      `json:"mimeType,omitempty"`
	Contents interface{} `json:"contents"`
}

func (p *requestProcessor) handleResourcesRead(ctx context.Context, req *JSONRPCRequest, actor *Actor) (interface{}, error) {
	var params readResourceParams
	if err := parseJSONRPCParams(req.Params, &params); err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrInvalidParams, err)
	}
	if params.URI == "" {
		return nil, fmt.Errorf("%w: uri", errs.ErrMissingParams)
	}

	resource, ok := p.registry.resolveResource(params.URI)
	if !ok {
		return nil, fmt.Errorf("%w: %s", errs.ErrResourceNotFound, params.URI)
	}

	if err := RequireAllScopes(actor, resource.Scopes...); err != nil {
		return nil, err
	}

	contents, err := resource.Handler(ctx, actor)
	if err != nil {
		return nil, err
	}
	return &readResourceResult{
		URI:      resource.Resource.URI,
		MimeType: resource.Resource.MimeType,
		Contents: contents,
	}, nil
}

// listPromptsResult is the result payload of prompts/list. The catalog
// carries no prompts; the method exists as an inert protocol surface.
type listPromptsResult struct {
	Prompts []interface{} `json:"prompts"`
}

func (p *requestProcessor) handlePromptsList(_ context.Context, _ *JSONRPCRequest, _ *Actor) (interface{}, error) {
	return &listPromptsResult{Prompts: []interface{}{}}, nil
}

func (p *requestProcessor) handleNotImplemented(_ context.Context, req *JSONRPCRequest, _ *Actor) (interface{}, error) {
	return nil, fmt.Errorf("%s: %w", req.Method, errs.ErrNotImplemented)
}

// emitAudit records an authorized mutating call. Delivery is fire and forget
// on a detached context: a slow or failing sink never delays or fails the
// response.
func (p *requestProcessor) emitAudit(ctx context.Context, actor *Actor, tool *registeredTool, args map[string]interface{}) {
	if p.audit == nil {
		return
	}

	record := AuditRecord{
		TenantID:      actor.TenantID(),
		ActorID:       actor.ID(),
		Action:        tool.Tool.Name,
		ResourceType:  tool.ResourceType,
		Changes:       args,
		CorrelationID: CorrelationIDFromContext(ctx),
		Timestamp:     time.Now().UTC(),
	}
	if id, ok := args["id"].(string); ok {
		record.ResourceID = id
	}

	detached := ictx.WithoutCancel(ctx)
	go func() {
		if err := p.audit.Emit(detached, record); err != nil {
			p.logger.Errorf("audit emit failed for %s: %v", record.Action, err)
		}
	}()
}
