// Copyright (C) 2025 MyCastle Ltd. All rights reserved.
//
// adminrpc is licensed under the Apache License Version 2.0.

package adminrpc

import (
	"encoding/json"
)

// JSONRPCVersion is the fixed protocol version tag. Requests carrying any
// other value are rejected before authentication.
const JSONRPCVersion = "2.0"

// Error codes. The first five are the standard JSON-RPC 2.0 codes; the
// -3200x range carries the control-plane specific kinds. The set is closed:
// nothing else crosses the server boundary.
const (
	// ErrCodeParse indicates the request body was not valid JSON.
	ErrCodeParse = -32700
	// ErrCodeInvalidRequest indicates a malformed envelope (wrong or missing
	// protocol version tag).
	ErrCodeInvalidRequest = -32600
	// ErrCodeMethodNotFound indicates an unknown top-level method name.
	ErrCodeMethodNotFound = -32601
	// ErrCodeInvalidParams indicates invalid method parameters, including an
	// unknown tool or resource name inside tools/call and resources/read.
	ErrCodeInvalidParams = -32602
	// ErrCodeInternal indicates a handler fault; the outward message is generic.
	ErrCodeInternal = -32603
	// ErrCodeUnauthenticated indicates a missing or unverifiable credential.
	ErrCodeUnauthenticated = -32001
	// ErrCodeUnauthorized indicates an authenticated actor lacking a scope.
	ErrCodeUnauthorized = -32002
	// ErrCodeTimeout indicates the dispatched handler exceeded the request budget.
	ErrCodeTimeout = -32003
)

// RequestMeta is the optional metadata block of a request envelope. It rides
// outside the protocol-level identity: the correlation identifier is attached
// to audit and diagnostic records but never to the id check.
type RequestMeta struct {
	CorrelationID string `json:"correlationId,omitempty"`
}

// JSONRPCRequest is one inbound request envelope. ID may be a string, a
// number or null; null still receives a response.
type JSONRPCRequest struct {
	JSONRPC string       `json:"jsonrpc"`
	ID      interface{}  `json:"id"`
	Method  string       `json:"method"`
	Params  interface{}  `json:"params,omitempty"`
	Meta    *RequestMeta `json:"meta,omitempty"`
}

// JSONRPCError is the error member of a response envelope.
type JSONRPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// JSONRPCResponse is one outbound response envelope. Exactly one of Result
// and Error is set; ID always mirrors the request, including null.
type JSONRPCResponse struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      interface{}   `json:"id"`
	Result  interface{}   `json:"result,omitempty"`
	Error   *JSONRPCError `json:"error,omitempty"`
}

// newJSONRPCResponse creates a success response mirroring the request ID.
func newJSONRPCResponse(id interface{}, result interface{}) *JSONRPCResponse {
	return &JSONRPCResponse{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Result:  result,
	}
}

// newJSONRPCErrorResponse creates an error response mirroring the request ID.
func newJSONRPCErrorResponse(id interface{}, code int, message string, data interface{}) *JSONRPCResponse {
	return &JSONRPCResponse{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Error: &JSONRPCError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// parseJSONRPCParams re-marshals loosely typed params into a target structure.
func parseJSONRPCParams(params interface{}, target interface{}) error {
	if params == nil {
		return nil
	}

	paramBytes, err := json.Marshal(params)
	if err != nil {
		return err
	}

	return json.Unmarshal(paramBytes, target)
}
