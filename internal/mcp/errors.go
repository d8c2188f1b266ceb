// Package mcp exposes the knowledge engine over the Model Context
// Protocol: tool dispatch, resource reads, subscriptions, and the error
// taxonomy clients program against.
package mcp

import (
	"encoding/json"
	"errors"
	"fmt"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/skeletor-js/medulla/internal/cache"
	"github.com/skeletor-js/medulla/internal/graph"
	"github.com/skeletor-js/medulla/internal/types"
)

// JSON-RPC error codes in the server range (-32000 to -32099).
const (
	CodeEntityNotFound         = -32001
	CodeEntityTypeInvalid      = -32002
	CodeValidationFailed       = -32003
	CodeRelationTargetNotFound = -32004
	CodeResourceNotFound       = -32005
	CodeInvalidResourceURI     = -32006
	CodeStorageError           = -32010
	CodeInternalError          = -32011
)

// ToolError is the taxonomy every tool failure maps into. Code and
// ErrorType identify the failure class; Details carries the structured
// payload programmatic clients need.
type ToolError struct {
	Code      int            `json:"code"`
	ErrorType string         `json:"error_type"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
}

func (e *ToolError) Error() string { return e.Message }

func entityNotFound(id string) *ToolError {
	return &ToolError{
		Code:      CodeEntityNotFound,
		ErrorType: "EntityNotFound",
		Message:   fmt.Sprintf("Entity not found: %s", id),
		Details:   map[string]any{"id": id},
	}
}

func entityTypeInvalid(provided string) *ToolError {
	valid := make([]string, len(types.Kinds))
	for i, k := range types.Kinds {
		valid[i] = string(k)
	}
	return &ToolError{
		Code:      CodeEntityTypeInvalid,
		ErrorType: "EntityTypeInvalid",
		Message:   fmt.Sprintf("Invalid entity type: %s", provided),
		Details:   map[string]any{"provided": provided, "valid": valid},
	}
}

func validationFailed(field, message string) *ToolError {
	return &ToolError{
		Code:      CodeValidationFailed,
		ErrorType: "ValidationFailed",
		Message:   fmt.Sprintf("Validation failed for field '%s': %s", field, message),
		Details:   map[string]any{"field": field, "message": message},
	}
}

func titleRequired() *ToolError {
	return &ToolError{
		Code:      CodeValidationFailed,
		ErrorType: "TitleRequired",
		Message:   "Title is required",
	}
}

func titleTooLong(actual int) *ToolError {
	return &ToolError{
		Code:      CodeValidationFailed,
		ErrorType: "TitleTooLong",
		Message:   fmt.Sprintf("Title too long: %d characters (max %d)", actual, MaxTitleLength),
		Details:   map[string]any{"max": MaxTitleLength, "actual": actual},
	}
}

func selfReferentialRelation(id string) *ToolError {
	return &ToolError{
		Code:      CodeRelationTargetNotFound,
		ErrorType: "SelfReferentialRelation",
		Message:   fmt.Sprintf("Self-referential relation not allowed for entity: %s", id),
		Details:   map[string]any{"id": id},
	}
}

func maxDepthExceeded() *ToolError {
	return &ToolError{
		Code:      CodeEntityNotFound,
		ErrorType: "MaxDepthExceeded",
		Message:   fmt.Sprintf("Maximum depth %d exceeded", graph.MaxDepth),
		Details:   map[string]any{"max": graph.MaxDepth},
	}
}

func resourceNotFound(uri string) *ToolError {
	return &ToolError{
		Code:      CodeResourceNotFound,
		ErrorType: "ResourceNotFound",
		Message:   fmt.Sprintf("Resource not found: %s", uri),
		Details:   map[string]any{"uri": uri},
	}
}

func invalidResourceURI(uri string) *ToolError {
	return &ToolError{
		Code:      CodeInvalidResourceURI,
		ErrorType: "InvalidResourceUri",
		Message:   fmt.Sprintf("Invalid resource URI: %s", uri),
		Details:   map[string]any{"uri": uri},
	}
}

func storageError(err error) *ToolError {
	return &ToolError{
		Code:      CodeStorageError,
		ErrorType: "StorageError",
		Message:   fmt.Sprintf("Storage error: %v", err),
	}
}

func internalError(err error) *ToolError {
	return &ToolError{
		Code:      CodeInternalError,
		ErrorType: "InternalError",
		Message:   fmt.Sprintf("Internal error: %v", err),
	}
}

// asToolError folds any error into the taxonomy. Typed errors keep their
// class; everything else is a storage error, which matches how the
// stores report failures.
func asToolError(err error) *ToolError {
	var te *ToolError
	if errors.As(err, &te) {
		return te
	}
	var nf *types.NotFoundError
	if errors.As(err, &nf) {
		return entityNotFound(nf.ID)
	}
	if errors.Is(err, cache.ErrMalformedQuery) {
		return validationFailed("query", err.Error())
	}
	if errors.Is(err, graph.ErrMaxDepthExceeded) {
		return maxDepthExceeded()
	}
	return storageError(err)
}

// errResult renders a tool failure as an in-band error result whose body
// is the serialised ToolError, so clients read the same code and
// {error_type, details} payload regardless of transport.
func errResult(err error) (*sdkmcp.CallToolResult, any, error) {
	te := asToolError(err)
	body, marshalErr := json.MarshalIndent(map[string]any{
		"code":    te.Code,
		"message": te.Message,
		"data": map[string]any{
			"error_type": te.ErrorType,
			"details":    te.Details,
		},
	}, "", "  ")
	if marshalErr != nil {
		body = []byte(fmt.Sprintf(`{"code": %d, "message": %q}`, te.Code, te.Message))
	}
	return &sdkmcp.CallToolResult{
		IsError: true,
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: string(body)}},
	}, nil, nil
}

// textResult pretty-prints v as the single text content block of a
// successful tool result.
func textResult(v any) (*sdkmcp.CallToolResult, any, error) {
	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errResult(internalError(err))
	}
	return &sdkmcp.CallToolResult{
		Content: []sdkmcp.Content{&sdkmcp.TextContent{Text: string(body)}},
	}, nil, nil
}
