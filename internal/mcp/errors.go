// Package mcp implements the MCP server exposing cqs's store and
// graph-analysis operations to AI clients over stdio and HTTP.
package mcp

import (
	"context"
	"errors"
	"fmt"

	cqserrors "github.com/cqlabs/cqs/internal/errors"
)

// JSON-RPC and cqs-specific MCP error codes.
const (
	ErrCodeIndexNotFound = -32001
	ErrCodeQueryFailed   = -32002
	ErrCodeTimeout       = -32003
	ErrCodeStoreNotFound = -32004
	ErrCodeBodyTooLarge  = -32005

	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

var (
	ErrToolNotFound     = errors.New("tool not found")
	ErrInvalidParams    = errors.New("invalid parameters")
	ErrResourceNotFound = errors.New("resource not found")
)

// MCPError represents an MCP protocol error with code and message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// MapError converts internal errors to MCP errors.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var ce *cqserrors.CqsError
	if errors.As(err, &ce) {
		return mapCqsError(ce)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request timed out."}
	case errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request was canceled."}
	case errors.Is(err, ErrToolNotFound):
		return &MCPError{Code: ErrCodeMethodNotFound, Message: "Tool not found."}
	case errors.Is(err, ErrInvalidParams):
		return &MCPError{Code: ErrCodeInvalidParams, Message: "Invalid parameters."}
	case errors.Is(err, ErrResourceNotFound):
		return &MCPError{Code: ErrCodeMethodNotFound, Message: "Resource not found."}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: err.Error()}
	}
}

func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}

func NewMethodNotFoundError(name string) *MCPError {
	return &MCPError{Code: ErrCodeMethodNotFound, Message: fmt.Sprintf("Tool %q not found.", name)}
}

func NewResourceNotFoundError(uri string) *MCPError {
	return &MCPError{Code: ErrCodeMethodNotFound, Message: fmt.Sprintf("Resource %q not found.", uri)}
}

// mapCqsError converts a CqsError to an MCPError by its category, with a
// few specific codes mapped to their own JSON-RPC error codes.
func mapCqsError(ce *cqserrors.CqsError) *MCPError {
	message := ce.Message
	if ce.Suggestion != "" {
		message = fmt.Sprintf("%s %s", ce.Message, ce.Suggestion)
	}

	switch ce.Category {
	case cqserrors.CategoryInput:
		if ce.Code == cqserrors.ErrCodeFileNotFound {
			return &MCPError{Code: ErrCodeStoreNotFound, Message: message}
		}
		return &MCPError{Code: ErrCodeInvalidParams, Message: message}
	case cqserrors.CategoryIO:
		switch ce.Code {
		case cqserrors.ErrCodeCorruptIndex:
			return &MCPError{Code: ErrCodeIndexNotFound, Message: message}
		default:
			return &MCPError{Code: ErrCodeInternalError, Message: message}
		}
	case cqserrors.CategoryQuery:
		return &MCPError{Code: ErrCodeQueryFailed, Message: message}
	case cqserrors.CategoryProtocol:
		switch ce.Code {
		case cqserrors.ErrCodeProtocolUnknownTool:
			return &MCPError{Code: ErrCodeMethodNotFound, Message: message}
		case cqserrors.ErrCodeProtocolBodyTooLarge:
			return &MCPError{Code: ErrCodeBodyTooLarge, Message: message}
		case cqserrors.ErrCodeProtocolUnauthorized:
			return &MCPError{Code: ErrCodeInvalidRequest, Message: message}
		default:
			return &MCPError{Code: ErrCodeInvalidRequest, Message: message}
		}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	}
}
