// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package jsonrpc2

import (
	"errors"

	"github.com/praxiomlabs/mcpkit-sub000/jsonrpc"
)

// Sentinel errors for the standard JSON-RPC 2.0 error codes. Handlers and
// dispatch code wrap these with fmt.Errorf("%w: ...", ...) so that callers
// can classify a failure with errors.Is while still attaching detail.
var (
	ErrParse          = &jsonrpc.Error{Code: jsonrpc.CodeParseError, Message: "parse error"}
	ErrInvalidRequest = &jsonrpc.Error{Code: jsonrpc.CodeInvalidRequest, Message: "invalid request"}
	ErrMethodNotFound = &jsonrpc.Error{Code: jsonrpc.CodeMethodNotFound, Message: "method not found"}
	ErrInvalidParams  = &jsonrpc.Error{Code: jsonrpc.CodeInvalidParams, Message: "invalid params"}
	ErrInternal       = &jsonrpc.Error{Code: jsonrpc.CodeInternalError, Message: "internal error"}
)

// AsError converts any error into a *jsonrpc.Error, defaulting to
// ErrInternal's code when err does not already carry one.
func AsError(err error) *jsonrpc.Error {
	if err == nil {
		return nil
	}
	var rpcErr *jsonrpc.Error
	if errors.As(err, &rpcErr) {
		return &jsonrpc.Error{Code: rpcErr.Code, Message: err.Error()}
	}
	code := jsonrpc.CodeInternalError
	for _, sentinel := range []*jsonrpc.Error{ErrParse, ErrInvalidRequest, ErrMethodNotFound, ErrInvalidParams, ErrInternal} {
		if errors.Is(err, sentinel) {
			code = sentinel.Code
			break
		}
	}
	return &jsonrpc.Error{Code: code, Message: err.Error()}
}
