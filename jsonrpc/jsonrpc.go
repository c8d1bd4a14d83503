// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// Package jsonrpc defines the wire-level JSON-RPC 2.0 message types shared by
// every MCP transport: the tagged Message union (Request, Response), the
// RequestId sum type, and the standard error codes.
//
// Higher layers (package mcp) build sessions, routing, and the MCP method
// catalog on top of these primitives; this package has no knowledge of MCP
// itself.
package jsonrpc

import (
	"encoding/json"
	"fmt"
)

const protocolVersion = "2.0"

// A Message is either a [Request] or a [Response].
type Message interface {
	isJSONRPCMessage()
}

// ID is a JSON-RPC request identifier: either an int64, a string, or the
// zero value, which represents a notification (no id at all).
type ID struct {
	value any // nil, int64, or string
}

// Int64ID returns an ID holding the given integer.
func Int64ID(v int64) ID { return ID{value: v} }

// StringID returns an ID holding the given string.
func StringID(v string) ID { return ID{value: v} }

// IsValid reports whether id was assigned a value (as opposed to being the
// implicit id of a notification).
func (id ID) IsValid() bool { return id.value != nil }

// Raw returns the underlying int64 or string, or nil for an invalid ID.
func (id ID) Raw() any { return id.value }

func (id ID) String() string {
	switch v := id.value.(type) {
	case nil:
		return "<invalid>"
	case int64:
		return fmt.Sprintf("%d", v)
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}

func (id ID) MarshalJSON() ([]byte, error) {
	switch v := id.value.(type) {
	case nil:
		return []byte("null"), nil
	case int64:
		return json.Marshal(v)
	case string:
		return json.Marshal(v)
	default:
		return nil, fmt.Errorf("jsonrpc: invalid id value %v of type %T", v, v)
	}
}

func (id *ID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		id.value = nil
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err == nil {
		id.value = n
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("jsonrpc: id must be a number or string: %w", err)
	}
	id.value = s
	return nil
}

// A Request is a JSON-RPC request or notification. It is a notification if
// ID is invalid (the zero value).
type Request struct {
	ID     ID
	Method string
	Params json.RawMessage
}

func (*Request) isJSONRPCMessage() {}

// IsCall reports whether r expects a response.
func (r *Request) IsCall() bool { return r.ID.IsValid() }

// A Response carries the result of a Request, indexed by the same ID.
// Exactly one of Result or Error is set.
type Response struct {
	ID     ID
	Result json.RawMessage
	Error  *Error
}

func (*Response) isJSONRPCMessage() {}

// Error codes defined by the JSON-RPC 2.0 spec, plus the MCP-reserved
// domain-defined range (-32000..-32099).
const (
	CodeParseError     int64 = -32700
	CodeInvalidRequest int64 = -32600
	CodeMethodNotFound int64 = -32601
	CodeInvalidParams  int64 = -32602
	CodeInternalError  int64 = -32603

	// CodeResourceNotFound is returned when a resources/read request names a
	// URI the server does not recognize.
	CodeResourceNotFound int64 = -32002
	// CodeCapabilityNotSupported is returned when a request requires a
	// capability that was not negotiated.
	CodeCapabilityNotSupported int64 = -32003
	// CodeHandshakeFailed is returned when protocol version negotiation
	// fails during initialize.
	CodeHandshakeFailed int64 = -32004
)

// An Error is a JSON-RPC error object.
type Error struct {
	Code    int64           `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc: code %d: %s", e.Code, e.Message)
}

// wireMessage is the over-the-wire envelope shared by requests and responses.
type wireMessage struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *ID             `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// EncodeMessage serializes msg as a single JSON-RPC 2.0 wire object.
func EncodeMessage(msg Message) ([]byte, error) {
	w := wireMessage{JSONRPC: protocolVersion}
	switch m := msg.(type) {
	case *Request:
		if m.ID.IsValid() {
			id := m.ID
			w.ID = &id
		}
		w.Method = m.Method
		w.Params = m.Params
	case *Response:
		id := m.ID
		w.ID = &id
		if m.Error != nil {
			w.Error = m.Error
		} else if m.Result != nil {
			w.Result = m.Result
		} else {
			w.Result = json.RawMessage("null")
		}
	default:
		return nil, fmt.Errorf("jsonrpc: cannot encode message of type %T", msg)
	}
	return json.Marshal(w)
}

// DecodeMessage parses a single JSON-RPC 2.0 wire object into a Request or
// Response.
func DecodeMessage(data []byte) (Message, error) {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, &Error{Code: CodeParseError, Message: err.Error()}
	}
	if w.JSONRPC != protocolVersion {
		return nil, &Error{Code: CodeInvalidRequest, Message: fmt.Sprintf("unsupported or missing jsonrpc version %q", w.JSONRPC)}
	}
	switch {
	case w.Method != "":
		var id ID
		if w.ID != nil {
			id = *w.ID
		}
		return &Request{ID: id, Method: w.Method, Params: w.Params}, nil
	case w.Result != nil || w.Error != nil:
		if w.ID == nil {
			return nil, &Error{Code: CodeInvalidRequest, Message: "response is missing id"}
		}
		return &Response{ID: *w.ID, Result: w.Result, Error: w.Error}, nil
	default:
		return nil, &Error{Code: CodeInvalidRequest, Message: "message is neither a request, notification, nor response"}
	}
}

// DecodeBatch parses data as either a single JSON-RPC message or a JSON array
// of messages (a "batch", permitted by the JSON-RPC 2.0 spec), returning the
// decoded messages and whether the input was a batch.
func DecodeBatch(data []byte) (msgs []Message, batch bool, err error) {
	trimmed := trimSpace(data)
	if len(trimmed) == 0 {
		return nil, false, &Error{Code: CodeParseError, Message: "empty message"}
	}
	if trimmed[0] != '[' {
		msg, err := DecodeMessage(data)
		if err != nil {
			return nil, false, err
		}
		return []Message{msg}, false, nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, true, &Error{Code: CodeParseError, Message: err.Error()}
	}
	if len(raw) == 0 {
		return nil, true, &Error{Code: CodeInvalidRequest, Message: "empty batch"}
	}
	msgs = make([]Message, 0, len(raw))
	for _, r := range raw {
		msg, err := DecodeMessage(r)
		if err != nil {
			return nil, true, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, true, nil
}

func trimSpace(b []byte) []byte {
	i := 0
	for i < len(b) {
		switch b[i] {
		case ' ', '\t', '\n', '\r':
			i++
			continue
		}
		break
	}
	return b[i:]
}
