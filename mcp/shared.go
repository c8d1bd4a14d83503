// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"context"
	"encoding/json"

	internaljson "github.com/praxiomlabs/mcpkit-sub000/internal/json"
	"github.com/praxiomlabs/mcpkit-sub000/jsonrpc"
)

// marshalResult serializes a Params or Result value for the wire. A nil
// value (as with a notification or request that carries no payload)
// marshals to an empty object, never the literal "null", since MCP peers
// must not see a null params or result.
func marshalResult(v any) (json.RawMessage, error) {
	if v == nil {
		return json.RawMessage("{}"), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(data) == "null" {
		return json.RawMessage("{}"), nil
	}
	return data, nil
}

// unmarshalResult decodes data into v, using the module's strict,
// case-sensitive JSON decoder.
func unmarshalResult(data json.RawMessage, v any) error {
	return internaljson.Unmarshal(data, v)
}

// internalUnmarshalParams decodes data into p using the module's
// case-sensitive JSON decoder: a differently cased field name does not
// match the field and, like any unknown key, is ignored.
func internalUnmarshalParams(data json.RawMessage, p Params) error {
	return internaljson.Unmarshal(data, p)
}

// JSONRPCMessage, JSONRPCRequest, JSONRPCResponse, and JSONRPCID are the
// transport-level vocabulary every [Connection] speaks. They are aliases for
// the corresponding types in package jsonrpc, re-exported here so transport
// authors only need to import package mcp.
type (
	JSONRPCMessage  = jsonrpc.Message
	JSONRPCRequest  = jsonrpc.Request
	JSONRPCResponse = jsonrpc.Response
	JSONRPCID       = jsonrpc.ID
)

// Meta holds the "_meta" property present on every MCP request, response,
// and notification params object. The protocol reserves this field for
// metadata that is not part of the operation's defined schema, such as
// progress tokens and related-task linkage.
type Meta map[string]any

// GetMeta returns m itself, satisfying the metaer interface for types that
// embed Meta.
func (m Meta) GetMeta() Meta { return m }

// SetMeta replaces the receiver's contents with v.
func (m *Meta) SetMeta(v Meta) { *m = v }

// metaer is implemented by every Params and Result type, via their embedded
// Meta field.
type metaer interface {
	GetMeta() Meta
	SetMeta(Meta)
}

const progressTokenKey = "progressToken"

// getProgressToken extracts the progress token from x's _meta field, if any.
// x is a *XxxParams value; it returns nil if x carries no progress token.
func getProgressToken(x any) any {
	m, ok := x.(metaer)
	if !ok {
		return nil
	}
	meta := m.GetMeta()
	if meta == nil {
		return nil
	}
	return meta[progressTokenKey]
}

// setProgressToken stores t as the progress token in x's _meta field.
func setProgressToken(x any, t any) {
	m, ok := x.(metaer)
	if !ok {
		return
	}
	meta := m.GetMeta()
	if meta == nil {
		meta = Meta{}
	}
	meta[progressTokenKey] = t
	m.SetMeta(meta)
}

// Params is implemented by every method's parameter type. It also exposes
// the progress-token accessors used by [ServerRequest.Progress] and its
// client-side counterpart.
type Params interface {
	isParams()
	GetProgressToken() any
	SetProgressToken(any)
	GetMeta() Meta
	SetMeta(Meta)
}

// Result is implemented by every method's result type.
type Result interface {
	isResult()
}

// A ServerRequest pairs an inbound request's params with the server-side
// session it arrived on, so that handlers can call back into the session
// (to report progress, read the negotiated capabilities, and so on)
// without a separate parameter.
type ServerRequest[P Params] struct {
	Session *ServerSession
	Params  P
}

func newServerRequest[P Params](session *ServerSession, params P) *ServerRequest[P] {
	return &ServerRequest[P]{Session: session, Params: params}
}

// A ClientRequest pairs an inbound (server-initiated) request's params with
// the client-side session it arrived on.
type ClientRequest[P Params] struct {
	Session *ClientSession
	Params  P
}

func newClientRequest[P Params](session *ClientSession, params P) *ClientRequest[P] {
	return &ClientRequest[P]{Session: session, Params: params}
}

// GetSession returns r.Session as a [Session], so that middleware written
// against the generic interface can inspect the session a request arrived
// on without depending on the concrete, instantiated ServerRequest[P] type.
func (r *ServerRequest[P]) GetSession() Session { return r.Session }

// GetParams returns r.Params as a [Params].
func (r *ServerRequest[P]) GetParams() Params { return r.Params }

func (r *ServerRequest[P]) isRequest() {}

// GetSession returns r.Session as a [Session].
func (r *ClientRequest[P]) GetSession() Session { return r.Session }

// GetParams returns r.Params as a [Params].
func (r *ClientRequest[P]) GetParams() Params { return r.Params }

func (r *ClientRequest[P]) isRequest() {}

// Session is implemented by [*ServerSession] and [*ClientSession]. It is
// the common type middleware is written against, since a [Middleware] may
// be installed on either side of a connection.
type Session interface {
	ID() string
	isSession()
}

// Request is implemented by [*ServerRequest[P]] and [*ClientRequest[P]] for
// every params type P. It lets [MethodHandler] and [Middleware] operate
// uniformly on requests flowing in either direction.
type Request interface {
	GetSession() Session
	GetParams() Params
	isRequest()
}

// A MethodHandler handles a single JSON-RPC method call: either an
// incoming request being dispatched by this process, or an outgoing
// request about to be sent, depending on where it sits in the
// [Middleware] chain installed by [Server.AddReceivingMiddleware],
// [Server.AddSendingMiddleware], and their client-side counterparts.
type MethodHandler func(ctx context.Context, method string, req Request) (Result, error)

// Middleware wraps a MethodHandler to produce another MethodHandler,
// typically adding cross-cutting behavior (logging, tracing, rate
// limiting) around the call.
type Middleware func(MethodHandler) MethodHandler

// addMiddleware prepends the given middlewares (in call order) onto the
// existing handler, so that mw[0] is the outermost wrapper.
func addMiddleware(h *MethodHandler, mw []Middleware) {
	for i := len(mw) - 1; i >= 0; i-- {
		*h = mw[i](*h)
	}
}

// ServerSessionState is the subset of a [ServerSession]'s state that can be
// persisted by a [ServerSessionStateStore] and restored after a process
// restart, so that a resumed Streamable HTTP session can continue without
// renegotiating initialize.
type ServerSessionState struct {
	// InitializeParams are the parameters the client sent with initialize.
	InitializeParams *InitializeParams `json:"initializeParams"`
	// ProtocolVersion is the version negotiated during initialize.
	ProtocolVersion string `json:"protocolVersion"`
	// LogLevel is the logging level most recently set with logging/setLevel.
	LogLevel LoggingLevel `json:"logLevel"`
}

// handleNotify sends a best-effort notification derived from req to the
// peer on the other end of req.Session. Errors are for the caller to decide
// whether to log; notifications have no reply to carry a failure back.
func handleNotify[P Params](ctx context.Context, method string, req *ServerRequest[P]) error {
	if req == nil || req.Session == nil {
		return nil
	}
	return req.Session.notify(ctx, method, req.Params)
}
