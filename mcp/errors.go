// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"errors"
	"fmt"
)

// ErrConnectionClosed is returned by a [ClientSession] or [ServerSession]
// method when the underlying [Connection] has been closed, either by the
// peer or by a local call to Close.
var ErrConnectionClosed = errors.New("mcp: connection closed")

// ErrSessionMissing is returned by the Streamable HTTP client transport
// when the server responds with 404, indicating that it no longer
// recognizes the session id the client sent (for example, because the
// server process restarted or evicted the session after an idle timeout).
var ErrSessionMissing = errors.New("mcp: session not found on server")

// ResourceNotFoundError is returned when a resources/read request names a
// URI the server does not recognize, either because it was never
// registered or because a template matched no concrete resource.
type ResourceNotFoundError struct {
	URI string
}

func (e *ResourceNotFoundError) Error() string {
	return fmt.Sprintf("resource %q not found", e.URI)
}

// CapabilityNotSupportedError is returned when a request requires a
// capability that was not negotiated during initialize. Capability is a
// dot-separated path into the capability tree, e.g. "tools.listChanged" or
// "tasks.requests.tools.call".
type CapabilityNotSupportedError struct {
	Capability string
	Available  []string
}

func (e *CapabilityNotSupportedError) Error() string {
	return fmt.Sprintf("capability %q not supported (available: %v)", e.Capability, e.Available)
}

// HandshakeFailedError is returned when protocol version negotiation fails
// during initialize: the client's requested version is not one the server
// is willing to proceed with.
type HandshakeFailedError struct {
	Requested string
	Supported []string
}

func (e *HandshakeFailedError) Error() string {
	return fmt.Sprintf("handshake failed: version %q not supported (supported: %v)", e.Requested, e.Supported)
}

// notReadyError is returned when a method requiring a Ready session is
// called before initialize has completed, or after the session has begun
// closing.
type notReadyError struct {
	state string
}

func (e *notReadyError) Error() string {
	return fmt.Sprintf("session is not ready (state: %s)", e.state)
}
