// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/praxiomlabs/mcpkit-sub000/internal/jsonrpc2"
)

// An SSEClientTransport is a [Transport] that speaks the legacy
// (2024-11-05) HTTP+SSE transport: a client opens a GET request for a
// text/event-stream of server-to-client messages, the first event of
// which (an "endpoint" event) names the URL the client should POST its
// own messages to.
//
// Prefer [StreamableClientTransport] for servers implementing the current
// protocol version; this transport exists for compatibility with older
// servers.
type SSEClientTransport struct {
	// Endpoint is the URL of the SSE stream to connect to.
	Endpoint string
	// ModifyRequest, if non-nil, is called to modify each outgoing HTTP
	// request before it is sent.
	ModifyRequest func(*http.Request)
	// HTTPClient is the client used to make HTTP requests. If nil,
	// http.DefaultClient is used.
	HTTPClient *http.Client
}

// Connect implements the [Transport] interface. It opens the event stream
// and blocks until the server's initial "endpoint" event names the URL to
// post client messages to.
func (t *SSEClientTransport) Connect(ctx context.Context) (Connection, error) {
	client := t.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.Endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating SSE request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	if t.ModifyRequest != nil {
		t.ModifyRequest(req)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("connecting to SSE endpoint: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("SSE endpoint returned status %s", resp.Status)
	}

	conn := &sseClientConn{
		client:        client,
		modifyRequest: t.ModifyRequest,
		body:          resp.Body,
		incoming:      make(chan []byte, 100),
		endpointReady: make(chan struct{}),
		done:          make(chan struct{}),
	}
	go conn.receiveEvents()

	select {
	case <-conn.endpointReady:
	case <-conn.done:
		return nil, fmt.Errorf("SSE stream closed before endpoint event was received")
	case <-ctx.Done():
		conn.Close()
		return nil, ctx.Err()
	}
	return conn, nil
}

type sseClientConn struct {
	client        *http.Client
	modifyRequest func(*http.Request)
	body          io.ReadCloser
	incoming      chan []byte

	mu           sync.Mutex
	postEndpoint string
	err          error

	endpointReady     chan struct{}
	endpointReadyOnce sync.Once
	done              chan struct{}
	closeOnce         sync.Once
}

func (c *sseClientConn) receiveEvents() {
	defer close(c.done)
	for evt, err := range scanEvents(c.body) {
		if err != nil {
			c.mu.Lock()
			c.err = err
			c.mu.Unlock()
			return
		}
		switch evt.name {
		case "endpoint":
			c.mu.Lock()
			c.postEndpoint = string(evt.data)
			c.mu.Unlock()
			c.endpointReadyOnce.Do(func() { close(c.endpointReady) })
		default:
			select {
			case c.incoming <- evt.data:
			case <-c.done:
				return
			}
		}
	}
}

func (c *sseClientConn) Read(ctx context.Context) (JSONRPCMessage, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.err != nil {
			return nil, c.err
		}
		return nil, io.EOF
	case data := <-c.incoming:
		return jsonrpc2.DecodeMessage(data)
	}
}

func (c *sseClientConn) Write(ctx context.Context, msg JSONRPCMessage) error {
	c.mu.Lock()
	endpoint := c.postEndpoint
	c.mu.Unlock()

	data, err := jsonrpc2.EncodeMessage(msg)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("creating POST request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.modifyRequest != nil {
		c.modifyRequest(req)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting message: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("POST to %s returned status %s", endpoint, resp.Status)
	}
	return nil
}

func (c *sseClientConn) Close() error {
	c.closeOnce.Do(func() {
		c.body.Close()
	})
	return nil
}
