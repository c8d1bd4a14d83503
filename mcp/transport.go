// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"sync"

	"github.com/praxiomlabs/mcpkit-sub000/internal/jsonrpc2"
)

// A Transport connects a logical JSON-RPC peer (a [Client] or [Server]) to
// the wire. Connect returns a [Connection] that speaks the transport's
// framing, leaving all protocol logic (initialize, dispatch, capability
// gating) to the session built on top of it.
type Transport interface {
	Connect(ctx context.Context) (Connection, error)
}

// A Connection is a logical JSON-RPC connection. It reads and writes
// complete messages; framing (newline-delimited JSON, SSE events,
// WebSocket frames, and so on) is the concern of the [Transport] that
// produced it.
type Connection interface {
	Read(ctx context.Context) (JSONRPCMessage, error)
	Write(ctx context.Context, msg JSONRPCMessage) error
	Close() error
}

// readBatch decodes data as either a single JSON-RPC message or a JSON
// array of messages (a "batch", as permitted by JSON-RPC 2.0). It reports
// whether the input was a batch.
func readBatch(data []byte) (msgs []JSONRPCMessage, batch bool, err error) {
	return jsonrpc2.DecodeBatch(data)
}

// rwc adapts a pair of [io.Reader] and [io.Writer] (with its own Close) to
// an [io.ReadWriteCloser], for transports (stdio, Unix-domain sockets,
// Windows named pipes) that expose reading and writing as separate
// half-duplex handles.
type rwc struct {
	rc io.ReadCloser
	wc io.WriteCloser
}

func (s rwc) Read(p []byte) (n int, err error)  { return s.rc.Read(p) }
func (s rwc) Write(p []byte) (n int, err error) { return s.wc.Write(p) }
func (s rwc) Close() error {
	err1 := s.rc.Close()
	err2 := s.wc.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

// ioTransport is a [Transport] over an already-open [io.ReadWriteCloser],
// framing messages as newline-delimited JSON (ndjson). It backs
// [NewStdioTransport] and the Unix-domain-socket and named-pipe
// transports.
type ioTransport struct {
	rwc io.ReadWriteCloser
}

// NewStdioTransport returns a [Transport] that communicates over stdin and
// stdout using newline-delimited JSON, the framing used by most local MCP
// servers.
func NewStdioTransport() Transport {
	return &ioTransport{rwc: rwc{rc: os.Stdin, wc: os.Stdout}}
}

// NewIOTransport returns a [Transport] that communicates over an
// already-open [io.ReadWriteCloser] using newline-delimited JSON. It is
// the building block for Unix-domain-socket and Windows-named-pipe
// transports, whose net.Conn values already satisfy io.ReadWriteCloser.
func NewIOTransport(rwc io.ReadWriteCloser) Transport {
	return &ioTransport{rwc: rwc}
}

func (t *ioTransport) Connect(context.Context) (Connection, error) {
	return newIOConn(t.rwc), nil
}

// ioConn is the [Connection] implementation behind [ioTransport]. It frames
// outgoing messages as newline-delimited JSON, and optionally batches
// several writes into a single JSON array once outgoingBatch reaches
// capacity (used by tests; nil in production use).
type ioConn struct {
	rwc     io.ReadWriteCloser
	dec     *json.Decoder
	limiter *maxBytesReader

	mu            sync.Mutex
	outgoingBatch []JSONRPCMessage
}

func newIOConn(rwc io.ReadWriteCloser) *ioConn {
	limiter := &maxBytesReader{r: bufio.NewReader(rwc), limit: effectiveMaxBodyBytes(0)}
	dec := json.NewDecoder(limiter)
	return &ioConn{rwc: rwc, dec: dec, limiter: limiter}
}

// maxBytesReader bounds the number of bytes read for a single logical
// message, mirroring http.MaxBytesReader for non-HTTP, newline-delimited
// transports (stdio, Unix-domain sockets, named pipes). reset must be
// called before decoding each message.
type maxBytesReader struct {
	r     io.Reader
	limit int64 // <= 0 means unlimited
	n     int64 // bytes remaining in the current message's budget
}

func (m *maxBytesReader) reset() {
	m.n = m.limit
}

func (m *maxBytesReader) Read(p []byte) (int, error) {
	if m.limit <= 0 {
		return m.r.Read(p)
	}
	if m.n <= 0 {
		return 0, fmt.Errorf("message exceeds maximum size of %d bytes", m.limit)
	}
	if int64(len(p)) > m.n {
		p = p[:m.n]
	}
	n, err := m.r.Read(p)
	m.n -= int64(n)
	return n, err
}

// Read implements the [Connection] interface.
func (t *ioConn) Read(ctx context.Context) (JSONRPCMessage, error) {
	t.limiter.reset()
	var raw json.RawMessage
	if err := t.dec.Decode(&raw); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		if t.dec.More() {
			return nil, fmt.Errorf("invalid trailing data %q at the end of stream", trailingToken(t.dec))
		}
		return nil, err
	}
	var tr [1]byte
	if n, _ := t.dec.Buffered().Read(tr[:]); n > 0 && tr[0] != '\n' && tr[0] != '\r' && tr[0] != ' ' && tr[0] != '\t' {
		return nil, fmt.Errorf("invalid trailing data %q at the end of stream", tr[0])
	}
	return jsonrpc2.DecodeMessage(raw)
}

// trailingToken extracts a short description of the unconsumed input
// immediately following a successfully decoded value, for error messages.
func trailingToken(dec *json.Decoder) string {
	tok, err := dec.Token()
	if err != nil {
		return ""
	}
	return fmt.Sprintf("%v", tok)
}

// Write implements the [Connection] interface.
func (t *ioConn) Write(ctx context.Context, msg JSONRPCMessage) error {
	data, err := jsonrpc2.EncodeMessage(msg)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if cap(t.outgoingBatch) == 0 {
		data = append(data, '\n')
		_, err := t.rwc.Write(data)
		return err
	}

	t.outgoingBatch = append(t.outgoingBatch, msg)
	if len(t.outgoingBatch) < cap(t.outgoingBatch) {
		return nil
	}
	batch := t.outgoingBatch
	t.outgoingBatch = t.outgoingBatch[:0]
	payload, err := json.Marshal(batch)
	if err != nil {
		return err
	}
	payload = append(payload, '\n')
	_, err = t.rwc.Write(payload)
	return err
}

// Close implements the [Connection] interface.
func (t *ioConn) Close() error {
	return t.rwc.Close()
}

// NewUnixSocketTransport dials the Unix-domain socket at path and returns a
// [Transport] that frames messages as newline-delimited JSON over it.
func NewUnixSocketTransport(path string) (Transport, error) {
	conn, err := net.Dial("unix", path)
	if err != nil {
		return nil, fmt.Errorf("dialing unix socket %q: %w", path, err)
	}
	return NewIOTransport(conn), nil
}

// LoggingTransport wraps another [Transport], logging every message read
// and written to Writer. It is primarily useful for debugging a client or
// server's wire traffic.
type LoggingTransport struct {
	Transport Transport
	Writer    io.Writer
}

// Connect implements the [Transport] interface.
func (t *LoggingTransport) Connect(ctx context.Context) (Connection, error) {
	conn, err := t.Transport.Connect(ctx)
	if err != nil {
		return nil, err
	}
	return &loggingConn{conn: conn, w: t.Writer}, nil
}

// NewLoggingTransport returns a [LoggingTransport] wrapping transport,
// logging traffic to w.
func NewLoggingTransport(transport Transport, w io.Writer) *LoggingTransport {
	return &LoggingTransport{Transport: transport, Writer: w}
}

type loggingConn struct {
	conn Connection
	mu   sync.Mutex
	w    io.Writer
}

func (c *loggingConn) Read(ctx context.Context) (JSONRPCMessage, error) {
	msg, err := c.conn.Read(ctx)
	if err == nil {
		c.log("read", msg)
	}
	return msg, err
}

func (c *loggingConn) Write(ctx context.Context, msg JSONRPCMessage) error {
	c.log("write", msg)
	return c.conn.Write(ctx, msg)
}

func (c *loggingConn) Close() error {
	return c.conn.Close()
}

func (c *loggingConn) log(dir string, msg JSONRPCMessage) {
	data, err := jsonrpc2.EncodeMessage(msg)
	if err != nil {
		log.Printf("LoggingTransport: encoding %s message: %v", dir, err)
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, "%s: %s\n", dir, data)
}

// inMemoryTransport is a [Transport] for one end of an in-process pipe,
// created in pairs by [NewInMemoryTransports].
type inMemoryTransport struct {
	conn Connection
}

func (t *inMemoryTransport) Connect(context.Context) (Connection, error) {
	return t.conn, nil
}

// NewInMemoryTransports returns two [Transport]s, each connected to the
// other through in-process channels, with no serialization involved. It is
// intended for tests and for wiring a [Client] and [Server] together
// within a single process.
func NewInMemoryTransports() (clientTransport, serverTransport Transport) {
	c2s := make(chan JSONRPCMessage, 100)
	s2c := make(chan JSONRPCMessage, 100)
	done := make(chan struct{})
	var closeOnce sync.Once

	client := &inMemoryConn{send: c2s, recv: s2c, done: done, closeOnce: &closeOnce}
	server := &inMemoryConn{send: s2c, recv: c2s, done: done, closeOnce: &closeOnce}
	return &inMemoryTransport{conn: client}, &inMemoryTransport{conn: server}
}

type inMemoryConn struct {
	send      chan<- JSONRPCMessage
	recv      <-chan JSONRPCMessage
	done      chan struct{}
	closeOnce *sync.Once
}

func (c *inMemoryConn) Read(ctx context.Context) (JSONRPCMessage, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		return nil, io.EOF
	case msg, ok := <-c.recv:
		if !ok {
			return nil, io.EOF
		}
		return msg, nil
	}
}

func (c *inMemoryConn) Write(ctx context.Context, msg JSONRPCMessage) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return io.EOF
	case c.send <- msg:
		return nil
	}
}

func (c *inMemoryConn) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}
