// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"context"
	"fmt"
	"sync"

	"github.com/praxiomlabs/mcpkit-sub000/internal/jsonrpc2"
	"github.com/praxiomlabs/mcpkit-sub000/jsonrpc"
)

// A Client is the MCP entry point for a process that consumes another
// process's tools, resources, and prompts. A single Client can be
// [Client.Connect]ed to many servers, one [ClientSession] per connection.
type Client struct {
	impl *Implementation
	opts ClientOptions

	mu          sync.Mutex
	roots       []*Root
	sendingMW   []Middleware
	receivingMW []Middleware
}

// ClientOptions configures the behavior of a [Client].
type ClientOptions struct {
	// Capabilities overrides the capabilities the client advertises during
	// initialize. A nil value advertises roots and, if handlers are
	// installed, sampling and elicitation.
	Capabilities *ClientCapabilities
	// CreateMessageHandler serves sampling/createMessage requests from the
	// server, if the client supports sampling.
	CreateMessageHandler func(ctx context.Context, req *CreateMessageRequest) (*CreateMessageResult, error)
	// ElicitationHandler serves elicitation/create requests from the
	// server, if the client supports elicitation.
	ElicitationHandler func(ctx context.Context, req *ElicitRequest) (*ElicitResult, error)
	// ToolListChangedHandler, if set, is called when the server notifies
	// the client that its tool list changed.
	ToolListChangedHandler func(ctx context.Context, req *ToolListChangedRequest)
	// PromptListChangedHandler, if set, is called when the server notifies
	// the client that its prompt list changed.
	PromptListChangedHandler func(ctx context.Context, req *PromptListChangedRequest)
	// ResourceListChangedHandler, if set, is called when the server
	// notifies the client that its resource list changed.
	ResourceListChangedHandler func(ctx context.Context, req *ResourceListChangedRequest)
	// ResourceUpdatedHandler, if set, is called when the server notifies
	// the client that a subscribed resource changed.
	ResourceUpdatedHandler func(ctx context.Context, req *ResourceUpdatedNotificationRequest)
	// LoggingMessageHandler, if set, is called for every log entry the
	// server sends.
	LoggingMessageHandler func(ctx context.Context, req *LoggingMessageRequest)
	// TaskStatusChangedHandler, if set, is called when the server notifies
	// the client of a task status change.
	TaskStatusChangedHandler func(ctx context.Context, req *TaskStatusNotificationRequest)
}

// NewClient creates a new MCP client with the given implementation
// metadata.
func NewClient(impl *Implementation, opts *ClientOptions) *Client {
	c := &Client{impl: impl}
	if opts != nil {
		c.opts = *opts
	}
	return c
}

// AddRoots adds to the set of roots the client exposes to servers. Call
// [ClientSession.notifyRootsChanged] on each live session afterward to let
// already-connected servers know the list changed.
func (c *Client) AddRoots(roots ...*Root) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roots = append(c.roots, roots...)
}

// notifyRootsChanged tells the server on the other end of cs that the
// client's root list changed.
func (cs *ClientSession) notifyRootsChanged(ctx context.Context) error {
	return cs.notify(ctx, notificationRootsListChanged, &RootsListChangedParams{})
}

// AddReceivingMiddleware wraps every incoming (server-initiated) request
// handled by sessions created from this client with mw, outermost first.
func (c *Client) AddReceivingMiddleware(mw ...Middleware) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.receivingMW = append(c.receivingMW, mw...)
}

// AddSendingMiddleware wraps every outgoing client-initiated request with
// mw, outermost first.
func (c *Client) AddSendingMiddleware(mw ...Middleware) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendingMW = append(c.sendingMW, mw...)
}

func (c *Client) capabilities() *ClientCapabilities {
	if c.opts.Capabilities != nil {
		return c.opts.Capabilities.clone()
	}
	caps := &ClientCapabilities{RootsV2: &RootCapabilities{ListChanged: true}}
	if c.opts.CreateMessageHandler != nil {
		caps.Sampling = &SamplingCapabilities{}
	}
	if c.opts.ElicitationHandler != nil {
		caps.Elicitation = &ElicitationCapabilities{}
	}
	return caps
}

// Connect starts a new [ClientSession] over transport, negotiating the
// protocol version and capabilities with the server via initialize before
// returning.
func (c *Client) Connect(ctx context.Context, t Transport, opts *ClientSessionOptions) (*ClientSession, error) {
	conn, err := t.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("connecting transport: %w", err)
	}
	cs := &ClientSession{
		client:  c,
		conn:    conn,
		pending: make(map[jsonrpc.ID]chan *jsonrpc.Response),
		done:    make(chan struct{}),
	}
	if opts != nil {
		cs.opts = *opts
	}
	cs.wg.Add(1)
	go cs.readLoop(ctx)

	initRes, err := cs.initialize(ctx)
	if err != nil {
		cs.Close()
		return nil, err
	}
	cs.mu.Lock()
	cs.initResult = initRes
	cs.mu.Unlock()

	if err := cs.notify(ctx, notificationInitialized, &InitializedParams{}); err != nil {
		cs.Close()
		return nil, err
	}
	return cs, nil
}

// ClientSessionOptions configures a single [ClientSession].
type ClientSessionOptions struct{}

// A ClientSession is a single logical connection between a [Client] and
// one server, from the client's point of view.
type ClientSession struct {
	client *Client
	conn   Connection
	opts   ClientSessionOptions

	mu         sync.Mutex
	initResult *InitializeResult
	nextID     int64
	pending    map[jsonrpc.ID]chan *jsonrpc.Response

	wg       sync.WaitGroup
	done     chan struct{}
	closeErr error
}

func (cs *ClientSession) isSession() {}

// ID identifies the session for logging purposes.
func (cs *ClientSession) ID() string {
	return fmt.Sprintf("%p", cs)
}

// InitializeResult returns the result of the initialize call that
// established this session.
func (cs *ClientSession) InitializeResult() *InitializeResult {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.initResult
}

func (cs *ClientSession) readLoop(ctx context.Context) {
	defer cs.wg.Done()
	defer cs.shutdown(nil)
	for {
		msg, err := cs.conn.Read(ctx)
		if err != nil {
			cs.shutdown(err)
			return
		}
		switch m := msg.(type) {
		case *jsonrpc.Request:
			go cs.handleRequest(ctx, m)
		case *jsonrpc.Response:
			cs.mu.Lock()
			ch, ok := cs.pending[m.ID]
			if ok {
				delete(cs.pending, m.ID)
			}
			cs.mu.Unlock()
			if ok {
				ch <- m
			}
		}
	}
}

// closeError reports why the session's connection ended, for a caller
// whose in-flight call was abandoned by shutdown. It falls back to
// [ErrConnectionClosed] when the connection closed without a specific
// cause (for example, a clean local Close).
func (cs *ClientSession) closeError() error {
	cs.mu.Lock()
	err := cs.closeErr
	cs.mu.Unlock()
	if err == nil {
		return ErrConnectionClosed
	}
	return err
}

func (cs *ClientSession) shutdown(err error) {
	cs.mu.Lock()
	if cs.pending == nil {
		cs.mu.Unlock()
		return
	}
	cs.closeErr = err
	pending := cs.pending
	cs.pending = nil
	cs.mu.Unlock()

	for _, ch := range pending {
		close(ch)
	}
	close(cs.done)
}

// Wait blocks until the session's connection is closed, returning the
// error (if any) that caused it to close.
func (cs *ClientSession) Wait() error {
	cs.wg.Wait()
	return cs.closeErr
}

// Close terminates the session, closing its underlying connection.
func (cs *ClientSession) Close() error {
	err := cs.conn.Close()
	cs.shutdown(err)
	return err
}

func (cs *ClientSession) notify(ctx context.Context, method string, params Params) error {
	data, err := marshalResult(params)
	if err != nil {
		return err
	}
	return cs.conn.Write(ctx, &jsonrpc.Request{Method: method, Params: data})
}

func (cs *ClientSession) call(ctx context.Context, method string, params Params, result Result) error {
	cs.mu.Lock()
	if cs.pending == nil {
		cs.mu.Unlock()
		return ErrConnectionClosed
	}
	cs.nextID++
	id := jsonrpc.Int64ID(cs.nextID)
	ch := make(chan *jsonrpc.Response, 1)
	cs.pending[id] = ch
	cs.mu.Unlock()

	data, err := marshalResult(params)
	if err != nil {
		return err
	}
	if err := cs.conn.Write(ctx, &jsonrpc.Request{ID: id, Method: method, Params: data}); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-cs.done:
		return cs.closeError()
	case resp, ok := <-ch:
		if !ok {
			return cs.closeError()
		}
		if resp.Error != nil {
			return resp.Error
		}
		if result != nil {
			return unmarshalResult(resp.Result, result)
		}
		return nil
	}
}

func (cs *ClientSession) initialize(ctx context.Context) (*InitializeResult, error) {
	params := &InitializeParams{
		Capabilities:    cs.client.capabilities(),
		ClientInfo:      cs.client.impl,
		ProtocolVersion: latestProtocolVersion,
	}
	var res InitializeResult
	if err := cs.call(ctx, methodInitialize, params, &res); err != nil {
		return nil, err
	}
	if !isSupportedProtocolVersion(res.ProtocolVersion) {
		return nil, &HandshakeFailedError{Requested: params.ProtocolVersion, Supported: supportedProtocolVersions}
	}
	return &res, nil
}

// CallTool invokes a tool synchronously, waiting for its result.
func (cs *ClientSession) CallTool(ctx context.Context, params *CallToolParams) (*CallToolResult, error) {
	var res CallToolResult
	if err := cs.call(ctx, methodCallTool, params, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// CallToolTask invokes a tool as a task, returning as soon as the server
// has created the task rather than waiting for it to finish. Use
// [ClientSession.TaskResult] to retrieve the eventual result.
func (cs *ClientSession) CallToolTask(ctx context.Context, params *CallToolParams) (*CreateTaskResult, error) {
	var res CreateTaskResult
	if err := cs.call(ctx, methodCallTool, params, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ListTools lists the tools the server exposes.
func (cs *ClientSession) ListTools(ctx context.Context, params *ListToolsParams) (*ListToolsResult, error) {
	var res ListToolsResult
	if err := cs.call(ctx, methodListTools, params, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ListPrompts lists the prompts the server exposes.
func (cs *ClientSession) ListPrompts(ctx context.Context, params *ListPromptsParams) (*ListPromptsResult, error) {
	var res ListPromptsResult
	if err := cs.call(ctx, methodListPrompts, params, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// GetPrompt renders a prompt by name with the given arguments.
func (cs *ClientSession) GetPrompt(ctx context.Context, params *GetPromptParams) (*GetPromptResult, error) {
	var res GetPromptResult
	if err := cs.call(ctx, methodGetPrompt, params, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ListResources lists the concrete resources the server exposes.
func (cs *ClientSession) ListResources(ctx context.Context, params *ListResourcesParams) (*ListResourcesResult, error) {
	var res ListResourcesResult
	if err := cs.call(ctx, methodListResources, params, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ListResourceTemplates lists the resource templates the server exposes.
func (cs *ClientSession) ListResourceTemplates(ctx context.Context, params *ListResourceTemplatesParams) (*ListResourceTemplatesResult, error) {
	var res ListResourceTemplatesResult
	if err := cs.call(ctx, methodListResourceTemplates, params, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ReadResource reads the contents of a resource by URI.
func (cs *ClientSession) ReadResource(ctx context.Context, params *ReadResourceParams) (*ReadResourceResult, error) {
	var res ReadResourceResult
	if err := cs.call(ctx, methodReadResource, params, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Subscribe asks the server to notify this session of updates to the
// named resource.
func (cs *ClientSession) Subscribe(ctx context.Context, params *SubscribeParams) error {
	return cs.call(ctx, methodSubscribe, params, nil)
}

// Unsubscribe cancels a previous Subscribe.
func (cs *ClientSession) Unsubscribe(ctx context.Context, params *UnsubscribeParams) error {
	return cs.call(ctx, methodUnsubscribe, params, nil)
}

// Complete requests autocompletion suggestions for a prompt or resource
// template argument.
func (cs *ClientSession) Complete(ctx context.Context, params *CompleteParams) (*CompleteResult, error) {
	var res CompleteResult
	if err := cs.call(ctx, methodComplete, params, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// SetLoggingLevel asks the server to send log messages at level or above.
func (cs *ClientSession) SetLoggingLevel(ctx context.Context, level LoggingLevel) error {
	return cs.call(ctx, methodSetLevel, &SetLoggingLevelParams{Level: level}, nil)
}

// GetTask retrieves the current status of a task by ID.
func (cs *ClientSession) GetTask(ctx context.Context, params *GetTaskParams) (*GetTaskResult, error) {
	var res GetTaskResult
	if err := cs.call(ctx, methodGetTask, params, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ListTasks lists the tasks created by this session.
func (cs *ClientSession) ListTasks(ctx context.Context, params *ListTasksParams) (*ListTasksResult, error) {
	if params == nil {
		params = &ListTasksParams{}
	}
	var res ListTasksResult
	if err := cs.call(ctx, methodListTasks, params, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// CancelTask requests cancellation of a running task.
func (cs *ClientSession) CancelTask(ctx context.Context, params *CancelTaskParams) (*CancelTaskResult, error) {
	var res CancelTaskResult
	if err := cs.call(ctx, methodCancelTask, params, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// TaskResult blocks until the named task completes, then returns its
// result, the same as if the original tool call had run synchronously.
func (cs *ClientSession) TaskResult(ctx context.Context, params *TaskResultParams) (*CallToolResult, error) {
	var res CallToolResult
	if err := cs.call(ctx, methodTaskResult, params, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (cs *ClientSession) handleRequest(ctx context.Context, req *jsonrpc.Request) {
	result, err := cs.dispatch(ctx, req.Method, req.Params)
	if !req.IsCall() {
		return
	}
	resp := &jsonrpc.Response{ID: req.ID}
	if err != nil {
		resp.Error = jsonrpc2.AsError(err)
	} else {
		data, merr := marshalResult(result)
		if merr != nil {
			resp.Error = jsonrpc2.AsError(merr)
		} else {
			resp.Result = data
		}
	}
	_ = cs.conn.Write(ctx, resp)
}

func (cs *ClientSession) dispatch(ctx context.Context, method string, rawParams []byte) (Result, error) {
	var h MethodHandler = cs.dispatchMethod
	cs.client.mu.Lock()
	mw := append([]Middleware(nil), cs.client.receivingMW...)
	cs.client.mu.Unlock()
	addMiddleware(&h, mw)
	req, err := cs.decodeRequest(method, rawParams)
	if err != nil {
		return nil, err
	}
	return h(ctx, method, req)
}

func (cs *ClientSession) dispatchMethod(ctx context.Context, method string, req Request) (Result, error) {
	switch method {
	case methodListRoots:
		cs.client.mu.Lock()
		roots := append([]*Root(nil), cs.client.roots...)
		cs.client.mu.Unlock()
		return &ListRootsResult{Roots: roots}, nil
	case methodCreateMessage:
		if cs.client.opts.CreateMessageHandler == nil {
			return nil, fmt.Errorf("%w: sampling not supported", jsonrpc2.ErrMethodNotFound)
		}
		return cs.client.opts.CreateMessageHandler(ctx, req.(*CreateMessageRequest))
	case methodElicit:
		if cs.client.opts.ElicitationHandler == nil {
			return nil, fmt.Errorf("%w: elicitation not supported", jsonrpc2.ErrMethodNotFound)
		}
		return cs.client.opts.ElicitationHandler(ctx, req.(*ElicitRequest))
	case methodPing:
		return &emptyResult{}, nil
	case notificationToolListChanged:
		if h := cs.client.opts.ToolListChangedHandler; h != nil {
			h(ctx, req.(*ToolListChangedRequest))
		}
		return nil, nil
	case notificationPromptListChanged:
		if h := cs.client.opts.PromptListChangedHandler; h != nil {
			h(ctx, req.(*PromptListChangedRequest))
		}
		return nil, nil
	case notificationResourceListChanged:
		if h := cs.client.opts.ResourceListChangedHandler; h != nil {
			h(ctx, req.(*ResourceListChangedRequest))
		}
		return nil, nil
	case notificationResourceUpdated:
		if h := cs.client.opts.ResourceUpdatedHandler; h != nil {
			h(ctx, req.(*ResourceUpdatedNotificationRequest))
		}
		return nil, nil
	case notificationLoggingMessage:
		if h := cs.client.opts.LoggingMessageHandler; h != nil {
			h(ctx, req.(*LoggingMessageRequest))
		}
		return nil, nil
	case notificationTaskStatus:
		if h := cs.client.opts.TaskStatusChangedHandler; h != nil {
			h(ctx, req.(*TaskStatusNotificationRequest))
		}
		return nil, nil
	case notificationProgress, notificationElicitationComplete:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: %s", jsonrpc2.ErrMethodNotFound, method)
	}
}

// decodeRequest unmarshals rawParams into the Params type expected by
// method, and wraps it as a [Request] bound to this session.
func (cs *ClientSession) decodeRequest(method string, rawParams []byte) (Request, error) {
	newParams, ok := clientParamsConstructors[method]
	if !ok {
		return nil, fmt.Errorf("%w: %s", jsonrpc2.ErrMethodNotFound, method)
	}
	p := newParams()
	if len(rawParams) > 0 {
		if err := internalUnmarshalParams(rawParams, p); err != nil {
			return nil, err
		}
	}
	return wrapClientRequest(cs, p), nil
}

var clientParamsConstructors = map[string]func() Params{
	methodListRoots:                  func() Params { return &ListRootsParams{} },
	methodCreateMessage:              func() Params { return &CreateMessageParams{} },
	methodElicit:                     func() Params { return &ElicitParams{} },
	methodPing:                       func() Params { return &emptyParams{} },
	notificationToolListChanged:      func() Params { return &ToolListChangedParams{} },
	notificationPromptListChanged:    func() Params { return &PromptListChangedParams{} },
	notificationResourceListChanged:  func() Params { return &ResourceListChangedParams{} },
	notificationResourceUpdated:      func() Params { return &ResourceUpdatedNotificationParams{} },
	notificationLoggingMessage:       func() Params { return &LoggingMessageParams{} },
	notificationTaskStatus:           func() Params { return &TaskStatusNotificationParams{} },
	notificationProgress:             func() Params { return &ProgressNotificationParams{} },
	notificationElicitationComplete:  func() Params { return &ElicitationCompleteParams{} },
}

func wrapClientRequest(cs *ClientSession, p Params) Request {
	switch pt := p.(type) {
	case *ListRootsParams:
		return newClientRequest(cs, pt)
	case *CreateMessageParams:
		return newClientRequest(cs, pt)
	case *ElicitParams:
		return newClientRequest(cs, pt)
	case *emptyParams:
		return newClientRequest(cs, pt)
	case *ToolListChangedParams:
		return newClientRequest(cs, pt)
	case *PromptListChangedParams:
		return newClientRequest(cs, pt)
	case *ResourceListChangedParams:
		return newClientRequest(cs, pt)
	case *ResourceUpdatedNotificationParams:
		return newClientRequest(cs, pt)
	case *LoggingMessageParams:
		return newClientRequest(cs, pt)
	case *TaskStatusNotificationParams:
		return newClientRequest(cs, pt)
	case *ProgressNotificationParams:
		return newClientRequest(cs, pt)
	case *ElicitationCompleteParams:
		return newClientRequest(cs, pt)
	default:
		panic(fmt.Sprintf("mcp: unhandled params type %T", p))
	}
}
