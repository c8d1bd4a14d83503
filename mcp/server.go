// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/yosida95/uritemplate/v3"

	"github.com/praxiomlabs/mcpkit-sub000/internal/jsonrpc2"
	"github.com/praxiomlabs/mcpkit-sub000/jsonrpc"
)

// A Server is the MCP entry point for a process that hosts tools,
// resources, and prompts. A single Server can be [Server.Connect]ed to
// many peers, one [ServerSession] per connection.
type Server struct {
	impl *Implementation
	opts ServerOptions

	mu             sync.Mutex
	tools          *toolSet
	prompts        *featureSet[*Prompt, promptEntry]
	resources      *featureSet[*Resource, resourceEntry]
	resourceTmpls  *featureSet[*ResourceTemplate, resourceTemplateEntry]
	sessions       map[*ServerSession]struct{}
	subscriptions  map[string]map[*ServerSession]struct{}
	sendingMW      []Middleware
	receivingMW    []Middleware
	completionHandler CompletionHandler

	tasks *serverTasks
}

// ServerOptions configures the behavior of a [Server].
type ServerOptions struct {
	// Instructions are advertised to clients in the initialize response, to
	// help an LLM understand how to use the server's tools, resources, and
	// prompts.
	Instructions string
	// PageSize bounds the number of items returned in a single page by
	// every paginated list method. If zero, a reasonable default is used.
	PageSize int
	// Capabilities overrides the capability set computed from the features
	// actually registered. A nil value leaves capabilities auto-detected.
	Capabilities *ServerCapabilities
	// SchemaCache holds a schema cache; NewServer installs NewSchemaCache()
	// when it is nil. Tool registration does not consult it.
	SchemaCache *schemaCache
	// SessionStateStore holds a per-session state store. Neither the Server
	// nor StreamableHTTPHandler reads or writes it.
	SessionStateStore ServerSessionStateStore
	// GetSessionID holds a session ID generator. It is not consulted;
	// StreamableHTTPHandler assigns session IDs with its own random generator.
	GetSessionID func() string
}

const defaultPageSize = 1000

func (o *ServerOptions) pageSize() int {
	if o.PageSize > 0 {
		return o.PageSize
	}
	return defaultPageSize
}

// NewServer creates a new MCP server with the given implementation
// metadata. The server has no tools, prompts, or resources until they are
// registered with [Server.AddTool] and friends.
func NewServer(impl *Implementation, opts *ServerOptions) *Server {
	s := &Server{
		impl:          impl,
		tools:         newToolSet(),
		prompts:       newFeatureSet[*Prompt, promptEntry](),
		resources:     newFeatureSet[*Resource, resourceEntry](),
		resourceTmpls: newFeatureSet[*ResourceTemplate, resourceTemplateEntry](),
		sessions:      make(map[*ServerSession]struct{}),
		subscriptions: make(map[string]map[*ServerSession]struct{}),
		tasks:         newServerTasks(),
	}
	if opts != nil {
		s.opts = *opts
	}
	if s.opts.SchemaCache == nil {
		s.opts.SchemaCache = NewSchemaCache()
	}
	return s
}

// AddReceivingMiddleware wraps every incoming request handled by sessions
// created from this server with mw, outermost first.
func (s *Server) AddReceivingMiddleware(mw ...Middleware) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.receivingMW = append(s.receivingMW, mw...)
}

// AddSendingMiddleware wraps every outgoing server-initiated request (such
// as sampling/createMessage or roots/list) with mw, outermost first.
func (s *Server) AddSendingMiddleware(mw ...Middleware) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sendingMW = append(s.sendingMW, mw...)
}

// AddTool registers a tool with the server, to be called with the given
// raw handler. Use the generic [AddTool] function for typed arguments and
// results.
func (s *Server) AddTool(t *Tool, h ToolHandler) {
	st, err := newServerTool(t, h)
	if err != nil {
		panic(fmt.Sprintf("mcp: AddTool %q: %v", t.Name, err))
	}
	s.mu.Lock()
	s.tools.add(t.Name, st)
	s.mu.Unlock()
	s.notifyToolsChanged()
}

// AddTool registers a tool on s whose input and output are the Go types In
// and Out, inferring JSON schemas for both from their struct definitions
// (overridden by any schema already set on t).
func AddTool[In, Out any](s *Server, t *Tool, h TypedToolHandler[In, Out]) {
	st, err := newTypedServerTool(t, h)
	if err != nil {
		panic(fmt.Sprintf("mcp: AddTool %q: %v", t.Name, err))
	}
	s.mu.Lock()
	s.tools.add(t.Name, st)
	s.mu.Unlock()
	s.notifyToolsChanged()
}

// RemoveTool removes the named tools from the server, if present.
func (s *Server) RemoveTool(names ...string) {
	s.mu.Lock()
	for _, n := range names {
		s.tools.remove(n)
	}
	s.mu.Unlock()
	s.notifyToolsChanged()
}

func (s *Server) notifyToolsChanged() {
	s.forEachSession(func(ss *ServerSession) {
		_ = ss.notify(context.Background(), notificationToolListChanged, &ToolListChangedParams{})
	})
}

// A ResourceHandler reads the contents of a single resource named by the
// request's URI.
type ResourceHandler func(ctx context.Context, req *ReadResourceRequest) (*ReadResourceResult, error)

type resourceEntry struct {
	resource *Resource
	handler  ResourceHandler
}

// AddResource registers a concrete resource (one with a fixed URI) along
// with the handler that serves its contents.
func (s *Server) AddResource(r *Resource, h ResourceHandler) {
	s.mu.Lock()
	s.resources.add(r.URI, resourceEntry{resource: r, handler: h})
	s.mu.Unlock()
	s.notifyResourcesChanged()
}

// RemoveResource removes the named resources from the server, if present.
func (s *Server) RemoveResource(uris ...string) {
	s.mu.Lock()
	for _, u := range uris {
		s.resources.remove(u)
	}
	s.mu.Unlock()
	s.notifyResourcesChanged()
}

type resourceTemplateEntry struct {
	template *ResourceTemplate
	expanded *uritemplate.Template
	handler  ResourceHandler
}

// AddResourceTemplate registers a resource template (a URI template
// matching a family of resources) along with the handler that serves a
// matching URI's contents.
func (s *Server) AddResourceTemplate(t *ResourceTemplate, h ResourceHandler) {
	tmpl, err := uritemplate.New(t.URITemplate)
	if err != nil {
		panic(fmt.Sprintf("mcp: AddResourceTemplate %q: %v", t.URITemplate, err))
	}
	s.mu.Lock()
	s.resourceTmpls.add(t.URITemplate, resourceTemplateEntry{template: t, expanded: tmpl, handler: h})
	s.mu.Unlock()
	s.notifyResourcesChanged()
}

// RemoveResourceTemplate removes the named resource templates (by their
// URI template string) from the server, if present.
func (s *Server) RemoveResourceTemplate(uriTemplates ...string) {
	s.mu.Lock()
	for _, u := range uriTemplates {
		s.resourceTmpls.remove(u)
	}
	s.mu.Unlock()
	s.notifyResourcesChanged()
}

func (s *Server) notifyResourcesChanged() {
	s.forEachSession(func(ss *ServerSession) {
		_ = ss.notify(context.Background(), notificationResourceListChanged, &ResourceListChangedParams{})
	})
}

// A PromptHandler returns the rendered messages for a prompt, given the
// arguments supplied in the request.
type PromptHandler func(ctx context.Context, req *GetPromptRequest) (*GetPromptResult, error)

type promptEntry struct {
	prompt  *Prompt
	handler PromptHandler
}

// AddPrompt registers a prompt with the server.
func (s *Server) AddPrompt(p *Prompt, h PromptHandler) {
	s.mu.Lock()
	s.prompts.add(p.Name, promptEntry{prompt: p, handler: h})
	s.mu.Unlock()
	s.notifyPromptsChanged()
}

// RemovePrompt removes the named prompts from the server, if present.
func (s *Server) RemovePrompt(names ...string) {
	s.mu.Lock()
	for _, n := range names {
		s.prompts.remove(n)
	}
	s.mu.Unlock()
	s.notifyPromptsChanged()
}

func (s *Server) notifyPromptsChanged() {
	s.forEachSession(func(ss *ServerSession) {
		_ = ss.notify(context.Background(), notificationPromptListChanged, &PromptListChangedParams{})
	})
}

func (s *Server) forEachSession(f func(*ServerSession)) {
	s.mu.Lock()
	sessions := make([]*ServerSession, 0, len(s.sessions))
	for ss := range s.sessions {
		sessions = append(sessions, ss)
	}
	s.mu.Unlock()
	for _, ss := range sessions {
		f(ss)
	}
}

// capabilities computes the capability set this server advertises during
// initialize: an explicit override from [ServerOptions.Capabilities], if
// given, else a set derived from the features actually registered.
func (s *Server) capabilities() *ServerCapabilities {
	if s.opts.Capabilities != nil {
		return s.opts.Capabilities.clone()
	}
	caps := &ServerCapabilities{Logging: &LoggingCapabilities{}}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tools.len() > 0 {
		caps.Tools = &ToolCapabilities{ListChanged: true}
	}
	if s.prompts.len() > 0 {
		caps.Prompts = &PromptCapabilities{ListChanged: true}
	}
	if s.resources.len() > 0 || s.resourceTmpls.len() > 0 {
		caps.Resources = &ResourceCapabilities{ListChanged: true, Subscribe: true}
	}
	return caps
}

// Connect starts a new [ServerSession] for this server over transport. The
// returned session runs until the transport or context is closed, or until
// [ServerSession.Close] is called.
func (s *Server) Connect(ctx context.Context, t Transport, opts *ServerSessionOptions) (*ServerSession, error) {
	conn, err := t.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("connecting transport: %w", err)
	}
	ss := &ServerSession{
		server: s,
		conn:   conn,
		state:  stateConnected,
		pending: make(map[jsonrpc.ID]chan *jsonrpc.Response),
		done:   make(chan struct{}),
	}
	if opts != nil {
		ss.opts = *opts
	}
	s.mu.Lock()
	s.sessions[ss] = struct{}{}
	s.mu.Unlock()

	ss.wg.Add(1)
	go ss.readLoop(ctx)

	return ss, nil
}

// Run connects to transport and blocks until the resulting session ends,
// returning any error encountered while serving it. It is a convenience
// wrapper for the common case of a server handling exactly one connection
// for its entire lifetime (for example, a stdio server).
func (s *Server) Run(ctx context.Context, t Transport) error {
	ss, err := s.Connect(ctx, t, nil)
	if err != nil {
		return err
	}
	return ss.Wait()
}

// ServerSessionOptions configures a single [ServerSession].
type ServerSessionOptions struct {
	// State, if non-nil, resumes a previously persisted session instead of
	// requiring the client to initialize from scratch.
	State *ServerSessionState
}

// sessionState is the lifecycle typestate of a session, following the
// spec's Disconnected -> Connected -> Initializing -> Ready -> Closing ->
// Disconnected progression.
type sessionState int

const (
	stateConnected sessionState = iota
	stateInitializing
	stateReady
	stateClosing
	stateDisconnected
)

// A ServerSession is a single logical connection between a [Server] and
// one client, from the server's point of view.
type ServerSession struct {
	server *Server
	conn   Connection
	opts   ServerSessionOptions

	mu              sync.Mutex
	state           sessionState
	initParams      *InitializeParams
	protocolVersion string
	logLevel        LoggingLevel
	nextID          int64
	pending         map[jsonrpc.ID]chan *jsonrpc.Response

	wg       sync.WaitGroup
	done     chan struct{}
	closeErr error
}

func (ss *ServerSession) isSession() {}

// ID identifies the session for logging and for task and subscription
// bookkeeping. It is stable for the lifetime of the connection.
func (ss *ServerSession) ID() string {
	return fmt.Sprintf("%p", ss)
}

func (ss *ServerSession) setState(st sessionState) {
	ss.mu.Lock()
	ss.state = st
	ss.mu.Unlock()
}

func (ss *ServerSession) getState() sessionState {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return ss.state
}

// readLoop is the single long-lived task that owns the connection: every
// inbound message, whether a request, a response to a server-initiated
// request, or a notification, is decoded and routed here.
func (ss *ServerSession) readLoop(ctx context.Context) {
	defer ss.wg.Done()
	defer ss.shutdown(nil)
	for {
		msg, err := ss.conn.Read(ctx)
		if err != nil {
			ss.shutdown(err)
			return
		}
		switch m := msg.(type) {
		case *jsonrpc.Request:
			go ss.handleRequest(ctx, m)
		case *jsonrpc.Response:
			ss.mu.Lock()
			ch, ok := ss.pending[m.ID]
			if ok {
				delete(ss.pending, m.ID)
			}
			ss.mu.Unlock()
			if ok {
				ch <- m
			}
		}
	}
}

func (ss *ServerSession) shutdown(err error) {
	ss.mu.Lock()
	if ss.state == stateDisconnected {
		ss.mu.Unlock()
		return
	}
	ss.state = stateDisconnected
	ss.closeErr = err
	pending := ss.pending
	ss.pending = nil
	ss.mu.Unlock()

	for _, ch := range pending {
		close(ch)
	}
	ss.server.mu.Lock()
	delete(ss.server.sessions, ss)
	ss.server.mu.Unlock()
	close(ss.done)
}

// Wait blocks until the session's connection is closed, returning the
// error (if any) that caused it to close.
func (ss *ServerSession) Wait() error {
	ss.wg.Wait()
	return ss.closeErr
}

// Close terminates the session, closing its underlying connection.
func (ss *ServerSession) Close() error {
	err := ss.conn.Close()
	ss.shutdown(err)
	return err
}

func (ss *ServerSession) handleRequest(ctx context.Context, req *jsonrpc.Request) {
	if req.IsCall() {
		ctx = context.WithValue(ctx, idContextKey{}, req.ID)
	}
	result, err := ss.dispatch(ctx, req.Method, req.Params)
	if !req.IsCall() {
		return // notification: no response expected
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
	_ = ss.conn.Write(ctx, resp)
}

// notify sends a one-way notification to the client.
func (ss *ServerSession) notify(ctx context.Context, method string, params Params) error {
	data, err := marshalResult(params)
	if err != nil {
		return err
	}
	return ss.conn.Write(ctx, &jsonrpc.Request{Method: method, Params: data})
}

// NotifyProgress sends a notifications/progress message to the client,
// used by [ServerRequest.Progress].
func (ss *ServerSession) NotifyProgress(ctx context.Context, params *ProgressNotificationParams) error {
	return ss.notify(ctx, notificationProgress, params)
}

// call issues a server-initiated request to the client and waits for its
// response.
func (ss *ServerSession) call(ctx context.Context, method string, params Params, result Result) error {
	ss.mu.Lock()
	if ss.pending == nil {
		ss.mu.Unlock()
		return ErrConnectionClosed
	}
	ss.nextID++
	id := jsonrpc.Int64ID(ss.nextID)
	ch := make(chan *jsonrpc.Response, 1)
	ss.pending[id] = ch
	ss.mu.Unlock()

	data, err := marshalResult(params)
	if err != nil {
		return err
	}
	if err := ss.conn.Write(ctx, &jsonrpc.Request{ID: id, Method: method, Params: data}); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-ss.done:
		return ErrConnectionClosed
	case resp, ok := <-ch:
		if !ok {
			return ErrConnectionClosed
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

// ListRoots asks the client to list the roots it exposes.
func (ss *ServerSession) ListRoots(ctx context.Context, params *ListRootsParams) (*ListRootsResult, error) {
	var res ListRootsResult
	if err := ss.call(ctx, methodListRoots, params, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// CreateMessage asks the client to sample from an LLM on the server's
// behalf.
func (ss *ServerSession) CreateMessage(ctx context.Context, params *CreateMessageParams) (*CreateMessageResult, error) {
	var res CreateMessageResult
	if err := ss.call(ctx, methodCreateMessage, params, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Elicit asks the client to gather additional information from the user.
func (ss *ServerSession) Elicit(ctx context.Context, params *ElicitParams) (*ElicitResult, error) {
	var res ElicitResult
	if err := ss.call(ctx, methodElicit, params, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// dispatch routes an inbound method call to its handler, applying the
// server's receiving middleware chain.
func (ss *ServerSession) dispatch(ctx context.Context, method string, rawParams []byte) (Result, error) {
	var h MethodHandler = ss.dispatchMethod
	ss.server.mu.Lock()
	mw := append([]Middleware(nil), ss.server.receivingMW...)
	ss.server.mu.Unlock()
	addMiddleware(&h, mw)
	req, err := ss.decodeRequest(method, rawParams)
	if err != nil {
		return nil, err
	}
	return h(ctx, method, req)
}

func (ss *ServerSession) dispatchMethod(ctx context.Context, method string, req Request) (Result, error) {
	if err := ss.checkReady(method); err != nil {
		return nil, err
	}
	switch method {
	case methodInitialize:
		return ss.initialize(req.(*InitializeRequestServer))
	case methodCallTool:
		return ss.server.callToolAny(ctx, req.(*CallToolRequest))
	case methodListTools:
		return ss.listTools(req.(*ListToolsRequest))
	case methodListPrompts:
		return ss.listPrompts(req.(*ListPromptsRequest))
	case methodGetPrompt:
		return ss.getPrompt(ctx, req.(*GetPromptRequest))
	case methodListResources:
		return ss.listResources(req.(*ListResourcesRequest))
	case methodListResourceTemplates:
		return ss.listResourceTemplates(req.(*ListResourceTemplatesRequest))
	case methodReadResource:
		return ss.readResource(ctx, req.(*ReadResourceRequest))
	case methodSubscribe:
		return ss.subscribe(req.(*SubscribeRequest))
	case methodUnsubscribe:
		return ss.unsubscribe(req.(*UnsubscribeRequest))
	case methodSetLevel:
		return ss.setLevel(req.(*ServerRequest[*SetLoggingLevelParams]))
	case methodComplete:
		return ss.complete(ctx, req.(*CompleteRequest))
	case methodPing:
		return &emptyResult{}, nil
	case methodListTasks:
		return ss.server.listTasks(ctx, req.(*ListTasksRequest))
	case methodGetTask:
		return ss.server.getTask(ctx, req.(*GetTaskRequest))
	case methodCancelTask:
		return ss.server.cancelTask(ctx, req.(*CancelTaskRequest))
	case methodTaskResult:
		return ss.server.taskResult(ctx, req.(*TaskResultRequest))
	case notificationInitialized:
		ss.setState(stateReady)
		return nil, nil
	case notificationCancelled, notificationRootsListChanged, notificationProgress:
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: %s", jsonrpc2.ErrMethodNotFound, method)
	}
}

// initialize handles the initialize request that begins every session:
// it negotiates a protocol version, records the client's capabilities,
// and returns the server's own capabilities and identity.
func (ss *ServerSession) initialize(req *InitializeRequestServer) (*InitializeResult, error) {
	ss.mu.Lock()
	if ss.state != stateConnected {
		ss.mu.Unlock()
		return nil, fmt.Errorf("%w: session already initialized", jsonrpc2.ErrInvalidRequest)
	}
	ss.state = stateInitializing
	ss.initParams = req.Params
	ss.protocolVersion = negotiateVersion(req.Params.ProtocolVersion)
	ss.mu.Unlock()

	if !isSupportedProtocolVersion(req.Params.ProtocolVersion) && req.Params.ProtocolVersion != "" {
		// Still negotiate rather than fail outright, per spec guidance: report
		// our own latest version and let the client decide whether to proceed.
	}

	return &InitializeResult{
		Capabilities:    ss.server.capabilities(),
		Instructions:    ss.server.opts.Instructions,
		ProtocolVersion: ss.protocolVersion,
		ServerInfo:      ss.server.impl,
	}, nil
}

// checkReady enforces the protocol's capability-gating invariant: every
// method but initialize, notifications/initialized and ping requires a
// Ready session.
func (ss *ServerSession) checkReady(method string) error {
	if method == methodInitialize || method == notificationInitialized || method == methodPing {
		return nil
	}
	if ss.getState() != stateReady {
		return &notReadyError{state: strconv.Itoa(int(ss.getState()))}
	}
	return nil
}

// emptyResult is returned for methods (such as ping) with no meaningful
// result payload.
type emptyResult struct{}

func (*emptyResult) isResult() {}

func (ss *ServerSession) listTools(req *ListToolsRequest) (*ListToolsResult, error) {
	ss.server.mu.Lock()
	defer ss.server.mu.Unlock()
	all := ss.server.tools.list()
	page, next, err := paginate(all, req.Params.Cursor, ss.server.opts.pageSize(), func(st *serverTool) string { return st.tool.Name })
	if err != nil {
		return nil, err
	}
	out := &ListToolsResult{NextCursor: next, Tools: []*Tool{}}
	for _, st := range page {
		out.Tools = append(out.Tools, st.tool)
	}
	return out, nil
}

func (ss *ServerSession) listPrompts(req *ListPromptsRequest) (*ListPromptsResult, error) {
	ss.server.mu.Lock()
	defer ss.server.mu.Unlock()
	all := ss.server.prompts.list()
	page, next, err := paginate(all, req.Params.Cursor, ss.server.opts.pageSize(), func(e promptEntry) string { return e.prompt.Name })
	if err != nil {
		return nil, err
	}
	out := &ListPromptsResult{NextCursor: next, Prompts: []*Prompt{}}
	for _, e := range page {
		out.Prompts = append(out.Prompts, e.prompt)
	}
	return out, nil
}

func (ss *ServerSession) getPrompt(ctx context.Context, req *GetPromptRequest) (*GetPromptResult, error) {
	ss.server.mu.Lock()
	e, ok := ss.server.prompts.get(req.Params.Name)
	ss.server.mu.Unlock()
	if !ok {
		return nil, &jsonrpc.Error{Code: jsonrpc.CodeInvalidParams, Message: fmt.Sprintf("unknown prompt %q", req.Params.Name)}
	}
	return e.handler(ctx, req)
}

func (ss *ServerSession) listResources(req *ListResourcesRequest) (*ListResourcesResult, error) {
	ss.server.mu.Lock()
	defer ss.server.mu.Unlock()
	all := ss.server.resources.list()
	page, next, err := paginate(all, req.Params.Cursor, ss.server.opts.pageSize(), func(e resourceEntry) string { return e.resource.URI })
	if err != nil {
		return nil, err
	}
	out := &ListResourcesResult{NextCursor: next, Resources: []*Resource{}}
	for _, e := range page {
		out.Resources = append(out.Resources, e.resource)
	}
	return out, nil
}

func (ss *ServerSession) listResourceTemplates(req *ListResourceTemplatesRequest) (*ListResourceTemplatesResult, error) {
	ss.server.mu.Lock()
	defer ss.server.mu.Unlock()
	all := ss.server.resourceTmpls.list()
	page, next, err := paginate(all, req.Params.Cursor, ss.server.opts.pageSize(), func(e resourceTemplateEntry) string { return e.template.URITemplate })
	if err != nil {
		return nil, err
	}
	out := &ListResourceTemplatesResult{NextCursor: next, ResourceTemplates: []*ResourceTemplate{}}
	for _, e := range page {
		out.ResourceTemplates = append(out.ResourceTemplates, e.template)
	}
	return out, nil
}

func (ss *ServerSession) readResource(ctx context.Context, req *ReadResourceRequest) (*ReadResourceResult, error) {
	ss.server.mu.Lock()
	e, ok := ss.server.resources.get(req.Params.URI)
	ss.server.mu.Unlock()
	if ok {
		return e.handler(ctx, req)
	}

	ss.server.mu.Lock()
	tmpls := ss.server.resourceTmpls.list()
	ss.server.mu.Unlock()
	for _, t := range tmpls {
		if t.expanded.Regexp().MatchString(req.Params.URI) {
			return t.handler(ctx, req)
		}
	}
	return nil, &ResourceNotFoundError{URI: req.Params.URI}
}

func (ss *ServerSession) subscribe(req *SubscribeRequest) (Result, error) {
	ss.server.mu.Lock()
	defer ss.server.mu.Unlock()
	subs := ss.server.subscriptions[req.Params.URI]
	if subs == nil {
		subs = make(map[*ServerSession]struct{})
		ss.server.subscriptions[req.Params.URI] = subs
	}
	subs[ss] = struct{}{}
	return &emptyResult{}, nil
}

func (ss *ServerSession) unsubscribe(req *UnsubscribeRequest) (Result, error) {
	ss.server.mu.Lock()
	defer ss.server.mu.Unlock()
	delete(ss.server.subscriptions[req.Params.URI], ss)
	return &emptyResult{}, nil
}

// ResourceUpdated notifies every client subscribed to uri that its
// contents may have changed.
func (s *Server) ResourceUpdated(ctx context.Context, uri string) {
	s.mu.Lock()
	subs := s.subscriptions[uri]
	sessions := make([]*ServerSession, 0, len(subs))
	for ss := range subs {
		sessions = append(sessions, ss)
	}
	s.mu.Unlock()
	for _, ss := range sessions {
		_ = ss.notify(ctx, notificationResourceUpdated, &ResourceUpdatedNotificationParams{URI: uri})
	}
}

func (ss *ServerSession) setLevel(req *ServerRequest[*SetLoggingLevelParams]) (Result, error) {
	ss.mu.Lock()
	ss.logLevel = req.Params.Level
	ss.mu.Unlock()
	return &emptyResult{}, nil
}

// Log sends a notifications/message log entry to the client if level meets
// or exceeds the level most recently requested via logging/setLevel.
// Nothing is sent before the client has set a level.
func (ss *ServerSession) Log(ctx context.Context, params *LoggingMessageParams) error {
	ss.mu.Lock()
	minLevel := ss.logLevel
	ss.mu.Unlock()
	rank := map[LoggingLevel]int{"debug": 1, "info": 2, "notice": 3, "warning": 4, "error": 5, "critical": 6, "alert": 7, "emergency": 8}
	if minLevel == "" || rank[params.Level] < rank[minLevel] {
		return nil
	}
	return ss.notify(ctx, notificationLoggingMessage, params)
}

// CompletionHandler computes completion suggestions for a prompt or
// resource template argument.
type CompletionHandler func(ctx context.Context, req *CompleteRequest) (*CompleteResult, error)

func (ss *ServerSession) complete(ctx context.Context, req *CompleteRequest) (*CompleteResult, error) {
	if ss.server.completionHandler == nil {
		return nil, fmt.Errorf("%w: completion/complete", jsonrpc2.ErrMethodNotFound)
	}
	return ss.server.completionHandler(ctx, req)
}

// SetCompletionHandler installs the handler used to serve
// completion/complete requests.
func (s *Server) SetCompletionHandler(h CompletionHandler) {
	s.mu.Lock()
	s.completionHandler = h
	s.mu.Unlock()
}
