// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"fmt"
	"sort"

	"github.com/praxiomlabs/mcpkit-sub000/jsonrpc"
)

// toolSet is the server's registry of tools, keyed by name and ordered
// deterministically for pagination.
type toolSet struct {
	byName map[string]*serverTool
}

func newToolSet() *toolSet {
	return &toolSet{byName: make(map[string]*serverTool)}
}

func (s *toolSet) add(name string, st *serverTool)    { s.byName[name] = st }
func (s *toolSet) remove(name string)                 { delete(s.byName, name) }
func (s *toolSet) len() int                           { return len(s.byName) }
func (s *toolSet) get(name string) (*serverTool, bool) { st, ok := s.byName[name]; return st, ok }

func (s *toolSet) list() []*serverTool {
	out := make([]*serverTool, 0, len(s.byName))
	for _, st := range s.byName {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].tool.Name < out[j].tool.Name })
	return out
}

// featureSet is a generic keyed registry used for prompts, resources, and
// resource templates, all of which are listed in sorted key order for
// stable, cursor-based pagination.
type featureSet[K any, V any] struct {
	byKey map[string]V
}

func newFeatureSet[K any, V any]() *featureSet[K, V] {
	return &featureSet[K, V]{byKey: make(map[string]V)}
}

func (s *featureSet[K, V]) add(key string, v V)    { s.byKey[key] = v }
func (s *featureSet[K, V]) remove(key string)      { delete(s.byKey, key) }
func (s *featureSet[K, V]) len() int               { return len(s.byKey) }
func (s *featureSet[K, V]) get(key string) (V, bool) { v, ok := s.byKey[key]; return v, ok }

func (s *featureSet[K, V]) list() []V {
	keys := make([]string, 0, len(s.byKey))
	for k := range s.byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]V, 0, len(keys))
	for _, k := range keys {
		out = append(out, s.byKey[k])
	}
	return out
}

// paginate slices items starting just after cursor (the key of the last
// item returned on the previous page, as produced by keyFunc), returning
// at most pageSize items and the cursor to resume from, if any.
func paginate[T any](items []T, cursor string, pageSize int, keyFunc func(T) string) (page []T, next string, err error) {
	start := 0
	if cursor != "" {
		found := false
		for i, it := range items {
			if keyFunc(it) == cursor {
				start = i + 1
				found = true
				break
			}
		}
		if !found {
			return nil, "", &jsonrpc.Error{Code: jsonrpc.CodeInvalidParams, Message: "invalid cursor"}
		}
	}
	if start > len(items) {
		start = len(items)
	}
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}
	page = items[start:end]
	if end < len(items) {
		next = keyFunc(items[end-1])
	}
	return page, next, nil
}

// decodeRequest unmarshals rawParams into the Params type expected by
// method, and wraps it as a [Request] bound to this session.
func (ss *ServerSession) decodeRequest(method string, rawParams []byte) (Request, error) {
	newParams, ok := serverParamsConstructors[method]
	if !ok {
		return nil, &jsonrpc.Error{Code: jsonrpc.CodeMethodNotFound, Message: fmt.Sprintf("method not found: %s", method)}
	}
	p := newParams()
	if len(rawParams) > 0 {
		if err := internalUnmarshalParams(rawParams, p); err != nil {
			return nil, err
		}
	}
	return wrapServerRequest(ss, p), nil
}

// serverParamsConstructors maps each server-handled method to a
// constructor for its Params type, so generic dispatch code can decode
// without a type switch keyed on the literal method string more than once.
var serverParamsConstructors = map[string]func() Params{
	methodCallTool:              func() Params { return &CallToolParamsRaw{} },
	methodListTools:             func() Params { return &ListToolsParams{} },
	methodListPrompts:           func() Params { return &ListPromptsParams{} },
	methodGetPrompt:             func() Params { return &GetPromptParams{} },
	methodListResources:         func() Params { return &ListResourcesParams{} },
	methodListResourceTemplates: func() Params { return &ListResourceTemplatesParams{} },
	methodReadResource:          func() Params { return &ReadResourceParams{} },
	methodSubscribe:             func() Params { return &SubscribeParams{} },
	methodUnsubscribe:           func() Params { return &UnsubscribeParams{} },
	methodSetLevel:              func() Params { return &SetLoggingLevelParams{} },
	methodComplete:              func() Params { return &CompleteParams{} },
	methodPing:                  func() Params { return &emptyParams{} },
	methodInitialize:            func() Params { return &InitializeParams{} },
	notificationInitialized:     func() Params { return &InitializedParams{} },
	notificationCancelled:       func() Params { return &CancelledParams{} },
	notificationRootsListChanged: func() Params { return &RootsListChangedParams{} },
	notificationProgress:        func() Params { return &ProgressNotificationParams{} },
	methodListTasks:             func() Params { return &ListTasksParams{} },
	methodGetTask:               func() Params { return &GetTaskParams{} },
	methodCancelTask:            func() Params { return &CancelTaskParams{} },
	methodTaskResult:            func() Params { return &TaskResultParams{} },
}

// emptyParams is used for methods, such as ping, that carry no params.
type emptyParams struct{ Meta }

func (*emptyParams) isParams()                {}
func (x *emptyParams) GetProgressToken() any   { return getProgressToken(x) }
func (x *emptyParams) SetProgressToken(t any)  { setProgressToken(x, t) }

// wrapServerRequest builds the concrete *ServerRequest[P] for p's dynamic
// type, so dispatchMethod's method-specific type assertions succeed.
func wrapServerRequest(ss *ServerSession, p Params) Request {
	switch pt := p.(type) {
	case *CallToolParamsRaw:
		return newServerRequest(ss, pt)
	case *ListToolsParams:
		return newServerRequest(ss, pt)
	case *ListPromptsParams:
		return newServerRequest(ss, pt)
	case *GetPromptParams:
		return newServerRequest(ss, pt)
	case *ListResourcesParams:
		return newServerRequest(ss, pt)
	case *ListResourceTemplatesParams:
		return newServerRequest(ss, pt)
	case *ReadResourceParams:
		return newServerRequest(ss, pt)
	case *SubscribeParams:
		return newServerRequest(ss, pt)
	case *UnsubscribeParams:
		return newServerRequest(ss, pt)
	case *SetLoggingLevelParams:
		return newServerRequest(ss, pt)
	case *CompleteParams:
		return newServerRequest(ss, pt)
	case *emptyParams:
		return newServerRequest(ss, pt)
	case *InitializeParams:
		return newServerRequest(ss, pt)
	case *InitializedParams:
		return newServerRequest(ss, pt)
	case *CancelledParams:
		return newServerRequest(ss, pt)
	case *RootsListChangedParams:
		return newServerRequest(ss, pt)
	case *ProgressNotificationParams:
		return newServerRequest(ss, pt)
	case *ListTasksParams:
		return newServerRequest(ss, pt)
	case *GetTaskParams:
		return newServerRequest(ss, pt)
	case *CancelTaskParams:
		return newServerRequest(ss, pt)
	case *TaskResultParams:
		return newServerRequest(ss, pt)
	default:
		panic(fmt.Sprintf("mcp: unhandled params type %T", p))
	}
}
