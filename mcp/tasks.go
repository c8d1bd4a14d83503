// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

// This file holds the task-augmented execution types: the data the
// tasks/list, tasks/get, tasks/cancel, and tasks/result methods exchange, and
// the TaskParams field that a tools/call request uses to opt in.

package mcp

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

const (
	TaskStatusWorking    TaskStatus = "working"
	TaskStatusInputRequired TaskStatus = "input_required"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// Task describes the current state of a task created by a task-augmented
// request.
type Task struct {
	// This property is reserved by the protocol to allow clients and servers to
	// attach additional metadata to their responses.
	Meta `json:"_meta,omitempty"`
	// TaskID uniquely identifies the task within the session that created it.
	TaskID string `json:"taskId"`
	// Status is the task's current lifecycle state.
	Status TaskStatus `json:"status"`
	// StatusMessage is a human-readable description of the current status.
	StatusMessage string `json:"statusMessage,omitempty"`
	// CreatedAt is an ISO 8601 / RFC 3339 timestamp recording when the task
	// was created.
	CreatedAt string `json:"createdAt"`
	// LastUpdatedAt is an ISO 8601 / RFC 3339 timestamp recording the most
	// recent status transition.
	LastUpdatedAt string `json:"lastUpdatedAt"`
	// TTL is the number of milliseconds the task's result remains
	// retrievable after completion. A nil TTL means no expiry.
	TTL *int64 `json:"ttl"`
}

func (*Task) isResult() {}

// TaskParams is embedded in a task-augmented request (currently only
// CallToolParams and CallToolParamsRaw) to request asynchronous execution.
type TaskParams struct {
	// TTL requests that the task's result remain retrievable for this many
	// milliseconds after completion. Servers may clamp or ignore this value.
	TTL *int64 `json:"ttl,omitempty"`
}

// CreateTaskResult is returned in place of a request's normal result when
// the request was accepted for asynchronous execution as a task.
type CreateTaskResult struct {
	// This property is reserved by the protocol to allow clients and servers to
	// attach additional metadata to their responses.
	Meta `json:"_meta,omitempty"`
	// Task is the newly created task.
	Task *Task `json:"task"`
}

func (*CreateTaskResult) isResult() {}

// GetTaskParams carries the arguments to tasks/get.
type GetTaskParams struct {
	// This property is reserved by the protocol to allow clients and servers to
	// attach additional metadata to their responses.
	Meta `json:"_meta,omitempty"`
	// TaskID identifies the task to retrieve.
	TaskID string `json:"taskId"`
}

func (*GetTaskParams) isParams()                {}
func (x *GetTaskParams) GetProgressToken() any  { return getProgressToken(x) }
func (x *GetTaskParams) SetProgressToken(t any) { setProgressToken(x, t) }

// GetTaskResult is the response to tasks/get. It has the same shape as
// [Task]; the distinct name keeps the wire vocabulary mapped one type per
// method the way the rest of the protocol types are.
type GetTaskResult Task

func (*GetTaskResult) isResult() {}

// ListTasksParams carries the arguments to tasks/list.
type ListTasksParams struct {
	// This property is reserved by the protocol to allow clients and servers to
	// attach additional metadata to their responses.
	Meta `json:"_meta,omitempty"`
	// Cursor is an opaque pagination cursor returned by a previous call to
	// tasks/list, or empty to start from the beginning.
	Cursor string `json:"cursor,omitempty"`
}

func (*ListTasksParams) isParams()                {}
func (x *ListTasksParams) GetProgressToken() any  { return getProgressToken(x) }
func (x *ListTasksParams) SetProgressToken(t any) { setProgressToken(x, t) }

// ListTasksResult is the response to tasks/list.
type ListTasksResult struct {
	// This property is reserved by the protocol to allow clients and servers to
	// attach additional metadata to their responses.
	Meta `json:"_meta,omitempty"`
	// Tasks is the page of tasks belonging to the requesting session.
	Tasks []*Task `json:"tasks"`
	// NextCursor, if non-empty, can be passed back to tasks/list to fetch
	// the next page.
	NextCursor string `json:"nextCursor,omitempty"`
}

func (*ListTasksResult) isResult() {}

// CancelTaskParams carries the arguments to tasks/cancel.
type CancelTaskParams struct {
	// This property is reserved by the protocol to allow clients and servers to
	// attach additional metadata to their responses.
	Meta `json:"_meta,omitempty"`
	// TaskID identifies the task to cancel.
	TaskID string `json:"taskId"`
}

func (*CancelTaskParams) isParams()                {}
func (x *CancelTaskParams) GetProgressToken() any  { return getProgressToken(x) }
func (x *CancelTaskParams) SetProgressToken(t any) { setProgressToken(x, t) }

// CancelTaskResult is the response to tasks/cancel. It has the same shape
// as [Task], reflecting the task's state immediately after cancellation.
type CancelTaskResult Task

func (*CancelTaskResult) isResult() {}

// TaskResultParams carries the arguments to tasks/result, a supplemental
// method (not part of the upstream task schema) that blocks until a task
// reaches a terminal state and returns its underlying call result.
type TaskResultParams struct {
	// This property is reserved by the protocol to allow clients and servers to
	// attach additional metadata to their responses.
	Meta `json:"_meta,omitempty"`
	// TaskID identifies the task whose result is being awaited.
	TaskID string `json:"taskId"`
}

func (*TaskResultParams) isParams()                {}
func (x *TaskResultParams) GetProgressToken() any  { return getProgressToken(x) }
func (x *TaskResultParams) SetProgressToken(t any) { setProgressToken(x, t) }

// TaskStatusNotificationParams is sent as a notifications/tasks/status
// notification whenever a task transitions state. It has the same shape as
// [Task].
type TaskStatusNotificationParams Task

func (*TaskStatusNotificationParams) isParams()                {}
func (x *TaskStatusNotificationParams) GetProgressToken() any  { return getProgressToken(x) }
func (x *TaskStatusNotificationParams) SetProgressToken(t any) { setProgressToken(x, t) }
