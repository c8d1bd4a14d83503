// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package jsonrpc2

import "github.com/praxiomlabs/mcpkit-sub000/jsonrpc"

// EncodeMessage and DecodeBatch are thin forwarders to package jsonrpc so
// that transport code can depend on the internal package (which also carries
// the sentinel errors and [StrictUnmarshal]) without a second copy of the
// wire format.
var (
	EncodeMessage = jsonrpc.EncodeMessage
	DecodeBatch   = jsonrpc.DecodeBatch
)

// DecodeMessage decodes a single message with [jsonrpc.DecodeMessage] after
// rejecting input that holds keys differing only in case (such as "name"
// and "Name") at any depth, the same check [StrictUnmarshal] applies.
func DecodeMessage(data []byte) (jsonrpc.Message, error) {
	if err := validateNoDuplicateKeys(data); err != nil {
		return nil, &jsonrpc.Error{Code: jsonrpc.CodeInvalidRequest, Message: err.Error()}
	}
	return jsonrpc.DecodeMessage(data)
}
