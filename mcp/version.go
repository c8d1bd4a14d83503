// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

// Protocol versions supported by this module, oldest first. Versions are
// date strings as defined by the spec; a session negotiates the latest
// version both peers support during initialize.
const (
	protocolVersion20241105 = "2024-11-05"
	protocolVersion20250326 = "2025-03-26"
	protocolVersion20250618 = "2025-06-18"

	// latestProtocolVersion is the version a [Client] and [Server] offer by
	// default, and the version assumed for a session whose peer supports it.
	latestProtocolVersion = protocolVersion20250618
)

// supportedProtocolVersions lists every version this module understands,
// oldest first, used both to validate a peer's request and to pick the
// best common version during negotiation.
var supportedProtocolVersions = []string{
	protocolVersion20241105,
	protocolVersion20250326,
	protocolVersion20250618,
}

func isSupportedProtocolVersion(v string) bool {
	for _, sv := range supportedProtocolVersions {
		if sv == v {
			return true
		}
	}
	return false
}

// negotiateVersion picks the protocol version a server should report in
// its InitializeResult, given the version requested by the client. Per the
// spec, a server that supports the requested version echoes it back;
// otherwise it reports its own latest version and lets the client decide
// whether to proceed.
func negotiateVersion(requested string) string {
	if isSupportedProtocolVersion(requested) {
		return requested
	}
	return latestProtocolVersion
}

// supportsTasks reports whether version v includes the experimental tasks
// capability, introduced after 2025-06-18.
func supportsTasks(v string) bool {
	return v == latestProtocolVersion
}
