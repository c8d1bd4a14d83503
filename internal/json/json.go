// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package json provides internal JSON utilities.

package json

import (
	"bytes"
	"fmt"

	"github.com/segmentio/encoding/json"
)

// Unmarshal decodes data into v using github.com/segmentio/encoding/json
// with the DontMatchCaseInsensitiveStructFields flag, so that (unlike
// encoding/json) struct field names are matched case-sensitively rather
// than falling back to a case-insensitive match. The wire types in this
// module rely on that behavior to avoid silently accepting
// differently-cased JSON keys as a match for a tagged field.
func Unmarshal(data []byte, v any) error {
	rest, err := json.Parse(data, v, json.DontMatchCaseInsensitiveStructFields)
	if err != nil {
		return err
	}
	if rest = bytes.TrimSpace(rest); len(rest) != 0 {
		return fmt.Errorf("invalid character %q after top-level value", rest[0])
	}
	return nil
}
