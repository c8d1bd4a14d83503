// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package mcp

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"iter"
	"strings"
)

// An event is a single server-sent event: an optional event name, an
// optional ID (used for Last-Event-ID resumption), and a data payload that
// may itself span multiple "data:" lines.
type event struct {
	name string
	id   string
	data []byte
}

// writeEvent writes e to w in the text/event-stream wire format, returning
// the number of bytes written.
func writeEvent(w io.Writer, e event) (int, error) {
	var buf bytes.Buffer
	if e.name != "" {
		fmt.Fprintf(&buf, "event: %s\n", e.name)
	}
	if e.id != "" {
		fmt.Fprintf(&buf, "id: %s\n", e.id)
	}
	for _, line := range bytes.Split(e.data, []byte("\n")) {
		buf.WriteString("data: ")
		buf.Write(line)
		buf.WriteByte('\n')
	}
	buf.WriteByte('\n')
	return w.Write(buf.Bytes())
}

// scanEvents reads r as a text/event-stream body, yielding each event in
// turn along with any error encountered while scanning. Iteration stops
// after the first error (including io.EOF, which is not yielded).
func scanEvents(r io.Reader) iter.Seq2[event, error] {
	return func(yield func(event, error) bool) {
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

		var cur event
		var dataLines []string
		haveEvent := false

		flush := func() (event, bool) {
			if !haveEvent {
				return event{}, false
			}
			cur.data = []byte(strings.Join(dataLines, "\n"))
			e := cur
			cur = event{}
			dataLines = nil
			haveEvent = false
			return e, true
		}

		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case line == "":
				if e, ok := flush(); ok {
					if !yield(e, nil) {
						return
					}
				}
			case strings.HasPrefix(line, "event:"):
				cur.name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
				haveEvent = true
			case strings.HasPrefix(line, "id:"):
				cur.id = strings.TrimSpace(strings.TrimPrefix(line, "id:"))
				haveEvent = true
			case strings.HasPrefix(line, "data:"):
				dataLines = append(dataLines, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
				haveEvent = true
			case strings.HasPrefix(line, ":"):
				// comment; ignore
			}
		}
		if err := scanner.Err(); err != nil {
			yield(event{}, err)
			return
		}
		if e, ok := flush(); ok {
			yield(e, nil)
		}
	}
}
