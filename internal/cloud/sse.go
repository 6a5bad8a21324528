// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"iter"
	"net/http"
)

// MaxEventSize bounds a single SSE line.
const MaxEventSize = 1024 * 1024

var doneMarker = []byte("[DONE]")

// Event is one Server-Sent Event.
type Event struct {
	Type string
	Data []byte
}

// SSEReader parses Server-Sent Events from a stream.
type SSEReader struct {
	scanner *bufio.Scanner
}

// NewSSEReader creates a reader over r.
func NewSSEReader(r io.Reader) *SSEReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), MaxEventSize)
	return &SSEReader{scanner: sc}
}

// ReadEvent returns the next event with data. Comments and id:/retry:
// fields are skipped. Returns io.EOF when the stream ends.
func (s *SSEReader) ReadEvent() (Event, error) {
	var ev Event
	var data [][]byte

	for s.scanner.Scan() {
		line := bytes.TrimRight(s.scanner.Bytes(), "\r")

		// A blank line terminates the event.
		if len(line) == 0 {
			if len(data) > 0 {
				ev.Data = bytes.Join(data, []byte("\n"))
				return ev, nil
			}
			ev.Type = ""
			continue
		}

		switch {
		case bytes.HasPrefix(line, []byte("event:")):
			ev.Type = string(bytes.TrimSpace(line[len("event:"):]))
		case bytes.HasPrefix(line, []byte("data:")):
			payload := line[len("data:"):]
			if len(payload) > 0 && payload[0] == ' ' {
				payload = payload[1:]
			}
			data = append(data, append([]byte(nil), payload...))
		}
	}

	if err := s.scanner.Err(); err != nil {
		return Event{}, err
	}
	if len(data) > 0 {
		ev.Data = bytes.Join(data, []byte("\n"))
		return ev, nil
	}
	return Event{}, io.EOF
}

// Events yields the events of a streaming response and closes its body when
// iteration ends. An OpenAI-style "[DONE]" frame ends the sequence.
func Events(resp *http.Response) iter.Seq2[Event, error] {
	return func(yield func(Event, error) bool) {
		defer resp.Body.Close()

		reader := NewSSEReader(resp.Body)
		for {
			ev, err := reader.ReadEvent()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(Event{}, err)
				return
			}
			if bytes.Equal(bytes.TrimSpace(ev.Data), doneMarker) {
				return
			}
			if !yield(ev, nil) {
				return
			}
		}
	}
}
