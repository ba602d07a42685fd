// Package sse decodes Server-Sent-Event byte streams into typed item
// sequences.
//
// Decoder handles the line-level protocol: frames are blank-line
// terminated, `event:` names the frame, one or more `data:` lines carry
// the payload. Stream layers a lazy, cancelable, split-once typed pull
// sequence on top of a Decoder.
package sse

import (
	"bufio"
	"io"
	"strings"
)

// Event is one decoded SSE frame.
type Event struct {
	// Name is the frame's event field, empty when the frame carried none.
	Name string
	// Data is the payload: all data lines of the frame joined with "\n".
	Data string
	// Raw preserves every non-blank line of the frame, including lines
	// with unrecognized prefixes that contribute nothing to Data.
	Raw []string
}

// maxLineSize bounds a single SSE line; model outputs can carry large
// base64 payloads in one data line.
const maxLineSize = 1 << 20

// Decoder incrementally parses SSE frames from a byte source. It reads
// only as far as the next frame boundary, so transport reads advance at
// the pace of the consumer.
type Decoder struct {
	scanner *bufio.Scanner
}

// NewDecoder creates a Decoder over r.
func NewDecoder(r io.Reader) *Decoder {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &Decoder{scanner: sc}
}

// Next returns the next frame that carries an event name or data.
// Frames holding only comments or unrecognized lines are protocol noise
// and skipped. Returns io.EOF at the end of the source; a partial frame
// with no terminating blank line is discarded.
func (d *Decoder) Next() (*Event, error) {
	var (
		name      string
		dataLines []string
		raw       []string
	)

	for d.scanner.Scan() {
		line := strings.TrimSuffix(d.scanner.Text(), "\r")

		if line == "" {
			if len(dataLines) > 0 || name != "" {
				return &Event{
					Name: name,
					Data: strings.Join(dataLines, "\n"),
					Raw:  raw,
				}, nil
			}
			// Noise-only frame: reset and keep scanning.
			raw = nil
			continue
		}

		raw = append(raw, line)
		switch {
		case strings.HasPrefix(line, "data:"):
			dataLines = append(dataLines, trimFieldValue(line, "data:"))
		case strings.HasPrefix(line, "event:"):
			name = trimFieldValue(line, "event:")
		}
	}

	if err := d.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

// trimFieldValue strips the field prefix and the single optional leading
// space the SSE spec allows.
func trimFieldValue(line, prefix string) string {
	v := strings.TrimPrefix(line, prefix)
	return strings.TrimPrefix(v, " ")
}
