package stream

import (
	"bufio"
	"bytes"
	"io"
	"strconv"
	"strings"
	"time"
)

// maxLineSize bounds a single SSE line. Message text arrives inline in data
// lines, so the scanner's 64 KiB default is too small.
const maxLineSize = 1 << 20

// Event is one dispatched server-sent event.
type Event struct {
	Name string
	Data string
	ID   string
}

// Decoder splits a text/event-stream body into events.
type Decoder struct {
	scanner *bufio.Scanner
	lastID  string
	retry   time.Duration
}

// NewDecoder creates a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 4096), maxLineSize)
	s.Split(splitLines())
	return &Decoder{scanner: s}
}

// splitLines splits on CRLF, LF or a lone CR. A CR ending one read may be
// followed by the LF of the same line break in the next, which is skipped.
func splitLines() bufio.SplitFunc {
	skipLF := false
	return func(data []byte, atEOF bool) (int, []byte, error) {
		start := 0
		if skipLF && len(data) > 0 {
			skipLF = false
			if data[0] == '\n' {
				start = 1
			}
		}

		if i := bytes.IndexAny(data[start:], "\r\n"); i >= 0 {
			i += start
			line := data[start:i]
			if data[i] == '\n' {
				return i + 1, line, nil
			}
			if i+1 < len(data) {
				if data[i+1] == '\n' {
					return i + 2, line, nil
				}
				return i + 1, line, nil
			}
			skipLF = true
			return i + 1, line, nil
		}

		if atEOF && len(data) > start {
			return len(data), data[start:], nil
		}
		return start, nil, nil
	}
}

// Retry returns the reconnect delay last announced by the server, or zero.
func (d *Decoder) Retry() time.Duration { return d.retry }

// Next returns the next event that carries data. Comment lines and frames
// without data are consumed silently. It returns io.EOF when the stream ends.
func (d *Decoder) Next() (Event, error) {
	var (
		name    string
		data    strings.Builder
		hasData bool
	)

	for d.scanner.Scan() {
		line := d.scanner.Text()

		if line == "" {
			if !hasData {
				name = ""
				continue
			}
			if name == "" {
				name = "message"
			}
			return Event{Name: name, Data: data.String(), ID: d.lastID}, nil
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")

		switch field {
		case "event":
			name = value
		case "data":
			if hasData {
				data.WriteByte('\n')
			}
			data.WriteString(value)
			hasData = true
		case "id":
			if !strings.ContainsRune(value, 0) {
				d.lastID = value
			}
		case "retry":
			if ms, err := strconv.Atoi(value); err == nil && ms >= 0 {
				d.retry = time.Duration(ms) * time.Millisecond
			}
		}
	}

	if err := d.scanner.Err(); err != nil {
		return Event{}, err
	}
	return Event{}, io.EOF
}
