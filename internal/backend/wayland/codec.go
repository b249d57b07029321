package wayland

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// maxLineSize bounds one encoded event.
const maxLineSize = 1 << 20

// Decoder reads JSON-lines events.
type Decoder struct {
	scanner *bufio.Scanner
	line    int
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &Decoder{scanner: s}
}

// Decode returns the next event, or io.EOF at the end of input. Blank lines
// are skipped.
func (d *Decoder) Decode() (Event, error) {
	for d.scanner.Scan() {
		d.line++
		text := strings.TrimSpace(d.scanner.Text())
		if text == "" {
			continue
		}
		var ev Event
		if err := json.Unmarshal([]byte(text), &ev); err != nil {
			return Event{}, fmt.Errorf("line %d: %w", d.line, err)
		}
		if ev.Kind == "" {
			return Event{}, fmt.Errorf("line %d: missing event kind", d.line)
		}
		return ev, nil
	}
	if err := d.scanner.Err(); err != nil {
		return Event{}, err
	}
	return Event{}, io.EOF
}

// Encoder writes JSON-lines events.
type Encoder struct {
	enc *json.Encoder
}

// NewEncoder returns an Encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{enc: json.NewEncoder(w)}
}

// Encode writes one event followed by a newline.
func (e *Encoder) Encode(ev Event) error {
	return e.enc.Encode(ev)
}
