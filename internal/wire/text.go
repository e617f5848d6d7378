package wire

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
)

// JSON plugin feed framing: one UTF-8 JSON object per line, '\n' delimited.

// ErrMalformedLine marks a line that is not valid JSON. Unlike binary
// corruption this is recoverable: the delimiter makes the stream
// self-resynchronizing, so callers log and move to the next line.
var ErrMalformedLine = errors.New("wire: malformed json line")

// EncodeText marshals v into a newline-terminated JSON frame.
func EncodeText(v any) ([]byte, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return append(payload, '\n'), nil
}

// TextDecoder buffers a fragmented byte stream and yields one JSON line
// per frame. Frame.Type is always zero on this feed.
type TextDecoder struct {
	buf          []byte
	maxFrameSize int
}

func NewTextDecoder(maxFrameSize int) *TextDecoder {
	return &TextDecoder{maxFrameSize: maxFrameSize}
}

func (d *TextDecoder) Feed(p []byte) {
	d.buf = append(d.buf, p...)
}

// Next returns the next line as a frame. The second result is false when
// no complete line is buffered. ErrMalformedLine is returned with the
// offending frame and the decoder stays usable; ErrFrameTooLarge is
// stream fatal.
func (d *TextDecoder) Next() (Frame, bool, error) {
	idx := bytes.IndexByte(d.buf, '\n')
	if idx < 0 {
		if d.maxFrameSize > 0 && len(d.buf) > d.maxFrameSize {
			return Frame{}, false, fmt.Errorf("%w: %d bytes without delimiter", ErrFrameTooLarge, len(d.buf))
		}
		return Frame{}, false, nil
	}

	line := bytes.TrimRight(d.buf[:idx], "\r")
	d.buf = d.buf[idx+1:]

	if len(bytes.TrimSpace(line)) == 0 {
		return d.Next()
	}

	frame := Frame{Payload: append([]byte(nil), line...)}
	if !json.Valid(line) {
		return frame, true, ErrMalformedLine
	}
	return frame, true, nil
}

func (d *TextDecoder) Buffered() int {
	return len(d.buf)
}
