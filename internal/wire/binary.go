package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Binary feed framing: [length uint32][type uint16][payload], big-endian.
// The length field counts the type field plus the payload, so an empty
// payload still has length 2.

const (
	binaryHeaderSize = 6
	typeFieldSize    = 2
)

var (
	// ErrNeedMoreData means the buffer does not yet hold a complete frame.
	// Nothing was consumed.
	ErrNeedMoreData = errors.New("wire: need more data")

	// ErrFrameTooLarge means the length header implies a payload beyond the
	// configured maximum. Binary framing has no resync marker, so the
	// connection must be dropped.
	ErrFrameTooLarge = errors.New("wire: frame exceeds max size")

	// ErrInvalidLength means the length header is below the minimum of 2
	// (the type field itself). Also unrecoverable on the binary feed.
	ErrInvalidLength = errors.New("wire: invalid frame length")
)

// Frame is one decoded wire unit. On the binary feed Type is the vendor
// message tag; on the JSON feed Type is zero and Payload holds one line.
type Frame struct {
	Type    uint16
	Payload []byte
}

// EncodeBinary builds a complete binary frame for the given type tag.
func EncodeBinary(frameType uint16, payload []byte) []byte {
	buf := make([]byte, binaryHeaderSize+len(payload))
	binary.BigEndian.PutUint32(buf[0:4], uint32(len(payload)+typeFieldSize))
	binary.BigEndian.PutUint16(buf[4:6], frameType)
	copy(buf[binaryHeaderSize:], payload)
	return buf
}

// DecodeBinary inspects buf for one complete frame and returns it along
// with the number of bytes consumed. ErrNeedMoreData consumes nothing;
// ErrFrameTooLarge and ErrInvalidLength are stream fatal.
func DecodeBinary(buf []byte, maxFrameSize int) (Frame, int, error) {
	if len(buf) < binaryHeaderSize {
		return Frame{}, 0, ErrNeedMoreData
	}

	length := binary.BigEndian.Uint32(buf[0:4])
	if length < typeFieldSize {
		return Frame{}, 0, fmt.Errorf("%w: length field %d", ErrInvalidLength, length)
	}

	payloadLen := int(length) - typeFieldSize
	if maxFrameSize > 0 && payloadLen > maxFrameSize {
		return Frame{}, 0, fmt.Errorf("%w: payload %d bytes, max %d", ErrFrameTooLarge, payloadLen, maxFrameSize)
	}

	total := binaryHeaderSize + payloadLen
	if len(buf) < total {
		return Frame{}, 0, ErrNeedMoreData
	}

	frame := Frame{
		Type:    binary.BigEndian.Uint16(buf[4:6]),
		Payload: append([]byte(nil), buf[binaryHeaderSize:total]...),
	}
	return frame, total, nil
}

// BinaryDecoder buffers a fragmented byte stream and yields whole frames.
// One socket read never maps to one frame, so callers Feed whatever
// arrived and drain Next until it reports no frame.
type BinaryDecoder struct {
	buf          []byte
	maxFrameSize int
}

func NewBinaryDecoder(maxFrameSize int) *BinaryDecoder {
	return &BinaryDecoder{maxFrameSize: maxFrameSize}
}

func (d *BinaryDecoder) Feed(p []byte) {
	d.buf = append(d.buf, p...)
}

// Next returns the next complete frame. The second result is false when
// the buffer needs more bytes. A non-nil error is stream fatal.
func (d *BinaryDecoder) Next() (Frame, bool, error) {
	frame, consumed, err := DecodeBinary(d.buf, d.maxFrameSize)
	if err != nil {
		if errors.Is(err, ErrNeedMoreData) {
			return Frame{}, false, nil
		}
		return Frame{}, false, err
	}

	d.buf = d.buf[consumed:]
	return frame, true, nil
}

// Buffered reports bytes held but not yet decoded, used on disconnect to
// tell a clean frame boundary from a mid-frame cut.
func (d *BinaryDecoder) Buffered() int {
	return len(d.buf)
}

// PayloadReader decodes positional fields out of a binary payload. Errors
// are sticky: after the first short read every accessor returns a zero
// value and Err reports the failure.
type PayloadReader struct {
	buf []byte
	off int
	err error
}

func NewPayloadReader(payload []byte) *PayloadReader {
	return &PayloadReader{buf: payload}
}

func (r *PayloadReader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if r.off+n > len(r.buf) {
		r.err = fmt.Errorf("payload truncated: need %d bytes at offset %d, have %d", n, r.off, len(r.buf))
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *PayloadReader) Uint16() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint16(b)
}

func (r *PayloadReader) Uint32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

func (r *PayloadReader) Uint64() uint64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

func (r *PayloadReader) Float64() float64 {
	b := r.take(8)
	if b == nil {
		return 0
	}
	return math.Float64frombits(binary.BigEndian.Uint64(b))
}

// String reads a 4-byte length-prefixed UTF-8 string.
func (r *PayloadReader) String() string {
	length := r.Uint32()
	if r.err != nil {
		return ""
	}
	b := r.take(int(length))
	if b == nil {
		return ""
	}
	return string(b)
}

func (r *PayloadReader) Remaining() int {
	if r.err != nil {
		return 0
	}
	return len(r.buf) - r.off
}

func (r *PayloadReader) Err() error {
	return r.err
}

// PayloadWriter is the encoding counterpart, used to build request
// payloads such as market data subscriptions.
type PayloadWriter struct {
	buf []byte
}

func (w *PayloadWriter) Uint16(v uint16) *PayloadWriter {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	w.buf = append(w.buf, b[:]...)
	return w
}

func (w *PayloadWriter) Uint32(v uint32) *PayloadWriter {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
	return w
}

func (w *PayloadWriter) Uint64(v uint64) *PayloadWriter {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
	return w
}

func (w *PayloadWriter) Float64(v float64) *PayloadWriter {
	return w.Uint64(math.Float64bits(v))
}

// String writes a 4-byte length-prefixed UTF-8 string.
func (w *PayloadWriter) String(s string) *PayloadWriter {
	w.Uint32(uint32(len(s)))
	w.buf = append(w.buf, s...)
	return w
}

func (w *PayloadWriter) Bytes() []byte {
	return w.buf
}
