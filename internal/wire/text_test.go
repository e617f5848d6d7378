package wire

import (
	"errors"
	"testing"
)

func TestTextDecoderSplitsLines(t *testing.T) {
	decoder := NewTextDecoder(0)
	decoder.Feed([]byte(`{"type":"TICK"}` + "\n" + `{"type":"DEPTH"}` + "\n"))

	first, ok, err := decoder.Next()
	if err != nil || !ok {
		t.Fatalf("first: ok=%v err=%v", ok, err)
	}
	if string(first.Payload) != `{"type":"TICK"}` {
		t.Fatalf("first payload = %q", first.Payload)
	}

	second, ok, err := decoder.Next()
	if err != nil || !ok {
		t.Fatalf("second: ok=%v err=%v", ok, err)
	}
	if string(second.Payload) != `{"type":"DEPTH"}` {
		t.Fatalf("second payload = %q", second.Payload)
	}

	if _, ok, _ := decoder.Next(); ok {
		t.Fatal("unexpected third frame")
	}
}

func TestTextDecoderFragmentedLine(t *testing.T) {
	decoder := NewTextDecoder(0)
	decoder.Feed([]byte(`{"type":"TI`))

	if _, ok, err := decoder.Next(); ok || err != nil {
		t.Fatalf("partial line: ok=%v err=%v", ok, err)
	}

	decoder.Feed([]byte(`CK"}` + "\n"))
	frame, ok, err := decoder.Next()
	if err != nil || !ok {
		t.Fatalf("completed line: ok=%v err=%v", ok, err)
	}
	if string(frame.Payload) != `{"type":"TICK"}` {
		t.Fatalf("payload = %q", frame.Payload)
	}
}

func TestTextDecoderMalformedLineRecoverable(t *testing.T) {
	decoder := NewTextDecoder(0)
	decoder.Feed([]byte("not json\n" + `{"type":"STATUS"}` + "\n"))

	_, ok, err := decoder.Next()
	if !ok || !errors.Is(err, ErrMalformedLine) {
		t.Fatalf("bad line: ok=%v err=%v, want ErrMalformedLine", ok, err)
	}

	// the stream keeps going after a bad line
	frame, ok, err := decoder.Next()
	if err != nil || !ok {
		t.Fatalf("next line: ok=%v err=%v", ok, err)
	}
	if string(frame.Payload) != `{"type":"STATUS"}` {
		t.Fatalf("payload = %q", frame.Payload)
	}
}

func TestTextDecoderStripsCarriageReturn(t *testing.T) {
	decoder := NewTextDecoder(0)
	decoder.Feed([]byte("{\"a\":1}\r\n"))

	frame, ok, err := decoder.Next()
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if string(frame.Payload) != `{"a":1}` {
		t.Fatalf("payload = %q", frame.Payload)
	}
}

func TestTextDecoderSkipsBlankLines(t *testing.T) {
	decoder := NewTextDecoder(0)
	decoder.Feed([]byte("\n  \n{\"a\":1}\n"))

	frame, ok, err := decoder.Next()
	if err != nil || !ok {
		t.Fatalf("ok=%v err=%v", ok, err)
	}
	if string(frame.Payload) != `{"a":1}` {
		t.Fatalf("payload = %q", frame.Payload)
	}
}

func TestTextDecoderOversizedLineFatal(t *testing.T) {
	decoder := NewTextDecoder(8)
	decoder.Feed([]byte("0123456789abcdef"))

	if _, _, err := decoder.Next(); !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("got err %v, want ErrFrameTooLarge", err)
	}
}

func TestEncodeTextAppendsDelimiter(t *testing.T) {
	frame, err := EncodeText(map[string]string{"action": "SUBSCRIBE"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if frame[len(frame)-1] != '\n' {
		t.Fatalf("frame %q not newline terminated", frame)
	}
}
