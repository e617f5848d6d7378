package entity

// Message is the tagged variant produced by the dispatcher. Every decoded
// frame normalizes into exactly one of the concrete types below; switching
// over Message keeps handling exhaustive when a variant is added.
type Message interface {
	isMessage()
}

type TickMessage struct {
	Tick TickRecord
}

type DepthMessage struct {
	Depth DepthSnapshot
}

// ControlMessage carries STATUS/ERROR style control traffic. It is logged
// and never persisted.
type ControlMessage struct {
	Kind string
	Text string
}

// UnknownMessage preserves the raw payload of an unrecognized frame for
// diagnostics. BinaryType is set on the binary feed, TextType on the JSON
// feed.
type UnknownMessage struct {
	BinaryType uint16
	TextType   string
	Raw        []byte
}

func (TickMessage) isMessage()    {}
func (DepthMessage) isMessage()   {}
func (ControlMessage) isMessage() {}
func (UnknownMessage) isMessage() {}
