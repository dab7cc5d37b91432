package core

// Message is the relay payload: an immutable fixed-size byte buffer.
// The content is opaque filler; only its size matters.
type Message struct {
	payload []byte
}

// NewMessage returns a zero-filled Message of the given size.
// Negative sizes are treated as zero.
func NewMessage(size int) Message {
	if size < 0 {
		size = 0
	}
	return Message{payload: make([]byte, size)}
}

// Size returns the payload length in bytes.
func (m Message) Size() int {
	return len(m.payload)
}

// Bytes returns a copy of the payload.
func (m Message) Bytes() []byte {
	b := make([]byte, len(m.payload))
	copy(b, m.payload)
	return b
}
