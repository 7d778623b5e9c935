package audio

import "errors"

const (
	DefaultFlushThreshold = 10
	DefaultMaxPending     = 200
)

var ErrBufferOverflow = errors.New("audio buffer overflow")

// Policy bounds a Buffer. Both values count fragments, not bytes or audio duration.
type Policy struct {
	FlushThreshold int
	MaxPending     int
}

func (p Policy) normalized() Policy {
	if p.FlushThreshold <= 0 {
		p.FlushThreshold = DefaultFlushThreshold
	}
	if p.MaxPending <= 0 {
		p.MaxPending = DefaultMaxPending
	}
	if p.MaxPending < p.FlushThreshold {
		p.MaxPending = p.FlushThreshold
	}
	return p
}

// Buffer accumulates raw audio fragments until they are drained into one payload.
// It is not safe for concurrent use; the owner serializes access.
type Buffer struct {
	policy    Policy
	fragments [][]byte
	bytes     int
}

func NewBuffer(policy Policy) *Buffer {
	return &Buffer{policy: policy.normalized()}
}

// Append stores a copy of fragment. Empty fragments are ignored.
func (b *Buffer) Append(fragment []byte) error {
	if len(fragment) == 0 {
		return nil
	}
	if len(b.fragments) >= b.policy.MaxPending {
		return ErrBufferOverflow
	}
	f := make([]byte, len(fragment))
	copy(f, fragment)
	b.fragments = append(b.fragments, f)
	b.bytes += len(f)
	return nil
}

func (b *Buffer) ShouldFlush() bool {
	return len(b.fragments) >= b.policy.FlushThreshold
}

// Drain returns every pending fragment concatenated in arrival order and resets the buffer.
// ok is false when nothing was pending.
func (b *Buffer) Drain() (payload []byte, fragments int, ok bool) {
	if len(b.fragments) == 0 {
		return nil, 0, false
	}
	payload = make([]byte, 0, b.bytes)
	for _, f := range b.fragments {
		payload = append(payload, f...)
	}
	fragments = len(b.fragments)
	b.fragments = nil
	b.bytes = 0
	return payload, fragments, true
}

func (b *Buffer) Len() int {
	return len(b.fragments)
}

func (b *Buffer) Bytes() int {
	return b.bytes
}

func (b *Buffer) Policy() Policy {
	return b.policy
}
