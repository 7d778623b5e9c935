package audio

import (
	"bytes"
	"errors"
	"testing"
)

func TestBuffer_ShouldFlushAtThreshold(t *testing.T) {
	b := NewBuffer(Policy{FlushThreshold: 10, MaxPending: 20})
	fragment := bytes.Repeat([]byte{0x01}, 100)

	for i := 0; i < 9; i++ {
		if err := b.Append(fragment); err != nil {
			t.Fatalf("unexpected append error: %v", err)
		}
	}
	if b.ShouldFlush() {
		t.Fatal("expected no flush before threshold")
	}
	if b.Len() != 9 {
		t.Fatalf("expected 9 pending fragments, got %d", b.Len())
	}

	if err := b.Append(fragment); err != nil {
		t.Fatalf("unexpected append error: %v", err)
	}
	if !b.ShouldFlush() {
		t.Fatal("expected flush at threshold")
	}
}

func TestBuffer_DrainConcatenatesInOrderAndResets(t *testing.T) {
	b := NewBuffer(Policy{FlushThreshold: 3})
	_ = b.Append([]byte("ab"))
	_ = b.Append([]byte("cd"))
	_ = b.Append([]byte("e"))

	payload, n, ok := b.Drain()
	if !ok {
		t.Fatal("expected drain to return a payload")
	}
	if string(payload) != "abcde" {
		t.Fatalf("unexpected payload: %q", payload)
	}
	if n != 3 {
		t.Fatalf("expected 3 fragments, got %d", n)
	}
	if b.Len() != 0 || b.Bytes() != 0 {
		t.Fatalf("expected empty buffer after drain, got len=%d bytes=%d", b.Len(), b.Bytes())
	}
}

func TestBuffer_DrainEmpty(t *testing.T) {
	b := NewBuffer(Policy{})
	payload, n, ok := b.Drain()
	if ok || n != 0 || payload != nil {
		t.Fatalf("expected explicit empty result, got ok=%v n=%d payload=%v", ok, n, payload)
	}
}

func TestBuffer_AppendCopiesFragment(t *testing.T) {
	b := NewBuffer(Policy{FlushThreshold: 1})
	fragment := []byte("abc")
	_ = b.Append(fragment)
	fragment[0] = 'z'

	payload, _, _ := b.Drain()
	if string(payload) != "abc" {
		t.Fatalf("buffer must not alias caller memory, got %q", payload)
	}
}

func TestBuffer_OverflowAtMaxPending(t *testing.T) {
	b := NewBuffer(Policy{FlushThreshold: 2, MaxPending: 3})
	for i := 0; i < 3; i++ {
		if err := b.Append([]byte{byte(i)}); err != nil {
			t.Fatalf("unexpected append error: %v", err)
		}
	}
	if err := b.Append([]byte{9}); !errors.Is(err, ErrBufferOverflow) {
		t.Fatalf("expected ErrBufferOverflow, got %v", err)
	}
	if b.Len() != 3 {
		t.Fatalf("rejected fragment must not be stored, len=%d", b.Len())
	}

	_, _, _ = b.Drain()
	if err := b.Append([]byte{1}); err != nil {
		t.Fatalf("expected append to succeed after drain, got %v", err)
	}
}

func TestBuffer_IgnoresEmptyFragments(t *testing.T) {
	b := NewBuffer(Policy{FlushThreshold: 1})
	if err := b.Append(nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.Len() != 0 {
		t.Fatalf("expected empty fragment to be ignored, len=%d", b.Len())
	}
}

func TestPolicy_Normalized(t *testing.T) {
	p := Policy{FlushThreshold: 0, MaxPending: 0}.normalized()
	if p.FlushThreshold != DefaultFlushThreshold || p.MaxPending != DefaultMaxPending {
		t.Fatalf("unexpected defaults: %+v", p)
	}
	p = Policy{FlushThreshold: 50, MaxPending: 10}.normalized()
	if p.MaxPending != 50 {
		t.Fatalf("max pending must be at least the flush threshold, got %d", p.MaxPending)
	}
}

func TestNormalizeEncoding(t *testing.T) {
	cases := map[string]string{"": EncodingPCM, "PCM": EncodingPCM, "webm": EncodingPCM, " opus ": EncodingOpus}
	for in, want := range cases {
		got, err := NormalizeEncoding(in)
		if err != nil {
			t.Fatalf("NormalizeEncoding(%q) error: %v", in, err)
		}
		if got != want {
			t.Fatalf("NormalizeEncoding(%q) = %q, want %q", in, got, want)
		}
	}
	if _, err := NormalizeEncoding("mp3"); !errors.Is(err, ErrUnsupportedEncoding) {
		t.Fatalf("expected ErrUnsupportedEncoding, got %v", err)
	}
}
