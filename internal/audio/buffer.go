// Package audio provides utterance capture, WAV framing and response
// audio persistence.
package audio

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Errors for buffer misuse.
var (
	ErrInvalidState     = errors.New("buffer already finalized")
	ErrAlreadyFinalized = errors.New("buffer finalized twice")
)

// Buffer accumulates audio frames for a single utterance. It is owned by
// one session at a time; Append and Finalize are safe for concurrent use
// but a single producer is the expected pattern.
//
// Lifecycle:
//
//	recording ── Append() ──→ recording
//	recording ── Finalize() ─→ finalized (immutable, exactly once)
type Buffer struct {
	mu        sync.Mutex
	frames    [][]byte
	byteCount int
	finalized bool
	started   time.Time
}

// NewBuffer creates an empty buffer in recording state.
func NewBuffer() *Buffer {
	return &Buffer{started: time.Now().UTC()}
}

// Append adds one frame to the buffer. Frames are retained in arrival
// order. Returns ErrInvalidState if the buffer was already finalized.
func (b *Buffer) Append(frame []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.finalized {
		return ErrInvalidState
	}

	// Own the bytes; callers reuse frame slices.
	cp := make([]byte, len(frame))
	copy(cp, frame)
	b.frames = append(b.frames, cp)
	b.byteCount += len(cp)
	return nil
}

// Len returns the number of buffered bytes.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.byteCount
}

// FrameCount returns the number of buffered frames.
func (b *Buffer) FrameCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.frames)
}

// Finalize seals the buffer and returns the immutable utterance. Calling
// it a second time returns ErrAlreadyFinalized.
func (b *Buffer) Finalize() (*Utterance, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.finalized {
		return nil, ErrAlreadyFinalized
	}
	b.finalized = true

	return &Utterance{
		ID:         uuid.NewString(),
		Frames:     b.frames,
		ByteCount:  b.byteCount,
		CapturedAt: b.started,
	}, nil
}

// Utterance is one finalized unit of captured audio. Immutable.
type Utterance struct {
	ID         string
	Frames     [][]byte
	ByteCount  int
	CapturedAt time.Time
}

// Bytes returns the frames joined into a single blob, preserving capture
// order.
func (u *Utterance) Bytes() []byte {
	out := make([]byte, 0, u.ByteCount)
	for _, f := range u.Frames {
		out = append(out, f...)
	}
	return out
}

// UtteranceFromBytes wraps an already-assembled audio blob, e.g. a
// decoded HTTP upload, as a single-frame utterance.
func UtteranceFromBytes(data []byte) *Utterance {
	u := &Utterance{
		ID:         uuid.NewString(),
		ByteCount:  len(data),
		CapturedAt: time.Now().UTC(),
	}
	if len(data) > 0 {
		u.Frames = [][]byte{data}
	}
	return u
}
