package vm

import (
	"errors"
	"fmt"
	"math/bits"
)

// ErrNoFreeFrame is returned when every physical frame is allocated.
var ErrNoFreeFrame = errors.New("no free physical frame")

const bitsInWord = 32

// A FrameAllocator hands out physical page frames. It keeps one bit per frame
// and always grants the lowest free frame, so runs are reproducible.
type FrameAllocator struct {
	numFrames int
	numFree   int
	words     []uint32
}

// NewFrameAllocator creates an allocator with all numFrames frames free.
func NewFrameAllocator(numFrames int) *FrameAllocator {
	if numFrames <= 0 {
		panic("number of frames must be positive")
	}

	return &FrameAllocator{
		numFrames: numFrames,
		numFree:   numFrames,
		words:     make([]uint32, (numFrames+bitsInWord-1)/bitsInWord),
	}
}

// NumFrames returns the number of frames managed by the allocator.
func (a *FrameAllocator) NumFrames() int {
	return a.numFrames
}

// NumFree returns the number of frames that can still be allocated.
func (a *FrameAllocator) NumFree() int {
	return a.numFree
}

// Allocate marks the lowest free frame as allocated and returns it.
// ErrNoFreeFrame is returned when physical memory is exhausted.
func (a *FrameAllocator) Allocate() (int, error) {
	for w, word := range a.words {
		if word == ^uint32(0) {
			continue
		}

		frame := w*bitsInWord + bits.TrailingZeros32(^word)
		if frame >= a.numFrames {
			break
		}

		a.words[w] |= 1 << uint(frame%bitsInWord)
		a.numFree--

		return frame, nil
	}

	return 0, ErrNoFreeFrame
}

// MustAllocate is Allocate for callers that have no way to handle running out
// of memory.
func (a *FrameAllocator) MustAllocate() int {
	frame, err := a.Allocate()
	if err != nil {
		panic(err)
	}

	return frame
}

// Free returns a frame to the allocator. Freeing a frame that is not
// allocated is a programming error.
func (a *FrameAllocator) Free(frame int) {
	a.frameMustBeInRange(frame)

	if !a.IsAllocated(frame) {
		panic(fmt.Sprintf("frame %d is not allocated", frame))
	}

	a.words[frame/bitsInWord] &^= 1 << uint(frame%bitsInWord)
	a.numFree++
}

// IsAllocated tells if the frame is currently allocated.
func (a *FrameAllocator) IsAllocated(frame int) bool {
	a.frameMustBeInRange(frame)

	return a.words[frame/bitsInWord]&(1<<uint(frame%bitsInWord)) != 0
}

func (a *FrameAllocator) frameMustBeInRange(frame int) {
	if frame < 0 || frame >= a.numFrames {
		panic(fmt.Sprintf("frame %d out of range [0, %d)",
			frame, a.numFrames))
	}
}
