package frame

// Accumulator cuts an undelimited byte stream into fixed-size frames.
// Bytes that do not complete a frame are kept and prefixed to the next Push.
type Accumulator struct {
	stride int
	buf    []byte
}

// NewAccumulator returns an Accumulator emitting frames of stride bytes.
func NewAccumulator(stride int) *Accumulator {
	if stride <= 0 {
		panic("frame: stride must be positive")
	}
	return &Accumulator{
		stride: stride,
		buf:    make([]byte, 0, stride),
	}
}

// Push appends p to the pending bytes and returns every frame completed by
// it, in stream order. Returned slices are owned by the caller.
func (a *Accumulator) Push(p []byte) [][]byte {
	var frames [][]byte
	for len(p) > 0 {
		need := a.stride - len(a.buf)
		if len(a.buf) == 0 && len(p) >= a.stride {
			out := make([]byte, a.stride)
			copy(out, p[:a.stride])
			frames = append(frames, out)
			p = p[a.stride:]
			continue
		}
		if len(p) < need {
			a.buf = append(a.buf, p...)
			break
		}
		a.buf = append(a.buf, p[:need]...)
		p = p[need:]
		frames = append(frames, a.buf)
		a.buf = make([]byte, 0, a.stride)
	}
	return frames
}

// Pending returns the number of bytes waiting for the rest of their frame.
func (a *Accumulator) Pending() int {
	return len(a.buf)
}

// Reset discards the pending bytes and returns how many were dropped.
func (a *Accumulator) Reset() int {
	n := len(a.buf)
	a.buf = a.buf[:0]
	return n
}
