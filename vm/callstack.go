package vm

// MaxCallDepth bounds the call stack.
const MaxCallDepth = 256

// CallStack is the return-address stack reserved for CALL/RET. It is part
// of the machine state and is cleared on every program load, but no
// dispatched opcode currently touches it: CALL and RET are reserved
// mnemonics without semantics.
type CallStack struct {
	frames []int
}

// NewCallStack returns an empty call stack.
func NewCallStack() *CallStack {
	return &CallStack{frames: make([]int, 0, MaxCallDepth)}
}

// Push records a return address.
func (c *CallStack) Push(returnPC int) error {
	if len(c.frames) >= MaxCallDepth {
		return ErrCallStackOverflow
	}
	c.frames = append(c.frames, returnPC)
	return nil
}

// Pop removes and returns the most recent return address.
func (c *CallStack) Pop() (int, error) {
	if len(c.frames) == 0 {
		return 0, ErrReturnWithoutCall
	}
	pc := c.frames[len(c.frames)-1]
	c.frames = c.frames[:len(c.frames)-1]
	return pc, nil
}

// Len returns the current call depth.
func (c *CallStack) Len() int {
	return len(c.frames)
}

// Clear drops all frames.
func (c *CallStack) Clear() {
	c.frames = c.frames[:0]
}
