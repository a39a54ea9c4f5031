package vm

// StackCapacity is the fixed operand stack limit. Exceeding it is an
// error, never silent truncation.
const StackCapacity = 1024

// OperandStack is the bounded LIFO working storage for instruction
// operands and results. The zero value is not usable; use NewOperandStack.
type OperandStack struct {
	values []int64
}

// NewOperandStack returns an empty stack with the full capacity reserved.
func NewOperandStack() *OperandStack {
	return &OperandStack{values: make([]int64, 0, StackCapacity)}
}

// Push appends a value, failing with ErrStackOverflow at capacity.
func (s *OperandStack) Push(v int64) error {
	if len(s.values) >= StackCapacity {
		return ErrStackOverflow
	}
	s.values = append(s.values, v)
	return nil
}

// Pop removes and returns the top value.
func (s *OperandStack) Pop() (int64, error) {
	if len(s.values) == 0 {
		return 0, ErrStackUnderflow
	}
	v := s.values[len(s.values)-1]
	s.values = s.values[:len(s.values)-1]
	return v, nil
}

// Peek returns the top value without removing it.
func (s *OperandStack) Peek() (int64, error) {
	if len(s.values) == 0 {
		return 0, ErrEmptyStack
	}
	return s.values[len(s.values)-1], nil
}

// Dup pushes a copy of the top value, subject to the push overflow check.
func (s *OperandStack) Dup() error {
	if len(s.values) == 0 {
		return ErrStackUnderflow
	}
	return s.Push(s.values[len(s.values)-1])
}

// Swap exchanges the top two values.
func (s *OperandStack) Swap() error {
	if len(s.values) < 2 {
		return ErrStackUnderflow
	}
	top := len(s.values) - 1
	s.values[top], s.values[top-1] = s.values[top-1], s.values[top]
	return nil
}

// Len returns the number of values on the stack.
func (s *OperandStack) Len() int {
	return len(s.values)
}

// Empty reports whether the stack holds no values.
func (s *OperandStack) Empty() bool {
	return len(s.values) == 0
}
