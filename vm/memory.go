package vm

// MaxAddress is the highest valid memory address. The address space is
// [0, MaxAddress].
const MaxAddress = 65535

// Memory is the sparse address-mapped store. A map stands in for the full
// address space so that nothing is pre-allocated, while unset addresses
// still read as zero.
type Memory struct {
	cells map[int64]int64
}

// NewMemory returns an empty memory.
func NewMemory() *Memory {
	return &Memory{cells: make(map[int64]int64)}
}

// Store writes a value at an address, creating the cell if absent.
func (m *Memory) Store(address, value int64) error {
	if address < 0 || address > MaxAddress {
		return ErrAddressOutOfBounds
	}
	m.cells[address] = value
	return nil
}

// Load reads the value at an address. Unset in-range addresses read as 0.
func (m *Memory) Load(address int64) (int64, error) {
	if address < 0 || address > MaxAddress {
		return 0, ErrAddressOutOfBounds
	}
	return m.cells[address], nil
}

// Len returns the number of cells that have been written.
func (m *Memory) Len() int {
	return len(m.cells)
}
