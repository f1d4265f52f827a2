package permission

// Mask64 is a 64-bit permission bitmask. Bit positions come from a Registry.
type Mask64 uint64

func (m *Mask64) Has(bit int) bool {
	if bit < 0 || bit >= 64 {
		return false
	}
	return (*m & (1 << bit)) != 0
}

func (m *Mask64) Set(bit int) {
	if bit < 0 || bit >= 64 {
		return
	}
	*m |= (1 << bit)
}

func (m *Mask64) Clear(bit int) {
	if bit < 0 || bit >= 64 {
		return
	}
	*m &^= (1 << bit)
}

// ContainsAll reports whether every bit set in other is set in m.
func (m *Mask64) ContainsAll(other Mask64) bool {
	return (*m)&other == other
}

func (m *Mask64) Raw() uint64 {
	return uint64(*m)
}
