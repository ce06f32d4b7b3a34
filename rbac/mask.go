package rbac

// mask is a 64-bit action set. Bit positions are fixed by the policy table.
type mask uint64

func (m mask) has(bit int) bool {
	if bit < 0 || bit >= 64 {
		return false
	}
	return m&(1<<bit) != 0
}

func (m mask) with(bits ...int) mask {
	for _, bit := range bits {
		if bit < 0 || bit >= 64 {
			continue
		}
		m |= 1 << bit
	}
	return m
}
