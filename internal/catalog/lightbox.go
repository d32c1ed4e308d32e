package catalog

// NextIndex wraps circularly: the item after the last is the first. Returns
// -1 for an empty list.
func NextIndex(length, current int) int {
	if length <= 0 {
		return -1
	}
	return (current + 1) % length
}

// PreviousIndex wraps circularly: the item before the first is the last.
// Returns -1 for an empty list.
func PreviousIndex(length, current int) int {
	if length <= 0 {
		return -1
	}
	return (current - 1 + length) % length
}
