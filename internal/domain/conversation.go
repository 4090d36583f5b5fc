package domain

// History is the ordered list of turns owned by one session. Display order is
// insertion order. It is not safe for concurrent use; the owning session
// serializes access.
type History struct {
	turns []ChatTurn
}

// Append adds a turn at the end of the history.
func (h *History) Append(turn ChatTurn) {
	h.turns = append(h.turns, turn)
}

// Turns returns a copy of the turns in creation order.
func (h *History) Turns() []ChatTurn {
	out := make([]ChatTurn, len(h.turns))
	copy(out, h.turns)
	return out
}

// Len reports the number of turns.
func (h *History) Len() int {
	return len(h.turns)
}

// Clear drops every turn.
func (h *History) Clear() {
	h.turns = nil
}
