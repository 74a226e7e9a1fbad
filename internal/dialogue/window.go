package dialogue

// Window is a bounded FIFO over the most recent turns of one session. The
// ring enforces the capacity invariant mechanically: appending to a full
// window always evicts the oldest turn.
type Window struct {
	turns  []*Turn
	next   int
	filled bool
}

const defaultWindowSize = 10

func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = defaultWindowSize
	}
	return &Window{turns: make([]*Turn, capacity)}
}

func (w *Window) Capacity() int { return len(w.turns) }

func (w *Window) Len() int {
	if w.filled {
		return len(w.turns)
	}
	return w.next
}

func (w *Window) Append(t *Turn) {
	w.turns[w.next] = t
	w.next++
	if w.next >= len(w.turns) {
		w.next = 0
		w.filled = true
	}
}

// Turns returns the window contents in chronological order.
func (w *Window) Turns() []*Turn {
	n := w.Len()
	out := make([]*Turn, 0, n)
	if w.filled {
		out = append(out, w.turns[w.next:]...)
	}
	out = append(out, w.turns[:w.next]...)
	return out
}

// Last returns up to n most recent turns in chronological order.
func (w *Window) Last(n int) []*Turn {
	all := w.Turns()
	if n <= 0 || n >= len(all) {
		return all
	}
	return all[len(all)-n:]
}
