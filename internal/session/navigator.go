package session

// Navigator tracks the current question index. It is not safe for
// concurrent use.
type Navigator struct {
	index int
	total int
}

// NewNavigator starts at the first of total questions.
func NewNavigator(total int) *Navigator {
	n := &Navigator{}
	n.Resize(total)
	return n
}

// Index returns the current index.
func (n *Navigator) Index() int { return n.index }

// Total returns the number of questions.
func (n *Navigator) Total() int { return n.total }

// Goto moves to i, clamped into range.
func (n *Navigator) Goto(i int) int {
	n.index = n.clamp(i)
	return n.index
}

// Next moves forward one question, stopping at the last.
func (n *Navigator) Next() int { return n.Goto(n.index + 1) }

// Prev moves back one question, stopping at the first.
func (n *Navigator) Prev() int { return n.Goto(n.index - 1) }

// Resize changes the question count and re-clamps the index.
func (n *Navigator) Resize(total int) int {
	if total < 0 {
		total = 0
	}
	n.total = total
	return n.Goto(n.index)
}

func (n *Navigator) clamp(i int) int {
	if n.total == 0 || i < 0 {
		return 0
	}
	if i > n.total-1 {
		return n.total - 1
	}
	return i
}
