package renderer

// Unwind collects cleanup functions while a multi-step construction is in
// progress. On failure Unwind runs them in reverse; on success Discard drops
// them so ownership passes to the constructed object.
type Unwind []func()

func (u *Unwind) Add(cleanup func()) {
	*u = append(*u, cleanup)
}

func (u *Unwind) Unwind() {
	for i := len(*u) - 1; i >= 0; i-- {
		(*u)[i]()
	}
	*u = (*u)[:0]
}

func (u *Unwind) Discard() {
	*u = (*u)[:0]
}
