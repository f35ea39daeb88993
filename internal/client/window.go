package client

// window is a bounded set of recent ids. When it grows past size the
// oldest prune ids are forgotten at once.
type window struct {
	size  int
	prune int
	order []string
	set   map[string]struct{}
}

func newWindow(size, prune int) *window {
	return &window{size: size, prune: prune, set: make(map[string]struct{}, size+1)}
}

// add records id and reports false when it was already present.
func (w *window) add(id string) bool {
	if _, ok := w.set[id]; ok {
		return false
	}
	w.set[id] = struct{}{}
	w.order = append(w.order, id)
	if len(w.order) > w.size {
		for _, old := range w.order[:w.prune] {
			delete(w.set, old)
		}
		w.order = append(w.order[:0:0], w.order[w.prune:]...)
	}
	return true
}

func (w *window) len() int { return len(w.order) }
