package storm

import "time"

// entry is one ticket remembered by the detector
type entry struct {
	ticketID  string
	text      string
	embedding []float64
	timestamp time.Time
}

// window is a fixed-capacity FIFO of entries ordered by insertion time.
// Pushing into a full window drops the oldest entry.
type window struct {
	buf   []entry
	head  int
	count int
}

func newWindow(capacity int) *window {
	return &window{buf: make([]entry, capacity)}
}

func (w *window) len() int {
	return w.count
}

func (w *window) at(i int) *entry {
	return &w.buf[(w.head+i)%len(w.buf)]
}

func (w *window) push(e entry) {
	if w.count == len(w.buf) {
		w.popFront()
	}
	w.buf[(w.head+w.count)%len(w.buf)] = e
	w.count++
}

func (w *window) popFront() {
	if w.count == 0 {
		return
	}
	w.buf[w.head] = entry{}
	w.head = (w.head + 1) % len(w.buf)
	w.count--
}

// evictOlderThan drops entries from the front whose age exceeds maxAge
func (w *window) evictOlderThan(now time.Time, maxAge time.Duration) int {
	evicted := 0
	for w.count > 0 && now.Sub(w.at(0).timestamp) > maxAge {
		w.popFront()
		evicted++
	}
	return evicted
}
