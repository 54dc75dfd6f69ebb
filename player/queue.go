package player

import "math/rand"

// queue holds the list of track paths and the play order. In shuffle
// mode the order is a random permutation which is rebuilt on every full
// pass; the first entry of a fresh permutation never repeats the track
// that just finished.
type queue struct {
	items   []string
	order   []int
	pos     int
	shuffle bool
	rng     *rand.Rand
}

func newQueue(rng *rand.Rand) *queue {
	return &queue{rng: rng}
}

func (q *queue) setItems(items []string) {
	q.items = make([]string, len(items))
	copy(q.items, items)
	q.pos = 0
	q.rebuildOrder(-1)
}

func (q *queue) len() int {
	return len(q.items)
}

// current returns the path at the play cursor.
func (q *queue) current() (string, bool) {
	if len(q.items) == 0 || q.pos < 0 || q.pos >= len(q.order) {
		return "", false
	}
	return q.items[q.order[q.pos]], true
}

// index returns the position of the current track within the original
// queue, independent of shuffle.
func (q *queue) index() int {
	if len(q.items) == 0 || q.pos >= len(q.order) {
		return 0
	}
	return q.order[q.pos]
}

// peekNext returns the path that advance would move to, without moving.
func (q *queue) peekNext(repeat RepeatMode) (string, bool) {
	if len(q.items) == 0 {
		return "", false
	}
	if repeat == RepeatOne {
		return q.current()
	}
	if q.pos+1 < len(q.order) {
		return q.items[q.order[q.pos+1]], true
	}
	if repeat == RepeatAll {
		// the permutation is rebuilt when we actually wrap; in
		// sequential mode we know the wrap target already
		if !q.shuffle {
			return q.items[0], true
		}
		return "", false
	}
	return "", false
}

// advance moves the cursor forward and reports whether a track is
// available. With RepeatOne the cursor stays in place.
func (q *queue) advance(repeat RepeatMode) bool {
	if len(q.items) == 0 {
		return false
	}
	if repeat == RepeatOne {
		return true
	}
	if q.pos+1 < len(q.order) {
		q.pos++
		return true
	}
	if repeat == RepeatAll {
		last := q.order[q.pos]
		q.pos = 0
		q.rebuildOrder(last)
		return true
	}
	return false
}

// previous moves the cursor back, clamping at the first track.
func (q *queue) previous() bool {
	if len(q.items) == 0 {
		return false
	}
	if q.pos > 0 {
		q.pos--
	}
	return true
}

// jump moves the cursor to the queue entry with the given original
// index.
func (q *queue) jump(index int) bool {
	if index < 0 || index >= len(q.items) {
		return false
	}
	for i, o := range q.order {
		if o == index {
			q.pos = i
			return true
		}
	}
	return false
}

// setShuffle toggles shuffle mode. The currently playing track keeps
// its position at the head of the new order.
func (q *queue) setShuffle(on bool) {
	if q.shuffle == on {
		return
	}
	q.shuffle = on

	if len(q.items) == 0 {
		return
	}

	cur := q.order[q.pos]
	if on {
		q.rebuildOrder(-1)
		// move the current track to the front
		for i, o := range q.order {
			if o == cur {
				q.order[0], q.order[i] = q.order[i], q.order[0]
				break
			}
		}
		q.pos = 0
	} else {
		q.rebuildOrder(-1)
		q.pos = cur
	}
}

// rebuildOrder recomputes the play order. avoid names an original index
// which must not come first, so a reshuffled pass does not immediately
// repeat the last played track.
func (q *queue) rebuildOrder(avoid int) {
	q.order = make([]int, len(q.items))
	for i := range q.order {
		q.order[i] = i
	}
	if !q.shuffle || len(q.order) < 2 {
		return
	}

	q.rng.Shuffle(len(q.order), func(i, j int) {
		q.order[i], q.order[j] = q.order[j], q.order[i]
	})

	if avoid >= 0 && q.order[0] == avoid {
		j := 1 + q.rng.Intn(len(q.order)-1)
		q.order[0], q.order[j] = q.order[j], q.order[0]
	}
}
