package snapshot

import (
	"sync"
)

// Updates carries the ETag of each new snapshot.
type Updates = chan string

var (
	mu   sync.Mutex
	subs = make(map[Updates]struct{})
)

// Subscribe registers a listener and returns its channel and an unsubscribe func.
// The unsubscribe func is safe to call more than once.
func Subscribe() (Updates, func()) {
	ch := make(Updates, 1)
	mu.Lock()
	subs[ch] = struct{}{}
	mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			mu.Lock()
			delete(subs, ch)
			close(ch)
			mu.Unlock()
		})
	}
	return ch, unsub
}

// Subscribers returns the number of registered listeners.
func Subscribers() int {
	mu.Lock()
	defer mu.Unlock()
	return len(subs)
}

// publishUpdate notifies all listeners without blocking; a listener that has
// not consumed its previous update misses this one.
func publishUpdate(etag string) {
	mu.Lock()
	for ch := range subs {
		select {
		case ch <- etag:
		default:
		}
	}
	mu.Unlock()
}
