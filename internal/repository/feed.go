package repository

import "sync"

// changeFeed fans out "shelf changed" signals per user. Signals coalesce:
// a watcher that has not consumed the previous signal sees just one.
type changeFeed struct {
	mu       sync.Mutex
	nextID   int
	watchers map[uint]map[int]chan struct{}
}

func newChangeFeed() *changeFeed {
	return &changeFeed{watchers: make(map[uint]map[int]chan struct{})}
}

func (f *changeFeed) subscribe(userID uint) (<-chan struct{}, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.nextID
	f.nextID++
	ch := make(chan struct{}, 1)
	if f.watchers[userID] == nil {
		f.watchers[userID] = make(map[int]chan struct{})
	}
	f.watchers[userID][id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			delete(f.watchers[userID], id)
			if len(f.watchers[userID]) == 0 {
				delete(f.watchers, userID)
			}
		})
	}
}

func (f *changeFeed) publish(userID uint) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, ch := range f.watchers[userID] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (f *changeFeed) watcherCount(userID uint) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.watchers[userID])
}
