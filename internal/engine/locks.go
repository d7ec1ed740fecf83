package engine

import (
	"sort"
	"sync"

	"github.com/puzpuzpuz/xsync/v4"
)

// keyedLocker serialises read-modify-write cycles per assignment key.
// Mutexes are never evicted; there is one per judge of a hackathon.
type keyedLocker struct {
	locks *xsync.Map[string, *sync.Mutex]
}

func newKeyedLocker() *keyedLocker {
	return &keyedLocker{locks: xsync.NewMap[string, *sync.Mutex]()}
}

// lock acquires every key in sorted order and returns the release func
func (l *keyedLocker) lock(keys ...string) func() {
	sorted := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	held := make([]*sync.Mutex, 0, len(sorted))
	for _, k := range sorted {
		mu, _ := l.locks.LoadOrStore(k, &sync.Mutex{})
		mu.Lock()
		held = append(held, mu)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}
