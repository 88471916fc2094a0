package vesting

import (
	"sort"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
)

// lockSet hands out one mutex per key. Operations lock every key they touch
// in sorted order, so two operations never wait on each other in a cycle.
// Mutexes are never freed; keys are bounded by assets plus beneficiaries.
type lockSet struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newLockSet() *lockSet {
	return &lockSet{locks: make(map[string]*sync.Mutex)}
}

func (l *lockSet) get(key string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	return m
}

// Lock acquires the mutexes for keys and returns a function releasing them.
func (l *lockSet) Lock(keys ...string) (unlock func()) {
	uniq := mapset.NewThreadUnsafeSet(keys...).ToSlice()
	sort.Strings(uniq)

	held := make([]*sync.Mutex, 0, len(uniq))
	for _, k := range uniq {
		m := l.get(k)
		m.Lock()
		held = append(held, m)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}

func assetKey(asset string) string { return "asset:" + asset }

func beneficiaryKey(account string) string { return "beneficiary:" + account }
