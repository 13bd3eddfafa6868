package services

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
	"sync"

	"admissionengine/internal/domain"
)

type randomDrawer struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomDrawer returns a Drawer seeded from crypto/rand.
func NewRandomDrawer() domain.Drawer {
	var seed [32]byte
	if _, err := crand.Read(seed[:]); err != nil {
		// crypto/rand does not fail on supported platforms.
		binary.LittleEndian.PutUint64(seed[:], rand.Uint64())
	}
	return &randomDrawer{rng: rand.New(rand.NewChaCha8(seed))}
}

// Draw runs a partial Fisher-Yates shuffle over a copy of pool and returns
// its first k elements.
func (d *randomDrawer) Draw(pool []string, k int) []string {
	if k <= 0 || len(pool) == 0 {
		return nil
	}
	if k > len(pool) {
		k = len(pool)
	}
	out := make([]string, len(pool))
	copy(out, pool)

	d.mu.Lock()
	defer d.mu.Unlock()
	for i := 0; i < k; i++ {
		j := i + d.rng.IntN(len(out)-i)
		out[i], out[j] = out[j], out[i]
	}
	return out[:k]
}

// without returns the members of pool not present in any of the exclusions,
// preserving order.
func without(pool []string, exclusions ...[]string) []string {
	skip := make(map[string]struct{})
	for _, ex := range exclusions {
		for _, uid := range ex {
			skip[uid] = struct{}{}
		}
	}
	out := make([]string, 0, len(pool))
	for _, uid := range pool {
		if _, ok := skip[uid]; ok {
			continue
		}
		out = append(out, uid)
	}
	return out
}
