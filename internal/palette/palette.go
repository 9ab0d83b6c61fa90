// Package palette assigns display colors to live aliases. Assignment is a
// deterministic hash probe over a fixed 32-entry palette so the same alias
// connecting from the same address tends to keep its color across sessions,
// while live aliases never share an entry. When all 32 entries are held the
// allocator falls back to a procedural HSL color.
package palette

import (
	"fmt"
	"hash/fnv"
	"sync"
)

// colors is the fixed palette, hue-sorted.
var colors = [32]string{
	"#e6194b", "#f45b3c", "#f58231", "#f0a13a", "#ffd11a", "#d4e157",
	"#aadd22", "#7ccf2f", "#3cb44b", "#2eb97c", "#42d4b4", "#46e0d8",
	"#45c5e8", "#4fb0e6", "#4363d8", "#5a52e0", "#7258d8", "#911eb4",
	"#b437c9", "#d63ccf", "#f032e6", "#f25bb0", "#e84a7f", "#c94a62",
	"#9a6324", "#b0803a", "#c9a25a", "#808000", "#6b8e23", "#469990",
	"#5a7d9a", "#8073c9",
}

// Allocator tracks which palette entries are held by live aliases.
type Allocator struct {
	mu      sync.Mutex
	byColor map[string]string
	byAlias map[string]string
}

// New returns an empty Allocator.
func New() *Allocator {
	return &Allocator{
		byColor: make(map[string]string),
		byAlias: make(map[string]string),
	}
}

// Assign picks a color for alias, seeded by alias and client IP. A live
// alias keeps the color it already holds.
func (a *Allocator) Assign(alias, ip string) string {
	a.mu.Lock()
	defer a.mu.Unlock()

	if c, ok := a.byAlias[alias]; ok {
		return c
	}

	seed := hashSeed(alias + "|" + ip)
	start := int(seed % uint32(len(colors)))
	for i := 0; i < len(colors); i++ {
		c := colors[(start+i)%len(colors)]
		if _, held := a.byColor[c]; !held {
			a.byColor[c] = alias
			a.byAlias[alias] = c
			return c
		}
	}

	// Palette exhausted: derive a procedural color. These are unbounded and
	// not tracked against the palette.
	c := fmt.Sprintf("hsl(%d, 65%%, 55%%)", seed%360)
	a.byAlias[alias] = c
	return c
}

// Release frees the alias's color for reuse.
func (a *Allocator) Release(alias string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	c, ok := a.byAlias[alias]
	if !ok {
		return
	}
	delete(a.byAlias, alias)
	if a.byColor[c] == alias {
		delete(a.byColor, c)
	}
}

// Color returns the alias's current color, or "" when it holds none.
func (a *Allocator) Color(alias string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.byAlias[alias]
}

func hashSeed(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}
