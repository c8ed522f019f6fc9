package render

import (
	"fmt"
	"sync"
	"unicode/utf16"
)

const (
	channelMin = 60
	channelMax = 220
)

type RGB struct {
	R, G, B uint8
}

func (c RGB) String() string {
	return fmt.Sprintf("rgb(%d,%d,%d)", c.R, c.G, c.B)
}

// RGBA renders the colour with the given alpha.
func (c RGB) RGBA(alpha float64) string {
	return fmt.Sprintf("rgba(%d,%d,%d,%.2f)", c.R, c.G, c.B, alpha)
}

// Neutral is returned for empty keys.
var Neutral = RGB{R: 128, G: 128, B: 128}

// ColorAssigner maps identity strings to stable bubble colours. Results are
// memoised per instance.
type ColorAssigner struct {
	cache sync.Map
}

func NewColorAssigner() *ColorAssigner {
	return &ColorAssigner{}
}

func (a *ColorAssigner) ColorFor(key string) RGB {
	if key == "" {
		return Neutral
	}
	if v, ok := a.cache.Load(key); ok {
		return v.(RGB)
	}
	c := colorFromHash(hashKey(key))
	a.cache.Store(key, c)
	return c
}

// hashKey is the x31 polynomial hash over UTF-16 code units in wrapping
// 32-bit arithmetic.
func hashKey(key string) int32 {
	var h int32
	for _, u := range utf16.Encode([]rune(key)) {
		h = int32(u) + (h << 5) - h
	}
	return h
}

func colorFromHash(h int32) RGB {
	return RGB{
		R: clampChannel(uint8(h >> 16)),
		G: clampChannel(uint8(h >> 8)),
		B: clampChannel(uint8(h)),
	}
}

func clampChannel(v uint8) uint8 {
	if v < channelMin {
		return channelMin
	}
	if v > channelMax {
		return channelMax
	}
	return v
}
