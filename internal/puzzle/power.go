package puzzle

import (
	"math/rand/v2"
	"time"
)

// PowerType names one of the one-shot reveal abilities
type PowerType string

const (
	MiddleLetter PowerType = "middle_letter"
	SwapReveal   PowerType = "swap_reveal"
	Bomb         PowerType = "bomb"
)

// BombEffectDuration is how long a bomb-revealed cell keeps its effect flag
const BombEffectDuration = 600 * time.Millisecond

// AllPowers lists the power types in display order
var AllPowers = []PowerType{MiddleLetter, SwapReveal, Bomb}

// Valid reports whether t is a known power type
func (t PowerType) Valid() bool {
	switch t {
	case MiddleLetter, SwapReveal, Bomb:
		return true
	}
	return false
}

// PowerState is the remaining uses of one power type
type PowerState struct {
	Type PowerType `json:"type"`
	Uses int       `json:"uses"`
}

// DefaultPowers returns a fresh power set with the given number of uses per type
func DefaultPowers(uses int) []PowerState {
	if uses < 0 {
		uses = 0
	}
	out := make([]PowerState, len(AllPowers))
	for i, t := range AllPowers {
		out[i] = PowerState{Type: t, Uses: uses}
	}
	return out
}

// ClonePowers copies a power slice
func ClonePowers(p []PowerState) []PowerState {
	if p == nil {
		return nil
	}
	out := make([]PowerState, len(p))
	copy(out, p)
	return out
}

// Rand is the randomness source for SwapReveal and Bomb target selection
type Rand interface {
	IntN(n int) int
}

// NewRand returns a seeded PCG source
func NewRand(seed uint64) Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func usesLeft(powers []PowerState, t PowerType) int {
	for _, p := range powers {
		if p.Type == t {
			return p.Uses
		}
	}
	return 0
}

func consume(powers []PowerState, t PowerType) {
	for i := range powers {
		if powers[i].Type == t && powers[i].Uses > 0 {
			powers[i].Uses--
			return
		}
	}
}
