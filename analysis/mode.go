package analysis

import (
	"fmt"
	"strings"
)

// Mode selects which backend detector set runs. Fast mode collects
// evidence from several parallel signals (frequency, rPPG, speech
// transcript); deep mode runs the single composite classifier.
type Mode string

const (
	ModeFast Mode = "fast"
	ModeDeep Mode = "deep"
)

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(s) {
	case string(ModeFast):
		return ModeFast, nil
	case string(ModeDeep):
		return ModeDeep, nil
	default:
		return ModeDeep, fmt.Errorf("unknown analysis mode: %s", s)
	}
}
