package approval

import "time"

// Level is the criticality classification of an action. It determines the
// pending timeout and whether auto-approval is ever permitted.
type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// Valid reports whether l is a known criticality level.
func (l Level) Valid() bool {
	switch l {
	case LevelLow, LevelMedium, LevelHigh:
		return true
	}
	return false
}

func (l Level) rank() int {
	switch l {
	case LevelHigh:
		return 2
	case LevelMedium:
		return 1
	default:
		return 0
	}
}

// MaxLevel returns the higher of two levels under HIGH > MEDIUM > LOW.
func MaxLevel(a, b Level) Level {
	if b.rank() > a.rank() {
		return b
	}
	return a
}

// Timeout returns how long a pending request at this level waits for a human
// decision before the sweep expires it.
func (l Level) Timeout() time.Duration {
	switch l {
	case LevelHigh:
		return 5 * time.Minute
	case LevelLow:
		return 60 * time.Minute
	default:
		return 15 * time.Minute
	}
}
