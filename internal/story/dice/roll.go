// Package dice implements the roll-outcome check that gates branching on
// roll scenes.
package dice

import "math/rand"

// DefaultDifficulty is the check target used when a roll scene does not
// declare one.
const DefaultDifficulty = 10

// DieSides is the number of sides on the check die.
const DieSides = 20

// CheckResult captures a resolved skill check.
type CheckResult struct {
	Value      int
	Difficulty int
	Success    bool
}

// Check rolls a single d20 against difficulty and reports success.
//
// Check is deterministic with respect to the provided random source: the
// same source state and difficulty always produce the same result. A
// difficulty of zero or below uses DefaultDifficulty. Success means the
// rolled value meets or exceeds the difficulty.
func Check(rng *rand.Rand, difficulty int) CheckResult {
	if difficulty <= 0 {
		difficulty = DefaultDifficulty
	}
	value := rng.Intn(DieSides) + 1
	return CheckResult{
		Value:      value,
		Difficulty: difficulty,
		Success:    value >= difficulty,
	}
}

// CheckSeeded runs Check with a source seeded from seed. Useful where the
// caller wants reproducible outcomes without managing an *rand.Rand.
func CheckSeeded(seed int64, difficulty int) CheckResult {
	return Check(rand.New(rand.NewSource(seed)), difficulty)
}
