package task

// WeightVersion identifies the weighting methodology version for attestation.
const WeightVersion = "1.0"

// Weight holds computed difficulty factors for a task.
type Weight struct {
	Base            float64 `json:"base"`
	ComplexityBonus float64 `json:"complexity_bonus"`
	LengthFactor    float64 `json:"length_factor"`
}

// ComputeWeight calculates a task's difficulty weight based on objective factors.
// The weight is computed from:
//   - Complexity tier (Medium and Complex tasks need longer plans)
//   - Ground-truth flow length (more steps = more places to go wrong)
//
// Used to weight per-agent averages across a batch.
func ComputeWeight(t *Task) Weight {
	w := Weight{
		Base: 1.0,
	}

	switch t.Complexity {
	case Medium:
		w.ComplexityBonus = 0.3
	case Complex:
		w.ComplexityBonus = 0.6
	}
	w.Base += w.ComplexityBonus

	// 20 steps = 1.0 raw, capped at 0.4
	steps := len(t.Flow().Compact())
	w.LengthFactor = min(float64(steps)/20.0*0.4, 0.4)
	w.Base += w.LengthFactor

	return w
}
