// Package keystep scores how well an agent's key tools cover a ground-truth flow.
package keystep

import "github.com/geoplan-bench/trajeval/internal/task"

// FallbackFraction is the share of a flow used as its key set when none is supplied.
const FallbackFraction = 0.7

// Score holds key-step recall, key-tool precision and their harmonic mean.
type Score struct {
	KeySteps  []string `json:"key_steps"`
	KeyTools  []string `json:"key_tools"`
	Recall    float64  `json:"key_step_recall"`
	Precision float64  `json:"key_tool_precision"`
	F1        float64  `json:"f1_score"`
}

// Fallback returns the first max(1, floor(0.7*len)) tools of flow, skipping nulls.
func Fallback(flow task.Trajectory) []string {
	compact := flow.Compact()
	if len(compact) == 0 {
		return nil
	}
	n := max(1, int(float64(len(compact))*FallbackFraction))
	out := make([]string, n)
	copy(out, compact[:n])
	return out
}

// Evaluate scores an agent against the ground truth.
//
// Recall is the share of distinct key steps present in the ground truth;
// precision is the share of distinct key tools present in it. Missing key
// sets fall back to a prefix of the corresponding flow. Empty sets score 0.
func Evaluate(groundTruth task.Trajectory, keySteps []string, agentFlow task.Trajectory, keyTools []string) Score {
	if len(keySteps) == 0 {
		keySteps = Fallback(groundTruth)
	}
	if len(keyTools) == 0 {
		keyTools = Fallback(agentFlow)
	}

	gt := toSet(groundTruth.Compact())
	s := Score{
		KeySteps:  keySteps,
		KeyTools:  keyTools,
		Recall:    coverage(keySteps, gt),
		Precision: coverage(keyTools, gt),
	}
	if s.Recall+s.Precision > 0 {
		s.F1 = 2 * s.Precision * s.Recall / (s.Precision + s.Recall)
	}
	return s
}

// coverage returns |set(items) ∩ ref| / |items|.
func coverage(items []string, ref map[string]bool) float64 {
	if len(items) == 0 {
		return 0
	}
	hit := 0
	for tool := range toSet(items) {
		if ref[tool] {
			hit++
		}
	}
	return float64(hit) / float64(len(items))
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, it := range items {
		if it != "" {
			set[it] = true
		}
	}
	return set
}
