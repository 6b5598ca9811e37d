package tournament

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

var (
	// ErrUnparseableVerdict means the judge answered with something other than A, B or Tie.
	ErrUnparseableVerdict = errors.New("unparseable verdict")
	// ErrNoVerdict means the judge produced no answer for a pair.
	ErrNoVerdict = errors.New("no verdict")
)

// Verdict is a pairwise judgment: A wins, B wins, or a tie.
type Verdict string

const (
	VerdictA   Verdict = "A"
	VerdictB   Verdict = "B"
	VerdictTie Verdict = "Tie"
)

// Valid reports whether v is one of A, B or Tie.
func (v Verdict) Valid() bool {
	switch v {
	case VerdictA, VerdictB, VerdictTie:
		return true
	}
	return false
}

// Scores returns the actual scores (s_a, s_b) for v.
func (v Verdict) Scores() (float64, float64) {
	switch v {
	case VerdictA:
		return 1, 0
	case VerdictB:
		return 0, 1
	default:
		return 0.5, 0.5
	}
}

// Swap returns the verdict seen from the other side of the pair.
func (v Verdict) Swap() Verdict {
	switch v {
	case VerdictA:
		return VerdictB
	case VerdictB:
		return VerdictA
	}
	return v
}

// ParseVerdict extracts a verdict from judge output.
//
// Accepted forms are a bare token ("A", "B", "Tie", optionally quoted) on the
// last non-empty line, or a JSON object with an "answer" field, possibly inside
// a code fence and possibly malformed enough to need repair.
func ParseVerdict(raw string) (Verdict, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", ErrNoVerdict
	}

	if start := strings.Index(s, "{"); start >= 0 {
		obj := s[start:]
		if end := strings.LastIndex(obj, "}"); end >= 0 {
			obj = obj[:end+1]
		}
		if v, ok := parseAnswerObject(obj); ok {
			return v, nil
		}
		return "", fmt.Errorf("%w: %q", ErrUnparseableVerdict, excerpt(s))
	}

	lines := strings.Split(s, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" || strings.HasPrefix(line, "```") {
			continue
		}
		if v, ok := normalize(line); ok {
			return v, nil
		}
		break
	}
	return "", fmt.Errorf("%w: %q", ErrUnparseableVerdict, excerpt(s))
}

func parseAnswerObject(obj string) (Verdict, bool) {
	var payload struct {
		Answer string `json:"answer"`
	}
	if err := json.Unmarshal([]byte(obj), &payload); err != nil {
		repaired, rerr := jsonrepair.JSONRepair(obj)
		if rerr != nil {
			return "", false
		}
		if err := json.Unmarshal([]byte(repaired), &payload); err != nil {
			return "", false
		}
	}
	return normalize(payload.Answer)
}

func normalize(token string) (Verdict, bool) {
	token = strings.Trim(strings.TrimSpace(token), "\"'`.*")
	switch strings.ToLower(token) {
	case "a":
		return VerdictA, true
	case "b":
		return VerdictB, true
	case "tie":
		return VerdictTie, true
	}
	return "", false
}

func excerpt(s string) string {
	const limit = 80
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
