package result

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/zeebo/blake3"

	"github.com/geoplan-bench/trajeval/internal/task"
)

// AttestationFile holds the integrity hashes of a results directory.
const AttestationFile = "attestation.json"

// Attestation records hashes of every result file so a results directory can
// be checked for edits after generation.
type Attestation struct {
	Version        string            `json:"version"`
	WeightVersion  string            `json:"weight_version"`
	GeneratedAt    time.Time         `json:"generated_at"`
	CorpusHash     string            `json:"corpus_hash,omitempty"`
	ImportanceHash string            `json:"importance_hash,omitempty"`
	Files          map[string]string `json:"files"`
}

// AttestOptions describes the inputs an attestation records besides the result files.
type AttestOptions struct {
	Version        string
	CorpusHash     string
	ImportanceFile string // hashed when set
}

// HashBytes returns the BLAKE3 hash of data as a prefixed hex string.
func HashBytes(data []byte) string {
	h := blake3.Sum256(data)
	return "blake3:" + hex.EncodeToString(h[:])
}

// HashFile hashes the contents of path.
func HashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return HashBytes(data), nil
}

// attestedFiles lists the result files covered by an attestation, relative to dir.
func attestedFiles(dir string) ([]string, error) {
	reports, err := ReportFiles(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(reports)+1)
	for _, r := range reports {
		names = append(names, filepath.Base(r))
	}
	if _, err := os.Stat(filepath.Join(dir, SummaryFile)); err == nil {
		names = append(names, SummaryFile)
	}
	sort.Strings(names)
	return names, nil
}

// Attest hashes the reports and summary in dir.
func Attest(dir string, opts AttestOptions) (*Attestation, error) {
	names, err := attestedFiles(dir)
	if err != nil {
		return nil, err
	}
	a := &Attestation{
		Version:       opts.Version,
		WeightVersion: task.WeightVersion,
		GeneratedAt:   time.Now().UTC(),
		CorpusHash:    opts.CorpusHash,
		Files:         make(map[string]string, len(names)),
	}
	if opts.ImportanceFile != "" {
		h, err := HashFile(opts.ImportanceFile)
		if err != nil {
			return nil, fmt.Errorf("hashing importance table: %w", err)
		}
		a.ImportanceHash = h
	}
	for _, name := range names {
		h, err := HashFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("hashing %s: %w", name, err)
		}
		a.Files[name] = h
	}
	return a, nil
}

// CheckImportance compares the importance table at path with the attested hash.
// It returns the current hash alongside the result.
func (a *Attestation) CheckImportance(path string) (bool, string, error) {
	got, err := HashFile(path)
	if err != nil {
		return false, "", fmt.Errorf("hashing importance table: %w", err)
	}
	return got == a.ImportanceHash, got, nil
}

// Save writes attestation.json into dir.
func (a *Attestation) Save(dir string) error {
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling attestation: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, AttestationFile), data, 0644); err != nil {
		return fmt.Errorf("writing attestation.json: %w", err)
	}
	return nil
}

// LoadAttestation reads attestation.json from dir.
func LoadAttestation(dir string) (*Attestation, error) {
	data, err := os.ReadFile(filepath.Join(dir, AttestationFile))
	if err != nil {
		return nil, fmt.Errorf("reading attestation.json: %w", err)
	}
	var a Attestation
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("parsing attestation.json: %w", err)
	}
	return &a, nil
}

// Mismatch is an attested file whose contents changed.
type Mismatch struct {
	File     string `json:"file"`
	Expected string `json:"expected"`
	Got      string `json:"got"`
}

// Verification is the outcome of checking a directory against its attestation.
type Verification struct {
	Attestation *Attestation
	Matched     []string
	Mismatched  []Mismatch
	Missing     []string
	Unattested  []string
}

// OK reports whether every attested file is present and unchanged, and no
// result file was added afterwards.
func (v *Verification) OK() bool {
	return len(v.Mismatched) == 0 && len(v.Missing) == 0 && len(v.Unattested) == 0
}

// Verify recomputes the hashes of the result files in dir and compares them
// with attestation.json.
func Verify(dir string) (*Verification, error) {
	a, err := LoadAttestation(dir)
	if err != nil {
		return nil, err
	}
	v := &Verification{Attestation: a}

	names := make([]string, 0, len(a.Files))
	for name := range a.Files {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		got, err := HashFile(filepath.Join(dir, name))
		switch {
		case errors.Is(err, fs.ErrNotExist):
			v.Missing = append(v.Missing, name)
		case err != nil:
			return nil, fmt.Errorf("hashing %s: %w", name, err)
		case got != a.Files[name]:
			v.Mismatched = append(v.Mismatched, Mismatch{File: name, Expected: a.Files[name], Got: got})
		default:
			v.Matched = append(v.Matched, name)
		}
	}

	present, err := attestedFiles(dir)
	if err != nil {
		return nil, err
	}
	for _, name := range present {
		if _, ok := a.Files[name]; !ok {
			v.Unattested = append(v.Unattested, name)
		}
	}
	return v, nil
}
