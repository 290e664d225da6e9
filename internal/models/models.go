package models

import "markexpr/internal/marker"

// FileReport is the outcome of annotating one source file.
type FileReport struct {
	Path       string          `json:"path"`
	Language   string          `json:"language,omitempty"`
	Hash       string          `json:"hash,omitempty"`
	Records    []marker.Record `json:"records"`
	Annotated  bool            `json:"annotated"`
	Skipped    bool            `json:"skipped,omitempty"`
	OutputPath string          `json:"outputPath,omitempty"`
	Error      string          `json:"error,omitempty"`

	// Output is the annotated source. It is not serialized.
	Output []byte `json:"-"`
}

// Failed reports whether the file could not be processed.
func (r FileReport) Failed() bool {
	return r.Error != ""
}

// Summary aggregates a run.
type Summary struct {
	Files     int `json:"files"`
	Annotated int `json:"annotated"`
	Records   int `json:"records"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// Summarize counts the reports of a run.
func Summarize(reports []FileReport) Summary {
	var s Summary
	for _, r := range reports {
		s.Files++
		s.Records += len(r.Records)
		switch {
		case r.Failed():
			s.Failed++
		case r.Skipped:
			s.Skipped++
		case r.Annotated:
			s.Annotated++
		}
	}
	return s
}

// RunReport is the JSON document printed by `markexpr scan --json`.
type RunReport struct {
	Summary Summary      `json:"summary"`
	Files   []FileReport `json:"files"`
}
