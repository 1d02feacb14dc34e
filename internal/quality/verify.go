// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package quality scores answers. Verify is the quality gate that decides
// whether a run ends or retries; Drift is an on-demand audit of any state
// snapshot and never affects routing.
package quality

import (
	"unicode/utf8"

	"github.com/pdiddy/agentlens/pkg/types"
)

// Quality gate issues, in the order they are reported.
const (
	IssueInsufficientCitations = "insufficient citations"
	IssueTooShallow            = "too shallow"
)

// IssueExhausted marks a run that stopped because the retry budget ran out.
const IssueExhausted = "quality gate exhausted"

const (
	minCitations  = 2
	minDraftChars = 200
	fullCoverage  = 4.0
)

// Coverage returns min(1, citations/4).
func Coverage(citations int) float64 {
	return min(1, float64(citations)/fullCoverage)
}

// Verify returns a copy of s with Verification recomputed for the current
// draft and Final set to the draft when no issue was found, or "" otherwise.
// Attempts counts verifier passes across the run.
func Verify(s types.State) types.State {
	out := s.Clone()
	n := len(out.Citations)

	issues := []string{}
	if n < minCitations {
		issues = append(issues, IssueInsufficientCitations)
	}
	if utf8.RuneCountInString(out.Draft) < minDraftChars {
		issues = append(issues, IssueTooShallow)
	}

	out.Verification = types.Verification{
		CoverageScore: Coverage(n),
		Issues:        issues,
		Attempts:      s.Verification.Attempts + 1,
	}
	out.Final = ""
	if len(issues) == 0 {
		out.Final = out.Draft
	}
	return out
}
