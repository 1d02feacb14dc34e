// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package quality

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/pdiddy/agentlens/pkg/types"
)

// Drift flags.
const (
	FlagNoContent = "no question or answer available for analysis"
	FlagOffTopic  = "answer may be off topic relative to question"
	FlagLowCites  = "citation coverage is low"
	FlagShallow   = "answer seems shallow"
)

const (
	overlapWeight = 0.5
	citeWeight    = 0.3
	lengthWeight  = 0.2

	fullLengthChars = 800.0

	offTopicBelow = 0.25
	lowCitesBelow = 0.5
	shallowBelow  = 0.4
)

// wordPattern matches word tokens: letters, digits and underscore.
var wordPattern = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// Drift scores how far the answer in in strays from its question. The
// answer is the draft, or the final answer when the draft is empty. With
// no question or no answer the result is maximal drift with a single flag.
func Drift(in types.DriftInput) types.DriftReport {
	answer := in.Draft
	if answer == "" {
		answer = in.Final
	}
	if in.Question == "" || answer == "" {
		return types.DriftReport{
			DriftScore: 1,
			Flags:      []string{FlagNoContent},
		}
	}

	qWords := words(in.Question)
	aWords := words(answer)
	overlap := 0.0
	if len(qWords) > 0 {
		shared := 0
		for w := range qWords {
			if aWords[w] {
				shared++
			}
		}
		overlap = float64(shared) / float64(len(qWords))
	}

	citeScore := Coverage(in.Citations)
	lengthScore := min(1, float64(utf8.RuneCountInString(answer))/fullLengthChars)
	quality := overlapWeight*overlap + citeWeight*citeScore + lengthWeight*lengthScore

	flags := []string{}
	if overlap < offTopicBelow {
		flags = append(flags, FlagOffTopic)
	}
	if citeScore < lowCitesBelow {
		flags = append(flags, FlagLowCites)
	}
	if lengthScore < shallowBelow {
		flags = append(flags, FlagShallow)
	}

	return types.DriftReport{
		DriftScore:  max(0, min(1, 1-quality)),
		Overlap:     overlap,
		CiteScore:   citeScore,
		LengthScore: lengthScore,
		Flags:       flags,
	}
}

// DriftFromMap scores an arbitrary state-shaped mapping.
func DriftFromMap(m map[string]any) types.DriftReport {
	return Drift(types.DriftInputFromMap(m))
}

func words(s string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range wordPattern.FindAllString(strings.ToLower(s), -1) {
		set[w] = true
	}
	return set
}
