// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// DriftInput is the subset of a state snapshot the drift scorer reads. It
// may come from a live run or from an arbitrary mapping supplied by a client.
type DriftInput struct {
	Question  string
	Draft     string
	Final     string
	Citations int
	Documents int
}

// DriftInputFromState extracts the scorer inputs from a State.
func DriftInputFromState(s State) DriftInput {
	return DriftInput{
		Question:  s.Question,
		Draft:     s.Draft,
		Final:     s.Final,
		Citations: len(s.Citations),
		Documents: len(s.Documents),
	}
}

// DriftInputFromMap extracts the scorer inputs from a loosely typed
// state-shaped mapping. Missing or mistyped keys read as empty.
func DriftInputFromMap(m map[string]any) DriftInput {
	return DriftInput{
		Question:  stringField(m, "question"),
		Draft:     stringField(m, "draft"),
		Final:     stringField(m, "final"),
		Citations: lenField(m, "citations"),
		Documents: lenField(m, "documents"),
	}
}

func stringField(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

func lenField(m map[string]any, key string) int {
	switch v := m[key].(type) {
	case []any:
		return len(v)
	case []map[string]any:
		return len(v)
	case []Citation:
		return len(v)
	case []Document:
		return len(v)
	case []string:
		return len(v)
	default:
		return 0
	}
}

// DriftReport is the drift scorer output. DriftScore lies in [0, 1]; lower
// means the answer stays closer to the question.
type DriftReport struct {
	DriftScore  float64  `json:"drift_score" yaml:"drift_score"`
	Overlap     float64  `json:"overlap" yaml:"overlap"`
	CiteScore   float64  `json:"cite_score" yaml:"cite_score"`
	LengthScore float64  `json:"length_score" yaml:"length_score"`
	Flags       []string `json:"flags" yaml:"flags"`
}
