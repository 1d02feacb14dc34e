// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package extract

import (
	"bytes"
	"text/template"

	"github.com/pdiddy/agentlens/pkg/types"
)

// notesPromptTmpl asks the model for cited bullet facts drawn from the
// retrieved sources.
var notesPromptTmpl = template.Must(template.New("notes").Parse(`You are a careful research assistant.
Question: {{.Question}}

Given the sources below, extract 5-10 bullet facts that answer the question.
Each bullet must end with a citation like (source: URL).

SOURCES:
{{range $i, $d := .Documents}}{{if $i}}

{{end}}TITLE: {{$d.Title}}
URL: {{$d.URL}}
CONTENT:
{{$d.Content}}{{end}}
`))

// renderPrompt executes the notes prompt for question and docs.
func renderPrompt(question string, docs []types.Document) (string, error) {
	var buf bytes.Buffer
	data := struct {
		Question  string
		Documents []types.Document
	}{Question: question, Documents: docs}
	if err := notesPromptTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
