// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package draft

import (
	"bytes"
	"text/template"
)

// draftPromptTmpl asks the model to answer strictly from the latest notes.
var draftPromptTmpl = template.Must(template.New("draft").Parse(`Write a clear, structured answer to the user's question using ONLY the notes.
Cite sources inline like (source: URL).

Question: {{.Question}}

Notes:
{{.Notes}}
`))

func renderPrompt(question, notes string) (string, error) {
	var buf bytes.Buffer
	data := struct{ Question, Notes string }{Question: question, Notes: notes}
	if err := draftPromptTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
