// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package chat

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/pdiddy/research-chat/internal/index"
	"github.com/pdiddy/research-chat/pkg/types"
)

// condenseTmpl rewrites a follow-up into a question that stands on its own.
var condenseTmpl = template.Must(template.New("condense").Parse(`Given the following conversation and a follow up question, rephrase the follow up question to be a standalone question, in its original language.

Chat History:
{{.History}}
Follow Up Input: {{.Question}}
Standalone question:`))

// answerSystemTmpl carries the retrieved documents into the answer call.
var answerSystemTmpl = template.Must(template.New("answer").Parse(`Use the following pieces of context to answer the user's question.
If you don't know the answer, just say that you don't know, don't try to make up an answer.
----------------
{{range $i, $d := .Documents}}{{if $i}}

{{end}}{{$d.Text}}{{end}}`))

// summarizeTmpl folds pruned turns into the running summary.
var summarizeTmpl = template.Must(template.New("summarize").Parse(`Progressively summarize the lines of conversation provided, adding onto the previous summary returning a new summary.

EXAMPLE
Current summary:
The human asks what the AI thinks of artificial intelligence. The AI thinks artificial intelligence is a force for good.

New lines of conversation:
Human: Why do you think artificial intelligence is a force for good?
AI: Because artificial intelligence will help humans reach their full potential.

New summary:
The human asks what the AI thinks of artificial intelligence. The AI thinks artificial intelligence is a force for good because it will help humans reach their full potential.
END OF EXAMPLE

Current summary:
{{.Summary}}

New lines of conversation:
{{.Lines}}

New summary:`))

func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering %s prompt: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}

func condensePrompt(history, question string) (string, error) {
	return render(condenseTmpl, struct{ History, Question string }{history, question})
}

func answerMessages(hits []index.Hit, question string) ([]types.ChatMessage, error) {
	docs := make([]types.NormalizedDocument, len(hits))
	for i, h := range hits {
		docs[i] = h.Document
	}
	system, err := render(answerSystemTmpl, struct{ Documents []types.NormalizedDocument }{docs})
	if err != nil {
		return nil, err
	}
	return []types.ChatMessage{
		{Role: types.RoleSystem, Content: system},
		{Role: types.RoleUser, Content: question},
	}, nil
}

func summarizePrompt(summary, lines string) (string, error) {
	return render(summarizeTmpl, struct{ Summary, Lines string }{summary, lines})
}

// bufferString renders messages one per line with speaker prefixes.
func bufferString(messages []types.ChatMessage) string {
	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		lines = append(lines, speaker(m.Role)+": "+m.Content)
	}
	return strings.Join(lines, "\n")
}

func speaker(role string) string {
	switch role {
	case types.RoleUser:
		return "Human"
	case types.RoleAssistant:
		return "AI"
	case types.RoleSystem:
		return "System"
	default:
		return role
	}
}
