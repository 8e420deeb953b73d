package core

import (
	"fmt"
	"strings"

	"github.com/eta-study/eta-server/internal/history"
	"github.com/eta-study/eta-server/internal/store"
)

// PromptHistory is how many trailing messages go into a prompt.
const PromptHistory = 12

const noMaterial = "(no course material uploaded yet)"

// Summaries joins stored context summaries, labelled by filename or type.
func Summaries(entries []store.ContextEntry) string {
	var sb strings.Builder
	for _, e := range entries {
		summary := strings.TrimSpace(e.Summary)
		if summary == "" {
			continue
		}
		label := e.Filename
		if label == "" {
			label = e.Type
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		fmt.Fprintf(&sb, "[%s] %s", label, summary)
	}
	return sb.String()
}

// PromptBuilder assembles the text sent with each generation request.
type PromptBuilder struct {
	sections []string
}

func (b *PromptBuilder) Section(title, body string) *PromptBuilder {
	body = strings.TrimSpace(body)
	if body == "" {
		return b
	}
	if title == "" {
		b.sections = append(b.sections, body)
	} else {
		b.sections = append(b.sections, title+":\n"+body)
	}
	return b
}

func (b *PromptBuilder) Material(entries []store.ContextEntry) *PromptBuilder {
	s := Summaries(entries)
	if s == "" {
		s = noMaterial
	}
	return b.Section("Course material summaries", s)
}

// Conversation adds the last PromptHistory messages as role-prefixed lines.
func (b *PromptBuilder) Conversation(msgs []history.Message) *PromptBuilder {
	var sb strings.Builder
	for _, m := range history.Recent(msgs, PromptHistory) {
		fmt.Fprintf(&sb, "%s: %s\n", m.Role, m.Content)
	}
	return b.Section("Conversation so far", sb.String())
}

func (b *PromptBuilder) String() string {
	return strings.Join(b.sections, "\n\n")
}
