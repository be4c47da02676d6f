package narrative

import (
	"strings"

	"github.com/focusforward/caseguard/pkg/rules"
)

// Context is what the rule layer tells the generator about a note.
type Context struct {
	// Forced is the classification the output must carry. It is empty when
	// the rule layer deferred.
	Forced     rules.Tier
	Rules      []rules.RuleID
	Pending    []string
	Advisories []string
	Hints      []string
}

// ContextFor builds a Context from a rule evaluation.
func ContextFor(ev rules.Evaluation, advisories, hints []string) Context {
	c := Context{
		Rules:      ev.Verdict.Rules,
		Pending:    ev.Pending,
		Advisories: advisories,
		Hints:      hints,
	}
	if ev.Verdict.Determined() {
		c.Forced = ev.Verdict.Tier
	}
	return c
}

// Empty reports whether the context carries nothing worth sending.
func (c Context) Empty() bool {
	return c.Forced == "" && len(c.Rules) == 0 && len(c.Pending) == 0 &&
		len(c.Advisories) == 0 && len(c.Hints) == 0
}

// Block renders the context as the text appended to the note. Sections
// appear only when they have content; an empty Context renders as "".
func (c Context) Block() string {
	if c.Empty() {
		return ""
	}

	var b strings.Builder
	b.WriteString("\n\n--- rule engine context ---\n")
	if c.Forced != "" {
		b.WriteString("Required classification: ")
		b.WriteString(string(c.Forced))
		b.WriteString("\n")
	}
	if len(c.Rules) > 0 {
		ids := make([]string, len(c.Rules))
		for i, id := range c.Rules {
			ids[i] = string(id)
		}
		b.WriteString("Triggered rules: ")
		b.WriteString(strings.Join(ids, ", "))
		b.WriteString("\n")
	}
	writeList(&b, "Pending investigations (describe as awaited, never as completed or normal):", c.Pending)
	writeList(&b, "Documentation advisories:", c.Advisories)
	writeList(&b, "Reviewer hints:", c.Hints)
	return b.String()
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	b.WriteString(title)
	b.WriteString("\n")
	for _, it := range items {
		b.WriteString("- ")
		b.WriteString(it)
		b.WriteString("\n")
	}
}
