package explain

import (
	"fmt"
	"strings"

	"codeguru/internal/analyzer"
	"codeguru/internal/llm"
)

const maxListed = 5

const basePrompt = `You are CodeGuru, a programming teacher who makes complex code easy to understand.

Explain the reasoning behind design decisions before the mechanics. Use concrete analogies where they help, point out common pitfalls, and name the underlying concepts.

Format every answer as Markdown with headers and fenced code blocks.`

var depthGuidance = map[llm.Depth]string{
	llm.DepthSimple:   "Keep it short and plain. The reader may not be a programmer.",
	llm.DepthDetailed: "Walk through the code step by step for a working developer.",
	llm.DepthDeep:     "Focus on design rationale, trade-offs and the computer science behind the code.",
	llm.DepthAll:      "Cover a plain summary, a step-by-step walkthrough and a design deep dive.",
}

// SystemPrompt returns the fixed system prompt for a depth label.
func SystemPrompt(d llm.Depth) string {
	if g, ok := depthGuidance[d]; ok {
		return basePrompt + "\n\n" + g
	}
	return basePrompt
}

var sections = []struct {
	depth llm.Depth
	text  string
}{
	{llm.DepthSimple, `## Simple explanation
Explain what this code does in plain English, as if to a non-programmer.
`},
	{llm.DepthDetailed, `## Detailed breakdown
Walk through how the code works:
- what each major section does
- how data flows through it
- notable techniques or patterns
`},
	{llm.DepthDeep, `## Deep dive
Explain the concepts and design decisions:
- why it is structured this way
- which patterns or paradigms it uses
- the trade-offs of this approach
`},
}

// BuildPrompt renders the user prompt for a context bundle.
func BuildPrompt(b *analyzer.ContextBundle, d llm.Depth) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Analyze and explain this %s %s:\n\n", b.Language, b.Entity.Kind)
	fmt.Fprintf(&sb, "```%s\n%s\n```\n\n", b.Language, strings.TrimRight(b.Snippet, "\n"))

	fmt.Fprintf(&sb, "**Element**: `%s`\n", b.Entity.Name)
	if b.EnclosingClass != nil {
		fmt.Fprintf(&sb, "**Defined in class**: `%s`\n", b.EnclosingClass.Name)
	}
	if b.Path != "" {
		fmt.Fprintf(&sb, "**File**: %s (lines %d-%d)\n", b.Path, b.Entity.Span.StartLine, b.Entity.Span.EndLine)
	}
	if len(b.Entity.Parameters) > 0 {
		fmt.Fprintf(&sb, "**Parameters**: `%s`\n", strings.Join(b.Entity.Parameters, "`, `"))
	}
	if b.Entity.Doc != "" {
		fmt.Fprintf(&sb, "\n**Existing docs**:\n> %s\n", strings.ReplaceAll(b.Entity.Doc, "\n", "\n> "))
	}
	if len(b.Imports) > 0 {
		sb.WriteString("\n**Imports**:\n")
		for _, imp := range limit(b.Imports) {
			fmt.Fprintf(&sb, "- `%s`\n", imp)
		}
	}
	if len(b.Dependencies) > 0 {
		quoted := make([]string, 0, maxListed)
		for _, d := range limit(b.Dependencies) {
			quoted = append(quoted, "`"+d+"`")
		}
		fmt.Fprintf(&sb, "\n**Dependencies**: %s\n", strings.Join(quoted, ", "))
	}
	if b.Entity.Kind.Scored() {
		fmt.Fprintf(&sb, "\n**Cyclomatic complexity**: %d\n", b.Entity.Complexity)
	}
	sb.WriteString("\n---\n\n")
	writeSections(&sb, d)
	return sb.String()
}

// WholeTextPrompt renders the prompt used when the text cannot be analyzed
// structurally.
func WholeTextPrompt(path, language string, text []byte, d llm.Depth) string {
	var sb strings.Builder
	if language == "" {
		language = "text"
	}
	fmt.Fprintf(&sb, "Analyze and explain this %s file", language)
	if path != "" {
		fmt.Fprintf(&sb, " (%s)", path)
	}
	sb.WriteString(":\n\n")
	fmt.Fprintf(&sb, "```%s\n%s\n```\n\n---\n\n", language, strings.TrimRight(string(text), "\n"))
	writeSections(&sb, d)
	return sb.String()
}

// ConceptPrompt renders the prompt explaining a programming concept.
func ConceptPrompt(name string) string {
	return fmt.Sprintf(`Explain the programming concept: %q

Structure your explanation:

## Definition
A clear one-sentence definition.

## The problem it solves
Why the concept exists.

## How it works
A step-by-step breakdown with small code examples.

## When to use it
## When not to use it
## Common mistakes
## Related concepts
`, name)
}

func writeSections(sb *strings.Builder, d llm.Depth) {
	for _, s := range sections {
		if d == llm.DepthAll || d == s.depth {
			sb.WriteString(s.text)
			sb.WriteString("\n")
		}
	}
}

func limit(items []string) []string {
	if len(items) > maxListed {
		return items[:maxListed]
	}
	return items
}
