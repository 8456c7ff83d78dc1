package llm

import (
	"context"
	"fmt"
	"strings"
)

// Message represents a single chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Depth is the requested level of detail for an explanation.
type Depth string

const (
	DepthSimple   Depth = "simple"
	DepthDetailed Depth = "detailed"
	DepthDeep     Depth = "deep"
	DepthAll      Depth = "all"
)

// Depths lists the valid depth labels in increasing order of detail.
var Depths = []Depth{DepthSimple, DepthDetailed, DepthDeep, DepthAll}

// ParseDepth validates a depth label. An empty label means detailed.
func ParseDepth(s string) (Depth, error) {
	if s == "" {
		return DepthDetailed, nil
	}
	d := Depth(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Depths {
		if d == known {
			return d, nil
		}
	}
	return "", fmt.Errorf("unknown depth %q (want simple, detailed, deep or all)", s)
}

// Call is one request to a provider.
type Call struct {
	Prompt      string
	System      string
	Depth       Depth
	Temperature float64
	MaxTokens   int
}

// Messages renders the call as a chat conversation.
func (c Call) Messages() []Message {
	var msgs []Message
	if c.System != "" {
		msgs = append(msgs, Message{Role: "system", Content: c.System})
	}
	return append(msgs, Message{Role: "user", Content: c.Prompt})
}

// Provider is one text-generation backend. Complete returns the generated
// text or a *ProviderError describing why the attempt failed.
type Provider interface {
	Name() string
	Complete(ctx context.Context, call Call) (string, error)
}

// Models picks a model per depth, falling back to a default.
type Models struct {
	Default string
	ByDepth map[Depth]string
}

// For returns the model for the given depth.
func (m Models) For(d Depth) string {
	if name, ok := m.ByDepth[d]; ok && name != "" {
		return name
	}
	return m.Default
}
