package index

import (
	"fmt"
	"strings"

	"codeguru/internal/store"
)

// Report renders a Markdown summary of the index: one row per file and the
// most complex entities.
func Report(s store.Store, top int) (string, error) {
	files, err := s.ListFiles()
	if err != nil {
		return "", fmt.Errorf("list files: %w", err)
	}

	var b strings.Builder
	b.WriteString("# Analysis summary\n\n")
	if len(files) == 0 {
		b.WriteString("No files analyzed.\n")
		return b.String(), nil
	}

	b.WriteString("| File | Language | Entities | Max complexity |\n")
	b.WriteString("|---|---|---:|---:|\n")
	for _, f := range files {
		fmt.Fprintf(&b, "| %s | %s | %d | %d |\n", f.Path, f.Language, f.Entities, f.MaxComplexity)
	}

	if top <= 0 {
		return b.String(), nil
	}
	hot, err := s.TopComplexity(top)
	if err != nil {
		return "", fmt.Errorf("top complexity: %w", err)
	}
	if len(hot) == 0 {
		return b.String(), nil
	}
	b.WriteString("\n## Most complex\n\n")
	for i, m := range hot {
		fmt.Fprintf(&b, "%d. `%s` (%s) in %s:%d, complexity %d\n",
			i+1, m.Entity.Name, m.Entity.Kind, m.FilePath, m.Entity.StartLine, m.Entity.Complexity)
	}
	return b.String(), nil
}
