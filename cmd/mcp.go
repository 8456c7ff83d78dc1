package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"codeguru/internal/analyzer"
	"codeguru/internal/config"
	"codeguru/internal/explain"
	"codeguru/internal/llm"
	"codeguru/internal/store"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start an MCP server exposing analysis and explanation tools",
	RunE:  runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	s := mcpserver.NewMCPServer("codeguru", "1.0.0", mcpserver.WithToolCapabilities(false))

	s.AddTool(analyzeSourceTool(), makeAnalyzeHandler(a.analyzer))
	s.AddTool(listEntitiesTool(), makeListEntitiesHandler(a.analyzer))
	s.AddTool(explainCodeTool(), makeExplainHandler(a.engine))

	// Search the batch index when one exists for the working directory.
	wd, err := os.Getwd()
	if err != nil {
		return err
	}
	if dbPath := config.DBPath(wd); fileExists(dbPath) {
		st, err := store.Open(dbPath)
		if err != nil {
			return fmt.Errorf("open index: %w", err)
		}
		defer st.Close()
		s.AddTool(findEntityTool(), makeFindEntityHandler(st))
	}

	return mcpserver.ServeStdio(s)
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// --- Tool schema builders ---

var readOnlyAnnotation = mcp.ToolAnnotation{
	ReadOnlyHint:    mcp.ToBoolPtr(true),
	DestructiveHint: mcp.ToBoolPtr(false),
	IdempotentHint:  mcp.ToBoolPtr(true),
	OpenWorldHint:   mcp.ToBoolPtr(false),
}

func analyzeSourceTool() mcp.Tool {
	return mcp.NewTool("analyze_source",
		mcp.WithDescription("Parse a source file or snippet and return its structural entities (module, classes, functions, methods, imports) with spans, parents and cyclomatic complexity as JSON."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("path",
			mcp.Description("File to analyze. Required unless source is given."),
		),
		mcp.WithString("source",
			mcp.Description("Source text to analyze instead of reading a file."),
		),
		mcp.WithString("language",
			mcp.Description("Language tag (python, javascript, typescript, tsx, go, java, c, cpp, rust). Detected from path when omitted."),
		),
	)
}

func listEntitiesTool() mcp.Tool {
	return mcp.NewTool("list_entities",
		mcp.WithDescription("List the classes, functions and methods of a source file as an outline with line ranges and complexity."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("File to outline"),
		),
		mcp.WithString("kind",
			mcp.Description("Optional kind filter: class, function, method or import."),
		),
	)
}

func explainCodeTool() mcp.Tool {
	return mcp.NewTool("explain_code",
		mcp.WithDescription("Generate a Markdown explanation of a file, function or class using the configured LLM providers."),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{
			ReadOnlyHint:    mcp.ToBoolPtr(true),
			DestructiveHint: mcp.ToBoolPtr(false),
			IdempotentHint:  mcp.ToBoolPtr(true),
			OpenWorldHint:   mcp.ToBoolPtr(true),
		}),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("File containing the code"),
		),
		mcp.WithString("function",
			mcp.Description("Function or Class.method to explain"),
		),
		mcp.WithString("class",
			mcp.Description("Class to explain"),
		),
		mcp.WithString("depth",
			mcp.Description("Level of detail (default detailed)"),
			mcp.Enum("simple", "detailed", "deep", "all"),
		),
	)
}

func findEntityTool() mcp.Tool {
	return mcp.NewTool("find_entity",
		mcp.WithDescription("Find classes and functions by name across the analyzed project index."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Exact entity name"),
		),
	)
}

// --- Handler factories ---

func makeAnalyzeHandler(a *analyzer.Analyzer) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path := req.GetString("path", "")
		source := req.GetString("source", "")
		lang := req.GetString("language", "")

		var (
			res *analyzer.Analysis
			err error
		)
		switch {
		case source != "":
			if lang == "" {
				lang = a.Registry().DetectLanguage(path)
			}
			res, err = a.Analyze(ctx, path, []byte(source), lang)
		case path != "" && lang != "":
			var src []byte
			if src, err = a.ReadSource(path); err == nil {
				res, err = a.Analyze(ctx, path, src, lang)
			}
		case path != "":
			res, err = a.AnalyzeFile(ctx, path)
		default:
			return mcp.NewToolResultError("path or source is required"), nil
		}
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("analysis failed: %v", err)), nil
		}

		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("encode failed: %v", err)), nil
		}
		return mcp.NewToolResultText(string(data)), nil
	}
}

func makeListEntitiesHandler(a *analyzer.Analyzer) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path := req.GetString("path", "")
		if path == "" {
			return mcp.NewToolResultError("path is required"), nil
		}
		kind := analyzer.EntityKind(strings.ToLower(req.GetString("kind", "")))

		res, err := a.AnalyzeFile(ctx, path)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("analysis failed: %v", err)), nil
		}
		return mcp.NewToolResultText(formatOutline(res, kind)), nil
	}
}

func makeExplainHandler(e *explain.Engine) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		path := req.GetString("path", "")
		if path == "" {
			return mcp.NewToolResultError("path is required"), nil
		}
		depth, err := llm.ParseDepth(req.GetString("depth", ""))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		ex, err := e.Explain(ctx, explain.Target{
			Path:     path,
			Function: req.GetString("function", ""),
			Class:    req.GetString("class", ""),
			Depth:    depth,
		})
		if err != nil {
			var nf *explain.EntityNotFoundError
			if errors.As(err, &nf) && len(nf.Candidates) > 0 {
				return mcp.NewToolResultError(fmt.Sprintf("%v; available: %s", err, strings.Join(nf.Candidates, ", "))), nil
			}
			return mcp.NewToolResultError(fmt.Sprintf("explain failed: %v", err)), nil
		}
		return mcp.NewToolResultText(ex.Text), nil
	}
}

func makeFindEntityHandler(st store.Store) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name := req.GetString("name", "")
		if name == "" {
			return mcp.NewToolResultError("name is required"), nil
		}
		matches, err := st.FindEntities(name)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
		}
		if len(matches) == 0 {
			return mcp.NewToolResultText(fmt.Sprintf("No entity named %q in the index.", name)), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "## Entities named %q (%d)\n\n", name, len(matches))
		for _, m := range matches {
			fmt.Fprintf(&sb, "- **%s** %s in `%s` lines %d-%d (%s, complexity %d)\n",
				m.Entity.Kind, m.Entity.Name, m.FilePath, m.Entity.StartLine, m.Entity.EndLine, m.Language, m.Entity.Complexity)
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

// --- Formatting helpers ---

func formatOutline(res *analyzer.Analysis, kind analyzer.EntityKind) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## %s (%s)\n\n", filepath.ToSlash(res.Path), res.Language)

	depth := make([]int, len(res.Entities))
	for _, e := range res.Entities {
		if e.Parent == analyzer.NoParent {
			continue
		}
		depth[e.ID] = depth[e.Parent] + 1
		if kind != "" && e.Kind != kind {
			continue
		}
		indent := strings.Repeat("  ", depth[e.ID]-1)
		if kind != "" {
			indent = ""
		}
		fmt.Fprintf(&sb, "%s- %s `%s` lines %d-%d", indent, e.Kind, e.Name, e.Span.StartLine, e.Span.EndLine)
		if e.Kind.Scored() {
			fmt.Fprintf(&sb, ", complexity %d", e.Complexity)
		}
		sb.WriteString("\n")
	}
	if n := len(res.Diagnostics); n > 0 {
		fmt.Fprintf(&sb, "\n%d syntax diagnostics; first: %s\n", n, res.Diagnostics[0])
	}
	return sb.String()
}
