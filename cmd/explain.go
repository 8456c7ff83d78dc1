package cmd

import (
	"fmt"

	"codeguru/internal/explain"
	"codeguru/internal/llm"
	"codeguru/internal/tui"

	"github.com/spf13/cobra"
)

var (
	flagFunction string
	flagClass    string
	flagDepth    string
	flagRaw      bool
)

var explainCmd = &cobra.Command{
	Use:   "explain <file>",
	Short: "Explain a file, function or class",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if flagFunction != "" && flagClass != "" {
			return fmt.Errorf("--function and --class are mutually exclusive")
		}
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		depth, err := resolveDepth(a)
		if err != nil {
			return err
		}
		p, fut, err := a.engine.ExplainAsync(ctx, explain.Target{
			Path:     args[0],
			Language: flagLanguage,
			Function: flagFunction,
			Class:    flagClass,
			Depth:    depth,
		})
		if err != nil {
			return err
		}
		if p.Fallback {
			fmt.Fprintln(cmd.ErrOrStderr(), tui.Warn("no structural profile for this file, explaining it as plain text"))
		}

		label := "Explaining " + args[0]
		if p.Bundle != nil && p.Bundle.Entity.ID != 0 {
			label = fmt.Sprintf("Explaining %s %s", p.Bundle.Entity.Kind, p.Bundle.Entity.Name)
		}
		text, err := tui.Wait(ctx, cmd.ErrOrStderr(), label, fut)
		if err != nil {
			return err
		}
		return printMarkdown(cmd, text)
	},
}

func resolveDepth(a *app) (llm.Depth, error) {
	if flagDepth != "" {
		return llm.ParseDepth(flagDepth)
	}
	return llm.ParseDepth(a.cfg.Depth)
}

func printMarkdown(cmd *cobra.Command, text string) error {
	if flagRaw {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), text)
		return err
	}
	_, err := fmt.Fprintln(cmd.OutOrStdout(), tui.RenderMarkdown(text, 100))
	return err
}

func init() {
	explainCmd.Flags().StringVarP(&flagFunction, "function", "f", "", "function or Class.method to explain")
	explainCmd.Flags().StringVarP(&flagClass, "class", "c", "", "class to explain")
	explainCmd.Flags().StringVarP(&flagDepth, "depth", "d", "", "simple, detailed, deep or all (default from config)")
	explainCmd.Flags().BoolVar(&flagRaw, "raw", false, "print Markdown without rendering")
	explainCmd.Flags().StringVar(&flagLanguage, "language", "", "language tag, overriding extension detection")
	rootCmd.AddCommand(explainCmd)
}
