package cmd

import (
	"strings"

	"codeguru/internal/tui"

	"github.com/spf13/cobra"
)

var conceptCmd = &cobra.Command{
	Use:   "concept <name>",
	Short: "Explain a programming concept",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
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
		name := strings.Join(args, " ")
		text, err := tui.Wait(ctx, cmd.ErrOrStderr(), "Explaining "+name, a.engine.ConceptAsync(ctx, name, depth))
		if err != nil {
			return err
		}
		return printMarkdown(cmd, text)
	},
}

func init() {
	conceptCmd.Flags().StringVarP(&flagDepth, "depth", "d", "", "simple, detailed, deep or all (default from config)")
	conceptCmd.Flags().BoolVar(&flagRaw, "raw", false, "print Markdown without rendering")
	rootCmd.AddCommand(conceptCmd)
}
