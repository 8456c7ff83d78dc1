package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"codeguru/internal/analyzer"
	"codeguru/internal/config"
	"codeguru/internal/index"
	"codeguru/internal/tui"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var (
	flagJSON     bool
	flagLanguage string
	flagDB       string
	flagWorkers  int
	flagTop      int
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file|dir>",
	Short: "Extract classes, functions and complexity from source files",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newAnalyzerApp()
		if err != nil {
			return err
		}
		defer a.Close()

		info, err := os.Stat(args[0])
		if err != nil {
			return err
		}
		if info.IsDir() {
			return analyzeDir(cmd, a, args[0])
		}
		return analyzeFile(cmd, a, args[0])
	},
}

func analyzeFile(cmd *cobra.Command, a *app, path string) error {
	ctx := cmd.Context()
	var res *analyzer.Analysis
	if flagLanguage == "" {
		r, err := a.analyzer.AnalyzeFile(ctx, path)
		if err != nil {
			return err
		}
		res = r
	} else {
		src, err := a.analyzer.ReadSource(path)
		if err != nil {
			return err
		}
		if res, err = a.analyzer.Analyze(ctx, path, src, flagLanguage); err != nil {
			return err
		}
	}

	if flagJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	fmt.Fprint(cmd.OutOrStdout(), tui.EntityTree(res))
	return nil
}

func analyzeDir(cmd *cobra.Command, a *app, dir string) error {
	root, err := filepath.Abs(dir)
	if err != nil {
		return err
	}

	dbPath := flagDB
	if dbPath == "" {
		dbPath = config.DBPath(root)
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("create db directory: %w", err)
	}

	workers := flagWorkers
	if workers <= 0 {
		workers = a.cfg.Index.Workers
	}
	idx, err := index.New(index.Config{
		DBPath:      dbPath,
		Workers:     workers,
		MaxFileSize: a.cfg.MaxFileSize,
		Include:     a.cfg.Index.Includes,
		Exclude:     a.cfg.Index.Excludes,
	}, a.analyzer)
	if err != nil {
		return err
	}
	defer idx.Close()

	stderr := cmd.ErrOrStderr()
	fmt.Fprintf(stderr, "Analyzing %s...\n", root)
	start := time.Now()

	var (
		bar   *progressbar.ProgressBar
		barMu sync.Mutex
	)
	progress := func(stage string, done, total int) {
		barMu.Lock()
		defer barMu.Unlock()
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionSetWriter(stderr),
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowBytes(false),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]"+stage+"[reset]"),
				progressbar.OptionClearOnFinish(),
			)
		}
		bar.ChangeMax(total)
		bar.Set(done)
	}

	stats, err := idx.Index(cmd.Context(), root, progress)
	if bar != nil {
		bar.Finish()
	}
	elapsed := time.Since(start)

	if stats != nil {
		fmt.Fprintln(stderr, tui.Success(fmt.Sprintf("Done in %s", elapsed.Round(time.Millisecond))))
		fmt.Fprintf(stderr, "  Files:    %d total, %d analyzed, %d unchanged, %d failed, %d removed\n",
			stats.FilesTotal, stats.FilesAnalyzed, stats.FilesSkipped, stats.FilesFailed, stats.FilesRemoved)
		fmt.Fprintf(stderr, "  Entities: %d (%d syntax diagnostics)\n", stats.Entities, stats.Diagnostics)
		for _, f := range stats.Failures {
			fmt.Fprintln(stderr, tui.Warn(f.Error()))
		}
	}
	if err != nil {
		return err
	}

	if flagJSON {
		files, err := idx.Store().ListFiles()
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(files)
	}
	md, err := index.Report(idx.Store(), flagTop)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), tui.RenderMarkdown(md, 100))
	return nil
}

func init() {
	analyzeCmd.Flags().BoolVar(&flagJSON, "json", false, "print JSON instead of a tree")
	analyzeCmd.Flags().StringVar(&flagLanguage, "language", "", "language tag, overriding extension detection")
	analyzeCmd.Flags().StringVar(&flagDB, "db", "", "index database for directories (default <dir>/.codeguru/index.db)")
	analyzeCmd.Flags().IntVar(&flagWorkers, "workers", 0, "parallel parse workers (default: number of CPUs)")
	analyzeCmd.Flags().IntVar(&flagTop, "top", 10, "number of most complex entities to list")
	rootCmd.AddCommand(analyzeCmd)
}
