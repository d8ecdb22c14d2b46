package cli

import (
	"fmt"
	"strings"
	"time"

	"cvmatch/internal/batch"
	"cvmatch/internal/common"
	"cvmatch/internal/types"

	"github.com/spf13/cobra"
)

var (
	batchJobFile   string
	batchInputDir  string
	batchOutputDir string
	batchRole      string
	batchWatch     bool
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Process every résumé in a directory against one job description",
	Long: `Extract and enrich the job description once, then run each résumé in the
input directory through the pipeline. Artifacts for each résumé are written to
a directory named after the file under --output-dir.

With --watch the command keeps running and processes résumés as they are
added or changed, until interrupted.`,
	Args: cobra.NoArgs,
	RunE: runBatch,
}

func init() {
	batchCmd.Flags().StringVarP(&batchJobFile, "job", "j", "", "Job description file (required)")
	batchCmd.Flags().StringVarP(&batchInputDir, "input", "i", "", "Directory of résumés (default from config)")
	batchCmd.Flags().StringVar(&batchOutputDir, "output-dir", "", "Directory for run artifacts (default from config)")
	batchCmd.Flags().StringVarP(&batchRole, "role", "r", "", "Role the candidates are assessed for (default from config)")
	batchCmd.Flags().BoolVarP(&batchWatch, "watch", "w", false, "Keep watching the input directory for new résumés")
	_ = batchCmd.MarkFlagRequired("job")
}

func runBatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := getConfigFromContext(ctx)
	if !batchWatch {
		cfg = oneShot(cfg)
	}
	logger := getLoggerFromContext(ctx)

	inputDir := firstNonEmpty(batchInputDir, cfg.Batch.InputDir)
	if inputDir == "" {
		return fmt.Errorf("an input directory is required (--input or batch.inputDir)")
	}
	opts := batch.Options{
		Role:       strings.TrimSpace(firstNonEmpty(batchRole, cfg.Pipeline.Role)),
		OutputDir:  firstNonEmpty(batchOutputDir, cfg.Pipeline.OutputDir),
		Extensions: cfg.Batch.Extensions,
	}

	fp := common.NewFileProcessor(logger, cfg.App.MaxFileSize)
	jobText, err := fp.ReadDocument(ctx, batchJobFile)
	if err != nil {
		return err
	}

	p, closePipeline, err := pipelineFactory(cfg, logger)
	if err != nil {
		return err
	}
	defer closePipeline()

	logger.Info("Preparing job description", "file", batchJobFile)
	job, err := p.RunDocument(ctx, types.DocumentJob, batchJobFile, jobText)
	if err != nil {
		return fmt.Errorf("failed to prepare job description: %w", err)
	}

	processor := batch.NewProcessor(p, fp, job, opts, logger)
	out := cmd.OutOrStdout()

	summary, err := processor.ProcessDir(ctx, inputDir)
	if err != nil {
		return err
	}
	for _, o := range summary.Outcomes {
		printOutcome(cmd, o)
	}
	fmt.Fprintf(out, "Processed %d file(s), %d failed\n", len(summary.Outcomes), summary.Failed())

	if batchWatch {
		logger.Info("Watching for new résumés", "dir", inputDir, "debounce", cfg.Batch.Debounce)
		return processor.Watch(ctx, inputDir, cfg.Batch.Debounce, func(o batch.Outcome) {
			printOutcome(cmd, o)
		})
	}

	if failed := summary.Failed(); failed > 0 {
		return fmt.Errorf("%d of %d file(s) failed", failed, len(summary.Outcomes))
	}
	return nil
}

func printOutcome(cmd *cobra.Command, o batch.Outcome) {
	out := cmd.OutOrStdout()
	if o.Err != nil {
		fmt.Fprintf(out, "FAIL %s (%s): %v\n", o.File, o.Duration.Round(time.Millisecond), o.Err)
		return
	}
	fmt.Fprintf(out, "ok   %s (%s) run=%s artifacts=%d\n", o.File, o.Duration.Round(time.Millisecond), o.RunID, len(o.Artifacts))
	for _, w := range o.Warnings {
		fmt.Fprintf(out, "     warning: %s\n", w)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
