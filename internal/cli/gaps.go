package cli

import (
	"context"

	"cvmatch/internal/common"
	"cvmatch/internal/pipeline"
	"cvmatch/internal/schema"
	"cvmatch/internal/types"

	"github.com/spf13/cobra"
)

var (
	gapsCmdConfig common.CommandConfig
	gapsRole      string
)

type gapsInput struct {
	resume schema.Record
	job    schema.Record
}

var gapsCmd = &cobra.Command{
	Use:   "gaps [resume-record] [job-record]",
	Short: "Report what a résumé is missing for a job",
	Long: `Compare a résumé record with a job record, both saved by extract or enrich,
and report up to five missing points.`,
	Args: cobra.ExactArgs(2),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return prepareOutput(cmd, &gapsCmdConfig)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := getLoggerFromContext(cmd.Context())
		role := gapsRole
		if role == "" {
			role = getConfigFromContext(cmd.Context()).Pipeline.Role
		}

		readInput := func(_ context.Context, fp *common.FileProcessor, args []string) (gapsInput, error) {
			resume, err := fp.ReadRecord(args[0], types.DocumentResume)
			if err != nil {
				return gapsInput{}, err
			}
			job, err := fp.ReadRecord(args[1], types.DocumentJob)
			if err != nil {
				return gapsInput{}, err
			}
			return gapsInput{resume: resume, job: job}, nil
		}

		stage := func(p *pipeline.Pipeline) common.StageFunc[gapsInput, types.GapReport] {
			return func(ctx context.Context, in gapsInput) (types.GapReport, error) {
				return p.Gaps(ctx, in.resume, in.job, role)
			}
		}

		logDetails := func(_ gapsInput, cc common.CommandConfig) {
			logger.Info("Analyzing gaps",
				"resume_file", args[0],
				"job_file", args[1],
				"role", role,
				"output_format", cc.OutputFormat,
				"output_file", cc.OutputFile)
		}

		return stageRunner(cmd, gapsCmdConfig, args, readInput, stage, logDetails)
	},
}

func init() {
	gapsCmd.Flags().StringVarP(&gapsRole, "role", "r", "", "Role the candidate is assessed for")
	addOutputFlags(gapsCmd, &gapsCmdConfig)
}
