package cli

import (
	"context"

	"cvmatch/internal/common"
	"cvmatch/internal/pipeline"
	"cvmatch/internal/types"

	"github.com/spf13/cobra"
)

var questionnaireCmdConfig common.CommandConfig

var questionnaireCmd = &cobra.Command{
	Use:   "questionnaire [points-file]",
	Short: "Draft one interview question per gap point",
	Long: `Draft interview questions from gap points. The file may be a gap report or
run saved as JSON, or plain text with one point per line.`,
	Args: cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return prepareOutput(cmd, &questionnaireCmdConfig)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := getLoggerFromContext(cmd.Context())

		readInput := func(_ context.Context, fp *common.FileProcessor, args []string) ([]string, error) {
			return fp.ReadPoints(args[0])
		}

		stage := func(p *pipeline.Pipeline) common.StageFunc[[]string, types.Questionnaire] {
			return p.Questionnaire
		}

		logDetails := func(points []string, cc common.CommandConfig) {
			logger.Info("Generating questionnaire",
				"points_file", args[0],
				"points", len(points),
				"output_format", cc.OutputFormat,
				"output_file", cc.OutputFile)
		}

		return stageRunner(cmd, questionnaireCmdConfig, args, readInput, stage, logDetails)
	},
}

func init() {
	addOutputFlags(questionnaireCmd, &questionnaireCmdConfig)
}
