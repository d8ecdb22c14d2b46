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
	enrichCmdConfig common.CommandConfig
	enrichKind      string
)

type enrichInput struct {
	kind   types.DocumentKind
	name   string
	record schema.Record
}

var enrichCmd = &cobra.Command{
	Use:   "enrich [record-file]",
	Short: "Enrich a previously extracted record",
	Long: `Infer the enrichment attributes of a record saved by extract.
The file may hold a bare record or a document result.`,
	Args: cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if _, err := common.ValidateDocumentKind(enrichKind); err != nil {
			return err
		}
		return prepareOutput(cmd, &enrichCmdConfig)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := getLoggerFromContext(cmd.Context())

		readInput := func(_ context.Context, fp *common.FileProcessor, args []string) (enrichInput, error) {
			kind, _ := common.ValidateDocumentKind(enrichKind)
			rec, err := fp.ReadRecord(args[0], kind)
			if err != nil {
				return enrichInput{}, err
			}
			return enrichInput{kind: kind, name: args[0], record: rec}, nil
		}

		stage := func(p *pipeline.Pipeline) common.StageFunc[enrichInput, *types.DocumentResult] {
			return func(ctx context.Context, in enrichInput) (*types.DocumentResult, error) {
				outcome, err := p.Enrich(ctx, in.kind, in.record)
				if err != nil {
					return nil, err
				}
				return &types.DocumentResult{
					Kind:     in.kind,
					Source:   in.name,
					Record:   outcome.Record,
					Enriched: outcome.Enriched,
					Warning:  outcome.Warning,
				}, nil
			}
		}

		logDetails := func(in enrichInput, cc common.CommandConfig) {
			logger.Info("Enriching record",
				"file", in.name,
				"kind", in.kind,
				"output_format", cc.OutputFormat,
				"output_file", cc.OutputFile)
		}

		return stageRunner(cmd, enrichCmdConfig, args, readInput, stage, logDetails)
	},
}

func init() {
	enrichCmd.Flags().StringVarP(&enrichKind, "kind", "k", "resume", "Record kind: resume (cv) or job (jd)")
	addOutputFlags(enrichCmd, &enrichCmdConfig)
}
