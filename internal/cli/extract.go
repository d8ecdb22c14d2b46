package cli

import (
	"context"

	"cvmatch/internal/common"
	"cvmatch/internal/pipeline"
	"cvmatch/internal/types"

	"github.com/spf13/cobra"
)

var (
	extractCmdConfig common.CommandConfig
	extractKind      string
	extractEnrich    bool
)

type extractInput struct {
	kind types.DocumentKind
	name string
	text string
}

var extractCmd = &cobra.Command{
	Use:   "extract [document-file]",
	Short: "Extract a structured record from a résumé or job description",
	Long: `Extract a résumé or job description (PDF or text) into its structured record.
With --enrich the record is also passed through enrichment.`,
	Args: cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		if _, err := common.ValidateDocumentKind(extractKind); err != nil {
			return err
		}
		return prepareOutput(cmd, &extractCmdConfig)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := getLoggerFromContext(cmd.Context())

		readInput := func(ctx context.Context, fp *common.FileProcessor, args []string) (extractInput, error) {
			kind, _ := common.ValidateDocumentKind(extractKind)
			text, err := fp.ReadDocument(ctx, args[0])
			if err != nil {
				return extractInput{}, err
			}
			return extractInput{kind: kind, name: args[0], text: text}, nil
		}

		stage := func(p *pipeline.Pipeline) common.StageFunc[extractInput, *types.DocumentResult] {
			return func(ctx context.Context, in extractInput) (*types.DocumentResult, error) {
				if extractEnrich {
					return p.RunDocument(ctx, in.kind, in.name, in.text)
				}
				rec, err := p.Extract(ctx, in.kind, in.text)
				if err != nil {
					return nil, err
				}
				return &types.DocumentResult{Kind: in.kind, Source: in.name, Record: rec}, nil
			}
		}

		logDetails := func(in extractInput, cc common.CommandConfig) {
			logger.Info("Extracting document",
				"file", in.name,
				"kind", in.kind,
				"enrich", extractEnrich,
				"output_format", cc.OutputFormat,
				"output_file", cc.OutputFile)
		}

		return stageRunner(cmd, extractCmdConfig, args, readInput, stage, logDetails)
	},
}

func init() {
	extractCmd.Flags().StringVarP(&extractKind, "kind", "k", "resume", "Document kind: resume (cv) or job (jd)")
	extractCmd.Flags().BoolVar(&extractEnrich, "enrich", false, "Enrich the extracted record")
	addOutputFlags(extractCmd, &extractCmdConfig)
}
