package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lead2close/crm-cli/internal/model"
	"github.com/lead2close/crm-cli/internal/store"
)

var (
	batchStatus string
	batchCity   string
	batchLimit  int
	batchGroup  int
)

var batchCmd = &cobra.Command{
	Use:   "batch [lead-id...]",
	Short: "Enrich leads in bulk",
	Long:  "Enriches the given leads, or leads selected by --status/--city when no ids are passed. Leads are processed in fixed-size concurrent groups; each group completes before the next starts.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initEnrich(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		ids := args
		if len(ids) == 0 {
			leads, err := env.Store.ListLeads(ctx, store.LeadFilter{
				EnrichmentStatus: model.EnrichmentStatus(batchStatus),
				City:             batchCity,
				Limit:            batchLimit,
			})
			if err != nil {
				return eris.Wrap(err, "list leads")
			}
			for _, lead := range leads {
				ids = append(ids, lead.ID)
			}
		}

		if len(ids) == 0 {
			zap.L().Info("no leads matched")
			return nil
		}

		zap.L().Info("processing batch",
			zap.Int("leads", len(ids)),
			zap.Int("group_size", effectiveGroupSize()),
		)

		result := env.Orchestrator.EnrichBatch(ctx, ids, effectiveGroupSize(), func(completed, total int) {
			cmd.Printf("Progress: %d/%d\n", completed, total)
		})

		cmd.Printf("Done: %d succeeded, %d failed\n", result.Succeeded, result.Failed)
		if err := ctx.Err(); err != nil {
			return err
		}
		return nil
	},
}

func effectiveGroupSize() int {
	if batchGroup > 0 {
		return batchGroup
	}
	return cfg.Batch.GroupSize
}

func init() {
	batchCmd.Flags().StringVar(&batchStatus, "status", string(model.EnrichmentNotEnriched), "enrichment status to select when no ids are passed")
	batchCmd.Flags().StringVar(&batchCity, "city", "", "restrict selection to one city")
	batchCmd.Flags().IntVar(&batchLimit, "limit", 100, "max number of leads to select")
	batchCmd.Flags().IntVar(&batchGroup, "group-size", 0, "concurrent group size (default from config)")
	rootCmd.AddCommand(batchCmd)
}
