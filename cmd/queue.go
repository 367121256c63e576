package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lead2close/crm-cli/internal/model"
	"github.com/lead2close/crm-cli/internal/outreach"
	"github.com/lead2close/crm-cli/internal/store"
	"github.com/lead2close/crm-cli/pkg/instantly"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Manage the outreach queue",
}

var queueAddAt string

var queueAddCmd = &cobra.Command{
	Use:   "add <lead-id>...",
	Short: "Queue leads for outreach",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		scheduledAt := time.Now().UTC()
		if queueAddAt != "" {
			scheduledAt, err = time.Parse(time.RFC3339, queueAddAt)
			if err != nil {
				return eris.Wrapf(err, "parse --at %q", queueAddAt)
			}
		}

		for _, id := range args {
			err := st.UpdateLeadFields(ctx, id, map[string]any{
				"outreach_status":       string(model.OutreachQueued),
				"outreach_scheduled_at": scheduledAt,
			})
			if err != nil {
				return eris.Wrapf(err, "queue lead %s", id)
			}
			cmd.Printf("Queued %s for %s\n", id, scheduledAt.Format(time.RFC3339))
		}
		return nil
	},
}

var queueDrainMax int

var queueDrainCmd = &cobra.Command{
	Use:   "drain",
	Short: "Process queued leads oldest-first",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, drainer, err := initDrainer(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		processed, err := drainer.Drain(ctx, queueDrainMax)
		cmd.Printf("Processed %d leads\n", processed)
		return err
	},
}

var queuePushLimit int

var queuePushCmd = &cobra.Command{
	Use:   "push [lead-id...]",
	Short: "Push enriched leads into the cold-email campaign",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if cfg.Instantly.Key == "" {
			return eris.New("instantly key is required (CRM_INSTANTLY_KEY)")
		}
		if cfg.Instantly.CampaignID == "" {
			return eris.New("instantly campaign ID is required (CRM_INSTANTLY_CAMPAIGN_ID)")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		var leads []model.Lead
		if len(args) > 0 {
			for _, id := range args {
				lead, err := st.GetLead(ctx, id)
				if err != nil {
					return eris.Wrapf(err, "load lead %s", id)
				}
				leads = append(leads, *lead)
			}
		} else {
			leads, err = st.ListLeads(ctx, store.LeadFilter{
				EnrichmentStatus: model.EnrichmentEnriched,
				Limit:            queuePushLimit,
			})
			if err != nil {
				return eris.Wrap(err, "list enriched leads")
			}
		}

		client := instantly.NewClient(cfg.Instantly.Key, instantly.WithBaseURL(cfg.Instantly.BaseURL))
		pusher := outreach.NewPusher(client, cfg.Instantly.CampaignID, cfg.Outreach.PushRetries)

		pushed, skipped, failed := pusher.PushAll(ctx, leads)
		zap.L().Info("campaign push complete",
			zap.Int("pushed", pushed),
			zap.Int("skipped", skipped),
			zap.Int("failed", failed),
		)
		cmd.Printf("Pushed %d, skipped %d (no email), failed %d\n", pushed, skipped, failed)
		return nil
	},
}

func init() {
	queueAddCmd.Flags().StringVar(&queueAddAt, "at", "", "schedule time (RFC3339, default now)")
	queueDrainCmd.Flags().IntVar(&queueDrainMax, "max", 0, "max leads to process (0 = until empty)")
	queuePushCmd.Flags().IntVar(&queuePushLimit, "limit", 100, "max enriched leads to push when no ids are passed")

	queueCmd.AddCommand(queueAddCmd)
	queueCmd.AddCommand(queueDrainCmd)
	queueCmd.AddCommand(queuePushCmd)
	rootCmd.AddCommand(queueCmd)
}
