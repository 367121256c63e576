package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/lead2close/crm-cli/internal/model"
)

var enrichShowReport bool

var enrichCmd = &cobra.Command{
	Use:   "enrich <lead-id>",
	Short: "Enrich a single lead",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		id := args[0]

		env, err := initEnrich(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		if err := env.Orchestrator.Enrich(ctx, id); err != nil {
			return err
		}

		lead, err := env.Store.GetLead(ctx, id)
		if err != nil {
			return eris.Wrap(err, "reload lead")
		}

		cmd.Printf("Lead %s: %s\n", lead.ID, lead.EnrichmentStatus)
		if enrichShowReport && lead.EnrichmentData != nil {
			return printJSON(lead.EnrichmentData)
		}
		return nil
	},
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return eris.Wrap(err, "encode json")
	}
	return nil
}

func printLeadSummary(cmd *cobra.Command, lead model.Lead) {
	cmd.Printf("%s  %-30s  %-12s  %-10s  %s\n",
		lead.ID, lead.BusinessName, lead.City, lead.EnrichmentStatus, lead.OutreachStatus)
}

func init() {
	enrichCmd.Flags().BoolVar(&enrichShowReport, "report", false, "print the resulting Intelligence Report as JSON")
	rootCmd.AddCommand(enrichCmd)
}
