package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lead2close/crm-cli/internal/db"
	"github.com/lead2close/crm-cli/internal/leadcsv"
	"github.com/lead2close/crm-cli/internal/model"
	"github.com/lead2close/crm-cli/internal/store"
)

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "Manage leads",
}

var (
	listEnrichmentStatus string
	listOutreachStatus   string
	listCity             string
	listLimit            int
	listJSON             bool
)

var leadsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List leads",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		leads, err := st.ListLeads(ctx, store.LeadFilter{
			EnrichmentStatus: model.EnrichmentStatus(listEnrichmentStatus),
			OutreachStatus:   model.OutreachStatus(listOutreachStatus),
			City:             listCity,
			Limit:            listLimit,
		})
		if err != nil {
			return eris.Wrap(err, "list leads")
		}

		if listJSON {
			return printJSON(leads)
		}
		for _, lead := range leads {
			printLeadSummary(cmd, lead)
		}
		cmd.Printf("%d leads\n", len(leads))
		return nil
	},
}

var (
	createName    string
	createCity    string
	createPhone   string
	createEmail   string
	createWebsite string
)

var leadsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a lead",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		lead, err := st.CreateLead(ctx, &model.Lead{
			BusinessName: createName,
			City:         createCity,
			Phone:        createPhone,
			Email:        createEmail,
			WebsiteURL:   createWebsite,
		})
		if err != nil {
			return eris.Wrap(err, "create lead")
		}

		cmd.Printf("Created lead %s\n", lead.ID)
		return nil
	},
}

var (
	importCSVPath string
	importMerge   bool
)

var leadsImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Bulk import leads from CSV",
	Long:  "Imports a lead CSV. Against postgres the rows go in via COPY, or via an upsert on id with --merge; against sqlite they are inserted one by one.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		leads, err := leadcsv.ParseFile(importCSVPath)
		if err != nil {
			return err
		}
		if len(leads) == 0 {
			zap.L().Info("no importable rows", zap.String("csv", importCSVPath))
			return nil
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		var imported int64
		if ps, ok := st.(*store.PostgresStore); ok {
			rows := leadcsv.Rows(leads)
			if importMerge {
				imported, err = db.BulkUpsert(ctx, ps.Pool(), db.UpsertConfig{
					Table:        "leads",
					Columns:      leadcsv.ImportColumns,
					ConflictKeys: []string{"id"},
					UpdateCols:   []string{"business_name", "city", "category", "phone", "email", "website_url", "rating", "review_count", "has_opt_in", "updated_at"},
				}, rows)
			} else {
				imported, err = db.CopyFrom(ctx, ps.Pool(), "leads", leadcsv.ImportColumns, rows)
			}
			if err != nil {
				return eris.Wrap(err, "bulk import")
			}
		} else {
			for i := range leads {
				if _, err := st.CreateLead(ctx, &leads[i]); err != nil {
					return eris.Wrapf(err, "import lead %q", leads[i].BusinessName)
				}
				imported++
			}
		}

		zap.L().Info("import complete",
			zap.Int64("imported", imported),
			zap.String("csv", importCSVPath),
		)
		cmd.Printf("Imported %d leads\n", imported)
		return nil
	},
}

func init() {
	leadsListCmd.Flags().StringVar(&listEnrichmentStatus, "status", "", "filter by enrichment status")
	leadsListCmd.Flags().StringVar(&listOutreachStatus, "outreach", "", "filter by outreach status")
	leadsListCmd.Flags().StringVar(&listCity, "city", "", "filter by city")
	leadsListCmd.Flags().IntVar(&listLimit, "limit", 100, "max leads to list")
	leadsListCmd.Flags().BoolVar(&listJSON, "json", false, "print full leads as JSON")

	leadsCreateCmd.Flags().StringVar(&createName, "name", "", "business name (required)")
	leadsCreateCmd.Flags().StringVar(&createCity, "city", "", "city")
	leadsCreateCmd.Flags().StringVar(&createPhone, "phone", "", "phone number")
	leadsCreateCmd.Flags().StringVar(&createEmail, "email", "", "email address")
	leadsCreateCmd.Flags().StringVar(&createWebsite, "website", "", "website URL")
	_ = leadsCreateCmd.MarkFlagRequired("name")

	leadsImportCmd.Flags().StringVar(&importCSVPath, "csv", "", "path to CSV file (required)")
	leadsImportCmd.Flags().BoolVar(&importMerge, "merge", false, "upsert on id instead of plain insert (postgres only)")
	_ = leadsImportCmd.MarkFlagRequired("csv")

	leadsCmd.AddCommand(leadsListCmd)
	leadsCmd.AddCommand(leadsCreateCmd)
	leadsCmd.AddCommand(leadsImportCmd)
	rootCmd.AddCommand(leadsCmd)
}
