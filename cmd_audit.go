package main

import (
	"github.com/spf13/cobra"

	"github.com/ekaya-inc/ekaya-jobmart/pkg/database"
)

func newAuditCmd(root *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "audit <table> <record-id>",
		Short: "Print audit entries for one row, newest first",
		Long: "Print audit entries for one row, newest first.\n\n" +
			"<table> is job_fact or a dimension table such as dim_company. <record-id>\n" +
			"is the job id for job_fact and the surrogate id for dimensions.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(root)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, release, err := database.NewScopeProvider(a.db).WithScope(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			entries, err := a.audit.ListByRecord(ctx, args[0], args[1], limit)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), entries)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 50, "maximum entries to print (0 for all)")
	return cmd
}
