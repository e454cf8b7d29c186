package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-jobmart/pkg/models"
)

func newDeleteCmd(root *rootOptions) *cobra.Command {
	var actor string

	cmd := &cobra.Command{
		Use:   "delete <job-id>",
		Short: "Delete a job posting and its skills, key phrases and entities",
		Args:  cobra.ExactArgs(1),
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

			if actor == "" {
				actor = cfg.Actor
			}
			ctx := models.WithManualProvenance(cmd.Context(), actor)
			if err := a.jobs.DeleteJob(ctx, args[0]); err != nil {
				return err
			}

			logger.Info("Job deleted", zap.String("job_id", args[0]), zap.String("actor", actor))
			return nil
		},
	}

	cmd.Flags().StringVar(&actor, "actor", "", "operator recorded on the audit entry (default from config)")
	return cmd
}

func newShowCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <job-id>",
		Short: "Print the stored fact row of a job posting as JSON",
		Args:  cobra.ExactArgs(1),
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

			job, err := a.jobs.GetJob(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), job)
		},
	}
}
