package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mintline/internal/checkpoint"
	"mintline/internal/logging"
	"mintline/internal/statusapi"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bind string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the read-only status API until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if bind == "" {
				bind = cfg.API.Bind
			}
			logger, err := ctx.logger(false)
			if err != nil {
				return err
			}
			return ctx.withStore(func(store *checkpoint.Store) error {
				server := statusapi.New(store, ctx.hub, logger)
				if err := server.Start(cmd.Context(), bind); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Status API listening on http://%s\n", server.Addr())
				<-cmd.Context().Done()
				logger.Info("status api stopped", logging.String(logging.FieldEventType, "api_stop"))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&bind, "bind", "", "Listen address (defaults to api.bind)")
	return cmd
}
