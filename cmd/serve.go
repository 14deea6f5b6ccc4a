package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/xhad/pdfagent/server"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var (
		addr    string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the agent over a websocket",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()

			if addr == "" {
				addr = opts.config.Server.Addr
			}

			s, err := server.NewWSServer(server.Config{
				Addr:         addr,
				Logger:       opts.logger,
				QueryTimeout: timeout,
			}, func(onToolCall func(name, input string)) (server.Session, error) {
				ag, err := a.NewAgent(onToolCall)
				if err != nil {
					return nil, err
				}
				return ag, nil
			})
			if err != nil {
				return err
			}

			assistantPrompt("\nListening on %s (ws path /ws)\n", addr)
			return s.ListenAndServe(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (defaults to server.addr from config)")
	cmd.Flags().DurationVar(&timeout, "query-timeout", 2*time.Minute, "Maximum time to answer one query")
	return cmd
}
