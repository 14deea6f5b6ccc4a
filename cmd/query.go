package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newQueryCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "query <key> <question>",
		Short: "Ask one document directly, without the agent",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			if _, ok := opts.config.Documents[key]; !ok {
				return fmt.Errorf("unknown document key %q", key)
			}
			// Only the requested document is indexed.
			opts.config.Documents = map[string]string{key: opts.config.Documents[key]}

			a, err := bootstrap(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()

			tool, ok := a.Tool(key)
			if !ok {
				return fmt.Errorf("document %q could not be indexed", key)
			}

			spinner := getSpinner(" Querying " + key + "...")
			resp, err := tool.Engine().Query(cmd.Context(), strings.Join(args[1:], " "))
			_ = spinner.Finish()
			if err != nil {
				return err
			}
			assistantPrompt("\n%s\n", resp.Answer)
			printSources(resp.Sources)
			return nil
		},
	}
}
