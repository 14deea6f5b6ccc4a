package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/xhad/pdfagent/pkg/app"
)

func newAgentCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "agent",
		Short: "Index the configured documents and chat with the agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()
			return runAgent(cmd.Context(), a)
		},
	}
}

func bootstrap(ctx context.Context, opts *rootOptions) (*app.App, error) {
	color.Blue("\nIndexing %d documents\n", len(opts.config.Documents))
	bar := getProgressBar(len(opts.config.Documents), " Indexing documents")

	a, err := app.Bootstrap(ctx, app.Options{
		Config:      opts.config,
		Credentials: opts.creds,
		Logger:      opts.logger,
		OnProgress:  ingestProgress(bar),
		OnFetchProgress: func(url string) {
			bar.Describe(color.BlueString(" Downloading %s", url))
		},
	})
	_ = bar.Finish()
	if err != nil {
		return nil, err
	}

	printIngestSummary(sortedKeys(a.Result.Indices), a.Result.Skipped)
	return a, nil
}

func runAgent(ctx context.Context, a *app.App) error {
	ag, err := a.NewAgent(func(name, input string) {
		color.New(color.Faint).Printf("\n  → %s(%q)", name, input)
	})
	if err != nil {
		return fmt.Errorf("failed to create agent: %w", err)
	}

	color.Cyan("\nChat with your documents (type 'exit' to quit, '/compare <key> <question>' to query one document, '/reset' to forget the conversation)")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		userPrompt("\nYou: ")
		if !scanner.Scan() {
			break
		}

		query := strings.TrimSpace(scanner.Text())
		switch {
		case query == "":
			continue
		case strings.EqualFold(query, "exit"):
			return nil
		case query == "/reset":
			ag.Reset()
			color.Green("✓ Conversation reset")
			continue
		case strings.HasPrefix(query, "/compare"):
			compare(ctx, a, strings.TrimSpace(strings.TrimPrefix(query, "/compare")))
			continue
		}

		spinner := getSpinner(" Thinking...")
		answer, err := ag.Chat(ctx, query)
		_ = spinner.Finish()
		if err != nil {
			color.Red("\nError: %v", err)
			continue
		}
		assistantPrompt("\nAssistant: %s\n", answer)
	}
	return scanner.Err()
}

// compare answers with a single document's query engine, bypassing the agent.
func compare(ctx context.Context, a *app.App, args string) {
	key, question, _ := strings.Cut(args, " ")
	question = strings.TrimSpace(question)
	if key == "" || question == "" {
		color.Yellow("Usage: /compare <key> <question>")
		return
	}

	tool, ok := a.Tool(key)
	if !ok {
		color.Red("No document indexed under %q", key)
		return
	}

	spinner := getSpinner(" Querying " + key + "...")
	if a.Config.LLM.Streaming {
		stream, sources, err := tool.Engine().QueryStream(ctx, question)
		if err != nil {
			_ = spinner.Finish()
			color.Red("\nError: %v", err)
			return
		}
		printStream(stream, spinner)
		printSources(sources)
		return
	}

	resp, err := tool.Engine().Query(ctx, question)
	_ = spinner.Finish()
	if err != nil {
		color.Red("\nError: %v", err)
		return
	}
	assistantPrompt("\n%s: %s\n", key, resp.Answer)
	printSources(resp.Sources)
}
