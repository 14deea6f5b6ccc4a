package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/tmc/langchaingo/schema"

	"github.com/xhad/pdfagent/pkg/ingest"
	"github.com/xhad/pdfagent/pkg/llm"
)

var (
	userPrompt      = color.New(color.FgGreen).PrintfFunc()
	assistantPrompt = color.New(color.FgCyan).PrintfFunc()
)

func getProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("docs"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}

// ingestProgress advances bar once per document that finished or was skipped.
func ingestProgress(bar *progressbar.ProgressBar) func(key string, stage ingest.Stage) {
	return func(key string, stage ingest.Stage) {
		switch stage {
		case ingest.StageLoading:
			bar.Describe(color.BlueString(" Loading %s", key))
		case ingest.StageIndexing:
			bar.Describe(color.BlueString(" Indexing %s", key))
		case ingest.StageDone, ingest.StageSkipped:
			_ = bar.Add(1)
		}
	}
}

func printIngestSummary(indexed []string, skipped map[string]error) {
	fmt.Println()
	for _, key := range indexed {
		color.Green("✓ %s indexed", key)
	}
	for _, key := range sortedKeys(skipped) {
		color.Yellow("✗ %s skipped: %v", key, skipped[key])
	}
}

// printStream prints chunks as they arrive, replacing the spinner on the
// first one.
func printStream(stream <-chan string, spinner *progressbar.ProgressBar) {
	first := true
	for chunk := range stream {
		if strings.HasPrefix(chunk, "Error:") {
			_ = spinner.Finish()
			color.Red("\n%s", chunk)
			continue
		}
		if first {
			_ = spinner.Finish()
			fmt.Print("\n")
			assistantPrompt("Assistant: ")
			first = false
		}
		fmt.Print(chunk)
	}
	if first {
		_ = spinner.Finish()
	}
	fmt.Print("\n")
}

func printSources(docs []schema.Document) {
	if sources := llm.FormatSources(docs); sources != "" {
		color.New(color.Faint).Println(sources)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
