package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/xhad/pdfagent/pkg/chatbot"
	"github.com/xhad/pdfagent/pkg/llm"
)

func newChatbotCmd(opts *rootOptions) *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:   "chatbot [input]",
		Short: "Answer a text question or generate an image",
		Long: `Asks for a mode first: "textual" sends the input to the language model,
"visual" generates an image from the input (or the configured prompt) and
saves it under the image output directory.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.config
			in := bufio.NewReader(os.Stdin)

			selected, ok := chatbot.ParseMode(mode)
			if !ok {
				var err error
				selected, err = chatbot.SelectMode(in, os.Stdout, cfg.Chatbot.MaxAttempts)
				if errors.Is(err, io.EOF) {
					return nil
				}
				if err != nil {
					return err
				}
			}

			model, err := llm.NewModel(llm.ProviderConfigFrom(cfg), opts.creds)
			if err != nil {
				return fmt.Errorf("failed to initialize model: %w", err)
			}
			chat, err := llm.NewWithConfig(llm.ChatConfig{
				Temperature: cfg.LLM.Temperature,
				MaxTokens:   cfg.LLM.MaxTokens,
			}, model)
			if err != nil {
				return fmt.Errorf("failed to initialize chat engine: %w", err)
			}

			bot := chatbot.NewWithConfig(chatbot.BotConfig{
				Chat: chat,
				Images: llm.NewImageClient(llm.ImageConfig{
					BaseURL: cfg.Image.BaseURL,
					Model:   cfg.Image.Model,
					Size:    cfg.Image.Size,
				}, opts.creds),
				OutputDir: cfg.Image.OutputDir,
				Logger:    opts.logger,
			})

			input := strings.TrimSpace(strings.Join(args, " "))

			switch selected {
			case chatbot.ModeTextual:
				if input == "" {
					userPrompt("You: ")
					line, err := in.ReadString('\n')
					if err != nil && !errors.Is(err, io.EOF) {
						return err
					}
					input = strings.TrimSpace(line)
				}
				if cfg.LLM.Streaming {
					stream, err := bot.RunTextualStream(cmd.Context(), input)
					if err != nil {
						return err
					}
					printStream(stream, getSpinner(" Thinking..."))
					return nil
				}

				spinner := getSpinner(" Thinking...")
				reply, err := bot.RunTextual(cmd.Context(), input)
				_ = spinner.Finish()
				if err != nil {
					return err
				}
				assistantPrompt("\nAssistant: %s\n", reply)

			case chatbot.ModeVisual:
				if input == "" {
					input = cfg.Image.Prompt
				}
				spinner := getSpinner(" Generating image...")
				path, err := bot.RunVisual(cmd.Context(), input)
				_ = spinner.Finish()
				if err != nil {
					return err
				}
				color.Green("\n✓ Image saved to %s", path)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "", "Skip the prompt and use this mode (textual or visual)")
	return cmd
}
