// Package chatbot implements the two-mode console bot: text answers from the
// language model, or an image written to disk.
package chatbot

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

type Mode string

const (
	ModeTextual Mode = "textual"
	ModeVisual  Mode = "visual"
)

const DefaultMaxAttempts = 3

// ErrTooManyAttempts is returned when no valid mode was entered within the
// allowed number of attempts.
var ErrTooManyAttempts = errors.New("too many invalid mode selections")

const modePrompt = "Choose a mode (textual/visual): "

// ParseMode accepts "textual" or "visual" in any case.
func ParseMode(s string) (Mode, bool) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeTextual:
		return ModeTextual, true
	case ModeVisual:
		return ModeVisual, true
	}
	return "", false
}

// SelectMode prompts on out and reads lines from in until a valid mode is
// entered or maxAttempts lines were rejected.
func SelectMode(in *bufio.Reader, out io.Writer, maxAttempts int) (Mode, error) {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		fmt.Fprint(out, modePrompt)
		line, err := in.ReadString('\n')
		if mode, ok := ParseMode(line); ok {
			return mode, nil
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", io.EOF
			}
			return "", fmt.Errorf("failed to read mode: %w", err)
		}
		fmt.Fprintf(out, "Invalid mode %q, please enter 'textual' or 'visual'.\n", strings.TrimSpace(line))
	}
	return "", fmt.Errorf("%w (%d)", ErrTooManyAttempts, maxAttempts)
}

// TextChatter answers a single text message, whole or streamed.
type TextChatter interface {
	Chat(ctx context.Context, query string) (string, error)
	ChatStream(ctx context.Context, query string) (<-chan string, error)
}

// ImageGenerator turns a prompt into encoded image bytes.
type ImageGenerator interface {
	Generate(ctx context.Context, prompt string) ([]byte, error)
}

type BotConfig struct {
	Chat      TextChatter
	Images    ImageGenerator
	OutputDir string
	Logger    *zap.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

type Bot struct {
	chat      TextChatter
	images    ImageGenerator
	outputDir string
	logger    *zap.Logger
	now       func() time.Time
}

func NewWithConfig(config BotConfig) *Bot {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := config.Now
	if now == nil {
		now = time.Now
	}
	dir := config.OutputDir
	if dir == "" {
		dir = "image"
	}
	return &Bot{
		chat:      config.Chat,
		images:    config.Images,
		outputDir: dir,
		logger:    logger,
		now:       now,
	}
}

// RunTextual forwards input to the language model and returns its reply.
func (b *Bot) RunTextual(ctx context.Context, input string) (string, error) {
	if err := b.checkTextual(input); err != nil {
		return "", err
	}
	return b.chat.Chat(ctx, input)
}

// RunTextualStream is RunTextual with the reply streamed in chunks.
func (b *Bot) RunTextualStream(ctx context.Context, input string) (<-chan string, error) {
	if err := b.checkTextual(input); err != nil {
		return nil, err
	}
	return b.chat.ChatStream(ctx, input)
}

func (b *Bot) checkTextual(input string) error {
	if b.chat == nil {
		return errors.New("textual mode is not configured")
	}
	if strings.TrimSpace(input) == "" {
		return errors.New("input must not be empty")
	}
	return nil
}

// RunVisual generates an image for prompt and writes it under the output
// directory as image_YYYYMMDD_HHMMSS.png. Existing files are never
// overwritten. It returns the written path.
func (b *Bot) RunVisual(ctx context.Context, prompt string) (string, error) {
	if b.images == nil {
		return "", errors.New("visual mode is not configured")
	}

	data, err := b.images.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(b.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create image directory: %w", err)
	}

	base := "image_" + b.now().Format("20060102_150405")
	for n := 0; ; n++ {
		name := base + ".png"
		if n > 0 {
			name = fmt.Sprintf("%s_%d.png", base, n)
		}
		path := filepath.Join(b.outputDir, name)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to create image file: %w", err)
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			return "", fmt.Errorf("failed to write image: %w", err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("failed to write image: %w", err)
		}

		b.logger.Info("image saved", zap.String("path", path), zap.Int("bytes", len(data)))
		return path, nil
	}
}
