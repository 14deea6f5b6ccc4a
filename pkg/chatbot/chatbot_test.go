package chatbot_test

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/pdfagent/pkg/chatbot"
)

func TestSelectMode(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    chatbot.Mode
		wantErr error
		prompts int
	}{
		{name: "textual", input: "textual\n", want: chatbot.ModeTextual, prompts: 1},
		{name: "visual mixed case", input: "  VISUAL \n", want: chatbot.ModeVisual, prompts: 1},
		{name: "reprompts", input: "audio\nvisual\n", want: chatbot.ModeVisual, prompts: 2},
		{name: "last line without newline", input: "textual", want: chatbot.ModeTextual, prompts: 1},
		{name: "bounded", input: "a\nb\nc\ntextual\n", wantErr: chatbot.ErrTooManyAttempts, prompts: 3},
		{name: "eof", input: "nope\n", wantErr: io.EOF, prompts: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			mode, err := chatbot.SelectMode(bufio.NewReader(strings.NewReader(tt.input)), &out, 3)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, mode)
			}
			assert.Equal(t, tt.prompts, strings.Count(out.String(), "Choose a mode"))
		})
	}
}

type fakeChat struct{ reply string }

func (f fakeChat) Chat(_ context.Context, q string) (string, error) { return f.reply + q, nil }

func (f fakeChat) ChatStream(_ context.Context, q string) (<-chan string, error) {
	ch := make(chan string, 2)
	ch <- f.reply
	ch <- q
	close(ch)
	return ch, nil
}

type fakeImages struct {
	data []byte
	err  error
}

func (f fakeImages) Generate(context.Context, string) ([]byte, error) { return f.data, f.err }

func TestRunTextual(t *testing.T) {
	bot := chatbot.NewWithConfig(chatbot.BotConfig{Chat: fakeChat{reply: "echo: "}})

	reply, err := bot.RunTextual(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "echo: hello", reply)

	_, err = bot.RunTextual(context.Background(), "  ")
	assert.Error(t, err)

	_, err = chatbot.NewWithConfig(chatbot.BotConfig{}).RunTextual(context.Background(), "hello")
	assert.Error(t, err)
}

func TestRunTextualStream(t *testing.T) {
	bot := chatbot.NewWithConfig(chatbot.BotConfig{Chat: fakeChat{reply: "echo: "}})

	stream, err := bot.RunTextualStream(context.Background(), "hello")
	require.NoError(t, err)
	var out string
	for chunk := range stream {
		out += chunk
	}
	assert.Equal(t, "echo: hello", out)

	_, err = bot.RunTextualStream(context.Background(), "\t")
	assert.Error(t, err)

	_, err = chatbot.NewWithConfig(chatbot.BotConfig{}).RunTextualStream(context.Background(), "hello")
	assert.Error(t, err)
}

func TestRunVisualWritesTimestampedFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "image")
	fixed := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
	bot := chatbot.NewWithConfig(chatbot.BotConfig{
		Images:    fakeImages{data: []byte("png-bytes")},
		OutputDir: dir,
		Now:       func() time.Time { return fixed },
	})

	first, err := bot.RunVisual(context.Background(), "a cat")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "image_20240309_140507.png"), first)

	second, err := bot.RunVisual(context.Background(), "a cat")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "image_20240309_140507_1.png"), second)

	data, err := os.ReadFile(first)
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), data)
}

func TestRunVisualError(t *testing.T) {
	dir := t.TempDir()
	bot := chatbot.NewWithConfig(chatbot.BotConfig{
		Images:    fakeImages{err: errors.New("quota exceeded")},
		OutputDir: dir,
	})

	_, err := bot.RunVisual(context.Background(), "a cat")
	assert.ErrorContains(t, err, "quota exceeded")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
