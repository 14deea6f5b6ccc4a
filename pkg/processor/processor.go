package processor

import (
	"fmt"
	"maps"
	"strings"
	"unicode/utf8"

	"github.com/tmc/langchaingo/schema"
	"github.com/xhad/pdfagent/internal/models"
)

type ProcessorConfig struct {
	ChunkSize    int
	ChunkOverlap int
}

// Processor splits page records that exceed the chunk size into smaller
// nodes. Sizes are measured in characters.
type Processor struct {
	config ProcessorConfig
}

func NewWithConfig(config ProcessorConfig) Processor {
	if config.ChunkSize <= 0 {
		config.ChunkSize = 1024
	}
	if config.ChunkOverlap < 0 || config.ChunkOverlap >= config.ChunkSize {
		config.ChunkOverlap = 0
	}

	return Processor{
		config: config,
	}
}

// Split returns the nodes for docs. Each node keeps its page metadata and
// gains a chunk index; the id becomes "<page id>/<chunk>".
func (p Processor) Split(docs []schema.Document) []schema.Document {
	var nodes []schema.Document

	for _, doc := range docs {
		chunks := p.splitIntoChunks(cleanText(doc.PageContent))

		for i, chunk := range chunks {
			meta := maps.Clone(doc.Metadata)
			if meta == nil {
				meta = map[string]any{}
			}
			meta[models.MetaChunk] = i
			if id, ok := meta[models.MetaID].(string); ok && id != "" {
				meta[models.MetaID] = fmt.Sprintf("%s/%d", id, i)
			}
			nodes = append(nodes, schema.Document{PageContent: chunk, Metadata: meta})
		}
	}

	return nodes
}

func cleanText(text string) string {
	// Replace runs of whitespace with a single space
	return strings.TrimSpace(strings.Join(strings.Fields(text), " "))
}

func (p Processor) splitIntoChunks(text string) []string {
	if text == "" {
		return nil
	}
	if utf8.RuneCountInString(text) <= p.config.ChunkSize {
		return []string{text}
	}

	var chunks []string
	current := strings.Builder{}
	currentLen := 0
	pending := false

	flush := func() {
		chunk := strings.TrimSpace(current.String())
		if chunk != "" {
			chunks = append(chunks, chunk)
		}

		// Start new chunk with overlap
		overlap := ""
		if p.config.ChunkOverlap > 0 && currentLen > p.config.ChunkOverlap {
			overlap = lastRunes(chunk, p.config.ChunkOverlap)
		}
		current.Reset()
		current.WriteString(overlap)
		currentLen = utf8.RuneCountInString(overlap)
		pending = false
	}

	for _, sentence := range splitIntoSentences(text) {
		for _, piece := range p.fit(sentence) {
			pieceLen := utf8.RuneCountInString(piece)
			if currentLen > 0 && currentLen+pieceLen+1 > p.config.ChunkSize {
				flush()
			}
			if currentLen > 0 {
				current.WriteByte(' ')
				currentLen++
			}
			current.WriteString(piece)
			currentLen += pieceLen
			pending = true
		}
	}

	if pending {
		chunks = append(chunks, strings.TrimSpace(current.String()))
	}

	return chunks
}

// fit breaks a sentence that is longer than the room left after overlap.
func (p Processor) fit(sentence string) []string {
	limit := p.config.ChunkSize - p.config.ChunkOverlap - 1
	if limit < 1 {
		limit = p.config.ChunkSize
	}
	runes := []rune(sentence)
	if len(runes) <= limit {
		return []string{sentence}
	}

	var pieces []string
	for len(runes) > limit {
		pieces = append(pieces, string(runes[:limit]))
		runes = runes[limit:]
	}
	if len(runes) > 0 {
		pieces = append(pieces, string(runes))
	}
	return pieces
}

func splitIntoSentences(text string) []string {
	var sentences []string
	start := 0

	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '.', '!', '?':
			if i+1 == len(text) || text[i+1] == ' ' {
				if s := strings.TrimSpace(text[start : i+1]); s != "" {
					sentences = append(sentences, s)
				}
				start = i + 1
			}
		}
	}

	// Add any remaining text
	if s := strings.TrimSpace(text[start:]); s != "" {
		sentences = append(sentences, s)
	}

	return sentences
}

func lastRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return strings.TrimSpace(string(runes[len(runes)-n:]))
}
