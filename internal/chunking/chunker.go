// Package chunking splits oversized source text into overlapping,
// boundary-aware chunks sized for one model request each.
package chunking

import (
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/Lllllllleong/coursecreator/internal/models"
)

// Split cuts content into chunks of at most cfg.MaxChunkSize bytes. Cuts
// prefer a paragraph break, then a sentence break, and never land before
// start+MinChunkSize. Consecutive chunks share up to cfg.Overlap bytes. At most
// cfg.MaxChunks chunks are returned, so the tail of a very large source may be
// left out; the last chunk then has IsComplete false.
func Split(content string, cfg Config) ([]models.Chunk, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if len(content) <= cfg.MaxChunkSize {
		single := newChunk(content, 0, len(content), 1)
		single.IsComplete = true
		return []models.Chunk{single}, nil
	}

	var chunks []models.Chunk
	start := 0
	for start < len(content) && len(chunks) < cfg.MaxChunks {
		end := start + cfg.MaxChunkSize
		if end >= len(content) {
			end = len(content)
		} else {
			end = boundary(content, start, end, cfg.MinChunkSize)
		}

		chunks = append(chunks, newChunk(content[start:end], start, end, len(chunks)+1))
		if end == len(content) {
			break
		}

		next := end - cfg.Overlap
		if floor := start + cfg.MinChunkSize; next < floor {
			next = floor
		}
		if next > end {
			next = end
		}
		for next < end && !utf8.RuneStart(content[next]) {
			next++
		}
		start = next
	}

	for i := range chunks {
		chunks[i].TotalChunks = len(chunks)
		chunks[i].IsComplete = chunks[i].EndIndex == len(content)
	}
	return chunks, nil
}

// boundary picks the cut point for a chunk starting at start whose naive end
// is end. Breaks are only searched in content[start+minSize:end].
func boundary(content string, start, end, minSize int) int {
	naive := end
	for end > start && !utf8.RuneStart(content[end]) {
		end--
	}
	if end == start {
		// A single rune wider than the budget still has to make progress.
		end = naive
		for end < len(content) && !utf8.RuneStart(content[end]) {
			end++
		}
	}

	searchFrom := start + minSize
	if searchFrom >= end {
		return end
	}
	window := content[searchFrom:end]

	if pos := strings.LastIndex(window, "\n\n"); pos >= 0 {
		return searchFrom + pos + 2
	}
	if pos := strings.LastIndex(window, ". "); pos >= 0 {
		return searchFrom + pos + 2
	}
	return end
}

func newChunk(content string, start, end, number int) models.Chunk {
	return models.Chunk{
		ID:          uuid.NewString(),
		Content:     content,
		StartIndex:  start,
		EndIndex:    end,
		Size:        end - start,
		ChunkNumber: number,
		TotalChunks: 1,
	}
}
