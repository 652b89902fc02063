package ingestion_engine

import (
	"strings"

	"github.com/docwise-ai/docwise/internal/models"
)

// ChunkUnits splits extracted units into token-bounded passages.
//
// Each unit is chunked independently: overlap between consecutive
// passages applies within one unit only, so every chunk carries the
// single unambiguous anchor of the unit it came from. A unit shorter
// than one passage becomes a single chunk rather than being merged
// into neighbors, which would blur the anchor.
//
// The function is deterministic: identical input yields byte-identical
// chunk boundaries, which ingestion retries rely on.
func ChunkUnits(units []models.Unit, targetTokens, overlapTokens int) []models.ChunkDraft {
	if targetTokens <= 0 {
		targetTokens = 400
	}
	if overlapTokens < 0 || overlapTokens >= targetTokens {
		overlapTokens = targetTokens / 8
	}

	var out []models.ChunkDraft
	seq := 0
	for _, u := range units {
		words := strings.Fields(u.Text)
		if len(words) == 0 {
			continue
		}

		start := 0
		for start < len(words) {
			end := start
			tok := 0
			for end < len(words) && tok < targetTokens {
				tok += approxTokens(words[end])
				end++
			}

			out = append(out, models.ChunkDraft{
				Seq:        seq,
				Text:       strings.Join(words[start:end], " "),
				Anchor:     u.Anchor,
				TokenCount: tok,
			})
			seq++

			if end >= len(words) {
				break
			}

			// Next passage starts inside the tail of this one: walk back
			// from end until ~overlapTokens are retained. back > start+1
			// guarantees forward progress.
			back := end
			otok := 0
			for back > start+1 && otok < overlapTokens {
				back--
				otok += approxTokens(words[back])
			}
			start = back
		}
	}
	return out
}
