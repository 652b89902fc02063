package ingestion_engine

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docwise-ai/docwise/internal/models"
)

func pageUnit(page, words int) models.Unit {
	parts := make([]string, words)
	for i := range parts {
		parts[i] = fmt.Sprintf("word%d", i)
	}
	return models.Unit{Text: strings.Join(parts, " "), Anchor: models.Anchor{Page: page}}
}

func TestChunkUnitsDeterministic(t *testing.T) {
	units := []models.Unit{pageUnit(1, 500), pageUnit(2, 300), pageUnit(3, 7)}

	a := ChunkUnits(units, 100, 15)
	b := ChunkUnits(units, 100, 15)

	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i].Text, b[i].Text, "chunk %d differs between runs", i)
		assert.Equal(t, a[i].Anchor, b[i].Anchor)
	}
}

func TestChunkUnitsAnchorsNeverCrossUnits(t *testing.T) {
	units := []models.Unit{pageUnit(1, 400), pageUnit(2, 400)}

	chunks := ChunkUnits(units, 50, 10)
	require.NotEmpty(t, chunks)

	for _, ch := range chunks {
		// every word in a chunk belongs to exactly one page's vocabulary
		assert.True(t, ch.Anchor.Page == 1 || ch.Anchor.Page == 2)
	}

	// sequence indexes are monotonically increasing and anchors non-decreasing
	for i := 1; i < len(chunks); i++ {
		assert.Equal(t, chunks[i-1].Seq+1, chunks[i].Seq)
		assert.LessOrEqual(t, chunks[i-1].Anchor.Page, chunks[i].Anchor.Page)
	}
}

func TestChunkUnitsShortUnitSingleChunk(t *testing.T) {
	units := []models.Unit{pageUnit(1, 3)}

	chunks := ChunkUnits(units, 400, 60)
	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].Seq)
	assert.Equal(t, 1, chunks[0].Anchor.Page)
}

func TestChunkUnitsOverlapWithinUnit(t *testing.T) {
	units := []models.Unit{pageUnit(1, 200)}

	chunks := ChunkUnits(units, 50, 10)
	require.Greater(t, len(chunks), 1)

	for i := 1; i < len(chunks); i++ {
		prev := strings.Fields(chunks[i-1].Text)
		cur := strings.Fields(chunks[i].Text)
		// consecutive chunks of the same page share their boundary words
		assert.Equal(t, prev[len(prev)-1], cur[firstSharedIdx(prev, cur)],
			"chunk %d should start inside the tail of chunk %d", i, i-1)
	}
}

// firstSharedIdx locates the previous chunk's last word inside the
// current chunk's head overlap region.
func firstSharedIdx(prev, cur []string) int {
	last := prev[len(prev)-1]
	for i, w := range cur {
		if w == last {
			return i
		}
	}
	return -1
}

func TestChunkUnitsSkipsEmptyUnits(t *testing.T) {
	units := []models.Unit{
		{Text: "   ", Anchor: models.Anchor{Page: 1}},
		pageUnit(2, 5),
	}
	chunks := ChunkUnits(units, 100, 10)
	require.Len(t, chunks, 1)
	assert.Equal(t, 2, chunks[0].Anchor.Page)
}

func TestChunkUnitsMediaAnchorsPreserved(t *testing.T) {
	units := []models.Unit{
		{Text: strings.Repeat("alpha ", 100), Anchor: models.Anchor{StartSec: 0, EndSec: 8}},
		{Text: strings.Repeat("beta ", 100), Anchor: models.Anchor{StartSec: 8, EndSec: 17.5}},
	}

	chunks := ChunkUnits(units, 40, 5)
	require.NotEmpty(t, chunks)

	for _, ch := range chunks {
		if strings.Contains(ch.Text, "alpha") {
			assert.Equal(t, 0.0, ch.Anchor.StartSec)
			assert.NotContains(t, ch.Text, "beta")
		} else {
			assert.Equal(t, 8.0, ch.Anchor.StartSec)
		}
	}
}
