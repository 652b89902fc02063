package ingestion_engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docwise-ai/docwise/internal/core"
)

func TestSplitPagesFormFeedBoundaries(t *testing.T) {
	body := "intro line\nsecond line\fQ3 revenue grew 12%\fclosing remarks"

	units := SplitPages(body)
	require.Len(t, units, 3)

	assert.Equal(t, 1, units[0].Anchor.Page)
	assert.Equal(t, "intro line\nsecond line", units[0].Text)
	assert.Equal(t, 2, units[1].Anchor.Page)
	assert.Equal(t, "Q3 revenue grew 12%", units[1].Text)
	assert.Equal(t, 3, units[2].Anchor.Page)
}

func TestSplitPagesBlankPageKeepsNumbering(t *testing.T) {
	units := SplitPages("page one\f\f  \npage three")
	require.Len(t, units, 2)
	assert.Equal(t, 1, units[0].Anchor.Page)
	assert.Equal(t, 3, units[1].Anchor.Page)
}

func TestSplitPagesRejoinsHyphenation(t *testing.T) {
	units := SplitPages("transfor-\nmation complete")
	require.Len(t, units, 1)
	assert.Equal(t, "transformation complete", units[0].Text)
}

func TestDocconvExtractorRejectsUnknownType(t *testing.T) {
	e := NewDocconvExtractor(false)
	_, err := e.Extract(context.Background(), []byte("data"), "image/png")
	assert.ErrorIs(t, err, core.ErrUnsupportedFormat)
}
