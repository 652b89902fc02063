package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnchorLabels(t *testing.T) {
	assert.Equal(t, "p.2", Anchor{Page: 2}.String())
	assert.Equal(t, "04:12-04:20", Anchor{StartSec: 252, EndSec: 260}.String())
	assert.Equal(t, "00:00-00:07", Anchor{StartSec: 0, EndSec: 7.4}.String())
}

func TestAnchorKeyCollapsesSamePage(t *testing.T) {
	a := Anchor{Page: 3}
	b := Anchor{Page: 3}
	c := Anchor{Page: 4}
	assert.Equal(t, a.Key(), b.Key())
	assert.NotEqual(t, a.Key(), c.Key())

	// media keys collapse on segment start
	assert.Equal(t, Anchor{StartSec: 10, EndSec: 14}.Key(), Anchor{StartSec: 10, EndSec: 18}.Key())
	assert.NotEqual(t, Anchor{StartSec: 10}.Key(), Anchor{StartSec: 10.2}.Key())
}

func TestAnchorOverlaps(t *testing.T) {
	a := Anchor{StartSec: 10, EndSec: 20}
	assert.True(t, a.Overlaps(15, 25))
	assert.True(t, a.Overlaps(0, 10))
	assert.False(t, a.Overlaps(20.1, 30))
	assert.False(t, Anchor{Page: 1}.Overlaps(0, 100), "page anchors have no time extent")
}

func TestFileStatusTerminal(t *testing.T) {
	assert.True(t, StatusReady.Terminal())
	assert.True(t, StatusFailed.Terminal())
	for _, s := range []FileStatus{StatusUploaded, StatusExtracting, StatusChunking, StatusEmbedding} {
		assert.False(t, s.Terminal(), string(s))
	}
}

func TestEmbeddingConfigMatches(t *testing.T) {
	base := EmbeddingConfig{Model: "text-embedding-004", Dim: 768}
	assert.True(t, base.Matches(EmbeddingConfig{Model: "text-embedding-004", Dim: 768}))
	assert.False(t, base.Matches(EmbeddingConfig{Model: "text-embedding-004", Dim: 1536}))
	assert.False(t, base.Matches(EmbeddingConfig{Model: "other", Dim: 768}))
}

func TestFileKindMedia(t *testing.T) {
	assert.False(t, KindDocument.Media())
	assert.True(t, KindAudio.Media())
	assert.True(t, KindVideo.Media())
}
