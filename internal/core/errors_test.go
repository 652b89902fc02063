package core

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFailReasonCodes(t *testing.T) {
	cases := []struct {
		err  error
		code string
	}{
		{fmt.Errorf("%w: kind %q", ErrUnsupportedFormat, "zip"), "UnsupportedFormat"},
		{fmt.Errorf("%w: no chunkable text", ErrExtractionFailed), "ExtractionFailed"},
		{fmt.Errorf("%w: batch 0-16", ErrEmbeddingFailed), "EmbeddingFailed"},
		{fmt.Errorf("%w: vector dim 512, config expects 768", ErrConfigMismatch), "ConfigMismatch"},
		{fmt.Errorf("%w: embed call", ErrProviderTimeout), "ProviderTimeout"},
		{fmt.Errorf("%w: publish chunks", ErrIndexCorruption), "IndexCorruption"},
		{errors.New("disk full"), "Internal"},
	}
	for _, c := range cases {
		reason := FailReason(c.err)
		assert.Equal(t, c.code, strings.SplitN(reason, ":", 2)[0], reason)
		assert.Contains(t, reason, c.err.Error(), "detail must be preserved for display")
	}
}
