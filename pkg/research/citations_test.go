package research

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/quarryhq/quarry/pkg/retrieval"
)

func TestValidateCitations_AllKnownReturnsEmpty(t *testing.T) {
	groups := []retrieval.Group{{SourceIDs: []string{"m1", "m2"}}}
	text := "First fact [citation:m1]. Second fact [citation:m1], [citation:m2]."
	assert.Empty(t, ValidateCitations(text, groups))
}

func TestValidateCitations_UnknownIDReported(t *testing.T) {
	groups := []retrieval.Group{{SourceIDs: []string{"m1"}}}
	text := "A fact [citation:m1]. A made-up fact [citation:ghost]."
	assert.Equal(t, []string{"ghost"}, ValidateCitations(text, groups))
}

func TestValidateCitations_NoCitationsIsFine(t *testing.T) {
	assert.Empty(t, ValidateCitations("plain text, no citations here", nil))
}
