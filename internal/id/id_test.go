package id

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	id1, err := Generate("bm")
	require.NoError(t, err)
	id2, err := Generate("bm")
	require.NoError(t, err)

	assert.Regexp(t, `^bm-[A-Za-z0-9_-]{21}$`, id1)
	assert.NotEqual(t, id1, id2, "IDs must be unique")
}

func TestFormatAction_SortsChronologically(t *testing.T) {
	a := FormatAction(9)
	b := FormatAction(10)
	c := FormatAction(100)

	assert.Less(t, a, b)
	assert.Less(t, b, c)
	assert.Len(t, a, len("act-")+20)
}
