package frontmatter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWithoutFrontmatter(t *testing.T) {
	doc, err := Parse([]byte("# Title\n\nbody\n"))
	require.NoError(t, err)
	assert.Nil(t, doc.Frontmatter)
	assert.Equal(t, "# Title\n\nbody\n", string(doc.Body))
	assert.Empty(t, doc.Fields)
	assert.Equal(t, "", doc.Title())
}

func TestParseFrontmatter(t *testing.T) {
	doc, err := Parse([]byte("---\ntitle: \" Getting started \"\nweight: 3\n---\n# Heading\n"))
	require.NoError(t, err)
	assert.Equal(t, "title: \" Getting started \"\nweight: 3\n", string(doc.Frontmatter))
	assert.Equal(t, "# Heading\n", string(doc.Body))
	assert.Equal(t, "Getting started", doc.Title())
	assert.Equal(t, 3, doc.Fields["weight"])
}

func TestParseCRLF(t *testing.T) {
	doc, err := Parse([]byte("---\r\ntitle: Win\r\n---\r\nbody\r\n"))
	require.NoError(t, err)
	assert.Equal(t, "Win", doc.Title())
	assert.Equal(t, "body\r\n", string(doc.Body))
}

func TestParseEmptyFrontmatter(t *testing.T) {
	doc, err := Parse([]byte("---\n---\nbody"))
	require.NoError(t, err)
	assert.Equal(t, []byte{}, doc.Frontmatter)
	assert.Equal(t, "body", string(doc.Body))
}

func TestParseClosingAtEOF(t *testing.T) {
	doc, err := Parse([]byte("---\ntitle: Only\n---"))
	require.NoError(t, err)
	assert.Equal(t, "Only", doc.Title())
	assert.Empty(t, doc.Body)
}

func TestParseErrors(t *testing.T) {
	_, err := Parse([]byte("---\ntitle: x\nno closing\n"))
	assert.ErrorIs(t, err, ErrMissingClosingDelimiter)

	_, err = Parse([]byte("---\n: : bad\n---\n"))
	assert.Error(t, err)
}
