package markdown

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFirstHeading(t *testing.T) {
	assert.Equal(t, "Getting Started", FirstHeading([]byte("intro\n\n# Getting *Started*\n\n## Next\n")))
	assert.Equal(t, "Setup", FirstHeading([]byte("## Setup\n\ntext\n")))
	assert.Equal(t, "Using config.yaml", FirstHeading([]byte("# Using `config.yaml`\n")))
	assert.Equal(t, "", FirstHeading([]byte("no headings here\n")))
}

func TestFirstHeadingSetext(t *testing.T) {
	assert.Equal(t, "Title", FirstHeading([]byte("Title\n=====\n\nbody\n")))
}

func TestHeadingsSkipsCodeBlocks(t *testing.T) {
	body := []byte("```\n# not a heading\n```\n\n# Real\n\n### Deep\n")
	assert.Equal(t, []Heading{{Level: 1, Text: "Real"}, {Level: 3, Text: "Deep"}}, Headings(body))
}
