package sandbox

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMeasureHeightEmpty(t *testing.T) {
	assert.Equal(t, MinHeight, measureHeight(emptyDocument()))
	assert.Equal(t, MinHeight, measureHeight(nil))
}

func TestMeasureHeightGrowsWithContent(t *testing.T) {
	short, err := parseDocument("<p>hi</p>")
	require.NoError(t, err)

	long, err := parseDocument("<p>" + strings.Repeat("text ", 100) + "</p><p>second paragraph</p>")
	require.NoError(t, err)

	hShort := measureHeight(short)
	hLong := measureHeight(long)

	assert.Greater(t, hShort, MinHeight)
	assert.Greater(t, hLong, hShort)
}

func TestMeasureHeightCountsBlocks(t *testing.T) {
	one, err := parseDocument("<div>a</div>")
	require.NoError(t, err)

	three, err := parseDocument("<div>a</div><div>b</div><div>c</div>")
	require.NoError(t, err)

	assert.Greater(t, measureHeight(three), measureHeight(one))
}

func TestParseDocumentLenient(t *testing.T) {
	doc, err := parseDocument("<p>unclosed")
	require.NoError(t, err)
	assert.Equal(t, "unclosed", doc.Find("p").Text())
}
