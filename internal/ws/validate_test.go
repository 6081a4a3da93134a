package ws

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateRenderAcceptsNormalPayload(t *testing.T) {
	msg := Message{Content: "<p>hello</p>", Scripts: []string{"console.log(1)"}}
	assert.NoError(t, validateRender(msg))
}

func TestValidateRenderRejectsOversizedContent(t *testing.T) {
	msg := Message{Content: strings.Repeat("a", MaxContentSize+1)}
	err := validateRender(msg)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "content size")
}

func TestValidateRenderRejectsOversizedScripts(t *testing.T) {
	half := strings.Repeat("x", MaxScriptSize/2+1)
	msg := Message{Content: "<p>ok</p>", Scripts: []string{half, half}}
	err := validateRender(msg)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "script size")
}
