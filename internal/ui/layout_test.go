package ui

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContentHeight(t *testing.T) {
	assert.Equal(t, 21, NewLayout(80, 24).ContentHeight())
	assert.Equal(t, 0, NewLayout(80, 2).ContentHeight())
}

func TestRenderWithFrame_ClipsContent(t *testing.T) {
	l := NewLayout(40, 6)
	content := strings.Repeat("line\n", 10)

	out := l.RenderWithFrame("header", "", content, "status")
	assert.Contains(t, out, "header")
	assert.Contains(t, out, "status")
	assert.LessOrEqual(t, strings.Count(out, "line"), l.ContentHeight())
}
