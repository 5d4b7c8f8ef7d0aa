package render

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

// --- HAPPY PATH TESTS ---

func TestRenderer_PlainPassesTextThrough(t *testing.T) {
	var buf bytes.Buffer
	r := New(&buf, false)

	r.Reply("# Title\n\nbody")
	r.ProgressLine("iteration 1/3: thinking")
	r.Fail("rate limit")

	assert.Equal(t, "# Title\n\nbody\niteration 1/3: thinking\nError: rate limit\n", buf.String())
}

func TestRenderer_PlainHelpers(t *testing.T) {
	r := New(&bytes.Buffer{}, false)

	assert.Equal(t, "done", r.Success("done"))
	assert.Equal(t, "Sessions", r.Header("Sessions"))
	assert.Equal(t, "a\n\nb", r.Block("a", "", "b"))
}

func TestRenderer_StyledKeepsContent(t *testing.T) {
	r := New(&bytes.Buffer{}, true)

	assert.Contains(t, r.Markdown("hello **world**"), "hello")
	assert.Contains(t, r.Progress("tool read_file failed: denied"), "tool read_file failed: denied")
	assert.Contains(t, r.Progress("Autonomous run finished: done=true (model_stop)"), "done=true")
	assert.Contains(t, r.Error("boom"), "boom")
	assert.Contains(t, r.Success("ok"), "ok")

	block := r.Block("first", "second")
	assert.Contains(t, block, "first")
	assert.Contains(t, block, "second")
}

// --- ERROR PATH TESTS ---

func TestNew_PanicsOnNilWriter(t *testing.T) {
	assert.PanicsWithValue(t, "writer is required", func() { New(nil, false) })
}
