package interp

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCaptureTakeClears(t *testing.T) {
	var c Capture
	io.WriteString(c.Stdout(), "hello ")
	io.WriteString(c.Stderr(), "oops")
	io.WriteString(c.Stdout(), "world")

	stdout, stderr := c.Take()
	assert.Equal(t, "hello world", stdout)
	assert.Equal(t, "oops", stderr)

	stdout, stderr = c.Take()
	assert.Empty(t, stdout)
	assert.Empty(t, stderr)
}
