package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	info := Info{Version: "dev", CommitHash: "abc1234", BuildTime: "now"}
	assert.Equal(t, "pyrunner dev (commit abc1234, built now)", info.String())

	info.Version = "v0.3.0"
	assert.Equal(t, "pyrunner v0.3.0 (commit abc1234, built now)", info.String())
}

func TestPythonBanner(t *testing.T) {
	banner := PythonBanner("3.12.1 (main, Dec  8 2023, 05:40:51)\n[GCC 11.4.0]")
	assert.Equal(t, "[Python Runner] <Python 3.12.1 (main, Dec  8 2023, 05:40:51)>\r\n", banner)
}
