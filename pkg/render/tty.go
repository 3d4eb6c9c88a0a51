//go:build !windows

package render

import (
	"io"
	"os"
)

// OpenTTY opens the controlling terminal, so prompts still work when stdin
// is a pipe.
func OpenTTY() (io.ReadWriteCloser, error) {
	return os.OpenFile("/dev/tty", os.O_RDWR, 0)
}
