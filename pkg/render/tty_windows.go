//go:build windows

package render

import (
	"io"
	"os"
)

func OpenTTY() (io.ReadWriteCloser, error) {
	return os.OpenFile("CONIN$", os.O_RDWR, 0)
}
