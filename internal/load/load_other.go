//go:build !unix

package load

import (
	"fmt"
	"runtime"

	"github.com/xyproto/zelf"
)

// MapAnon is unavailable outside unix: this package's anonymous and
// file-backed mappings both go through golang.org/x/sys/unix.
func MapAnon(size int, base zelf.Addr) (LoadBuf, error) {
	return LoadBuf{}, fmt.Errorf("load: MapAnon not supported on %s", runtime.GOOS)
}

// OpenMapped is unavailable outside unix; see MapAnon.
func OpenMapped(path string, base zelf.Addr) (LoadBuf, error) {
	return LoadBuf{}, fmt.Errorf("load: OpenMapped not supported on %s", runtime.GOOS)
}

// Unmap is unavailable outside unix; see MapAnon.
func Unmap(l LoadBuf) error {
	return fmt.Errorf("load: Unmap not supported on %s", runtime.GOOS)
}
