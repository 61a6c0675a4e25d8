package fetch

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Disk formats understood by qm's import-from.
const (
	FormatQCOW2 = "qcow2"
	FormatRaw   = "raw"
	FormatVMDK  = "vmdk"
)

// qcow2Magic is "QFI" followed by 0xfb at offset 0.
// Reference: https://www.qemu.org/docs/master/interop/qcow2.html
var qcow2Magic = []byte{0x51, 0x46, 0x49, 0xfb}

// DiskFormat reports the image format of path. Unambiguous extensions decide
// directly. ".img" is used by distributions for both qcow2 and raw images, so
// it is sniffed for the qcow2 header and treated as raw otherwise.
func DiskFormat(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".qcow2":
		return FormatQCOW2, nil
	case ".vmdk":
		return FormatVMDK, nil
	case ".raw":
		return FormatRaw, nil
	case ".img":
		return sniffFormat(path)
	default:
		return FormatRaw, nil
	}
}

func sniffFormat(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	magic := make([]byte, len(qcow2Magic))
	if _, err := io.ReadFull(f, magic); err != nil {
		// Too short for a qcow2 header.
		return FormatRaw, nil
	}
	if bytes.Equal(magic, qcow2Magic) {
		return FormatQCOW2, nil
	}
	return FormatRaw, nil
}
