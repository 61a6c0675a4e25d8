package fetch

import (
	"archive/tar"
	"compress/bzip2"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"
)

// archiveSuffixes maps tarball suffixes to the compression wrapped around the
// tar stream. Longer suffixes must be matched before ".xz" and friends.
var archiveSuffixes = []struct {
	suffix      string
	compression string
}{
	{".tar.xz", "xz"},
	{".txz", "xz"},
	{".tar.gz", "gz"},
	{".tgz", "gz"},
	{".tar.bz2", "bz2"},
	{".tar", ""},
}

var singleSuffixes = []struct {
	suffix      string
	compression string
}{
	{".xz", "xz"},
	{".gz", "gz"},
	{".bz2", "bz2"},
}

// DiskSuffixes are the member names preferred when extracting from a tarball.
var DiskSuffixes = []string{".qcow2", ".img", ".raw", ".vmdk", ".vhd", ".vhdx"}

// Decompress turns a downloaded file into a disk image and returns its path.
//
//   - Tarballs are unpacked to a temporary .tar, then the first member with a
//     disk suffix (or the first regular file when none has one) is extracted
//     next to the archive. The archive and the temporary .tar are removed.
//   - Single compressed files lose their compression suffix; the compressed
//     file is removed.
//   - Anything else is returned unchanged.
func Decompress(path string) (string, error) {
	lower := strings.ToLower(path)

	for _, a := range archiveSuffixes {
		if strings.HasSuffix(lower, a.suffix) {
			return extractArchive(path, a.suffix, a.compression)
		}
	}

	for _, s := range singleSuffixes {
		if strings.HasSuffix(lower, s.suffix) {
			dest := path[:len(path)-len(s.suffix)]
			if err := decompressFile(path, dest, s.compression); err != nil {
				return "", err
			}
			if err := os.Remove(path); err != nil {
				return "", fmt.Errorf("failed to remove %s: %w", path, err)
			}
			return dest, nil
		}
	}

	return path, nil
}

func extractArchive(path, suffix, compression string) (string, error) {
	tarPath := path
	if compression != "" {
		tarPath = path[:len(path)-len(suffix)] + ".tar"
		if err := decompressFile(path, tarPath, compression); err != nil {
			return "", err
		}
	}

	member, err := pickMember(tarPath)
	if err != nil {
		_ = removeIfTemp(tarPath, path)
		return "", err
	}

	dest := filepath.Join(filepath.Dir(path), filepath.Base(member))
	if err := extractMember(tarPath, member, dest); err != nil {
		_ = removeIfTemp(tarPath, path)
		return "", err
	}

	if err := removeIfTemp(tarPath, path); err != nil {
		return "", err
	}
	if err := os.Remove(path); err != nil {
		return "", fmt.Errorf("failed to remove %s: %w", path, err)
	}
	return dest, nil
}

func removeIfTemp(tarPath, original string) error {
	if tarPath == original {
		return nil
	}
	if err := os.Remove(tarPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", tarPath, err)
	}
	return nil
}

// ListArchive returns the regular-file members of a tar file in order.
func ListArchive(tarPath string) ([]string, error) {
	f, err := os.Open(tarPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer func() { _ = f.Close() }()

	var names []string
	tr := tar.NewReader(f)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read archive: %w", err)
		}
		if hdr.Typeflag == tar.TypeReg {
			names = append(names, hdr.Name)
		}
	}
	return names, nil
}

// PickDiskMember chooses the member to extract from an archive listing.
func PickDiskMember(names []string) (string, bool) {
	for _, name := range names {
		lower := strings.ToLower(name)
		for _, s := range DiskSuffixes {
			if strings.HasSuffix(lower, s) {
				return name, true
			}
		}
	}
	if len(names) > 0 {
		return names[0], true
	}
	return "", false
}

func pickMember(tarPath string) (string, error) {
	names, err := ListArchive(tarPath)
	if err != nil {
		return "", err
	}
	member, ok := PickDiskMember(names)
	if !ok {
		return "", fmt.Errorf("archive %s contains no files", filepath.Base(tarPath))
	}
	return member, nil
}

func extractMember(tarPath, member, dest string) error {
	f, err := os.Open(tarPath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer func() { _ = f.Close() }()

	tr := tar.NewReader(f)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return fmt.Errorf("member %s not found in archive", member)
		}
		if err != nil {
			return fmt.Errorf("failed to read archive: %w", err)
		}
		if hdr.Name != member || hdr.Typeflag != tar.TypeReg {
			continue
		}
		return writeFile(dest, tr)
	}
}

func decompressFile(src, dest, compression string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer func() { _ = in.Close() }()

	r, err := newDecompressor(in, compression)
	if err != nil {
		return fmt.Errorf("failed to decompress %s: %w", filepath.Base(src), err)
	}

	if err := writeFile(dest, r); err != nil {
		return fmt.Errorf("failed to decompress %s: %w", filepath.Base(src), err)
	}
	return nil
}

func newDecompressor(r io.Reader, compression string) (io.Reader, error) {
	switch compression {
	case "xz":
		return xz.NewReader(r)
	case "gz":
		return gzip.NewReader(r)
	case "bz2":
		return bzip2.NewReader(r), nil
	default:
		return nil, fmt.Errorf("unsupported compression %q", compression)
	}
}

func writeFile(dest string, r io.Reader) error {
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dest, err)
	}
	if _, err := io.Copy(out, r); err != nil {
		_ = out.Close()
		_ = os.Remove(dest)
		return err
	}
	return out.Close()
}
