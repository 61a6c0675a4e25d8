// Package fetch downloads cloud images into the working directory and turns
// whatever the mirror serves (plain disk, compressed disk, or tarball) into a
// single disk image file that qm can import.
package fetch

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
)

// ErrInsufficientSpace is returned when the working directory cannot hold a
// download of the announced size.
var ErrInsufficientSpace = errors.New("insufficient disk space")

// FileNameFromURL returns the last path segment of rawURL, ignoring any query
// string or fragment.
func FileNameFromURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}

	name := path.Base(strings.TrimSuffix(u.Path, "/"))
	if name == "" || name == "." || name == "/" {
		return "", fmt.Errorf("URL %q has no file name", rawURL)
	}
	return name, nil
}
