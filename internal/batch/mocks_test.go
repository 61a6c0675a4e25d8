package batch

import (
	"context"
	"errors"
	"os"

	"github.com/jbweber/kiln/internal/status"
	"github.com/jbweber/kiln/internal/template"
)

type fakeSource struct {
	used []int
	err  error
}

func (f *fakeSource) UsedIDs(context.Context) ([]int, error) {
	return f.used, f.err
}

// fakeDownloader writes canned bodies keyed by URL.
type fakeDownloader struct {
	bodies map[string][]byte
	urls   []string
}

func (f *fakeDownloader) Download(_ context.Context, url, dest string) error {
	f.urls = append(f.urls, url)
	body, ok := f.bodies[url]
	if !ok {
		return errors.New("download failed: HTTP 404")
	}
	return os.WriteFile(dest, body, 0o644)
}

// fakeBuilder records descriptors and can fail or degrade a build.
type fakeBuilder struct {
	descriptors []template.Descriptor
	imageExists []bool

	failStep map[int]string // vmid -> step recorded as failed
	err      map[int]error  // vmid -> returned error
}

func (f *fakeBuilder) Build(_ context.Context, d *template.Descriptor, result *status.Result) error {
	f.descriptors = append(f.descriptors, *d)
	_, statErr := os.Stat(d.ImagePath)
	f.imageExists = append(f.imageExists, statErr == nil)
	_ = os.Remove(d.ImagePath)

	if step, ok := f.failStep[d.ID]; ok {
		status.MarkStepFailed(result, step)
	}
	return f.err[d.ID]
}
