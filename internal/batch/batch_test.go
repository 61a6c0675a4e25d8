package batch

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ulikunitz/xz"

	"github.com/jbweber/kiln/internal/catalog"
	"github.com/jbweber/kiln/internal/config"
	"github.com/jbweber/kiln/internal/fetch"
	"github.com/jbweber/kiln/internal/metadata"
	"github.com/jbweber/kiln/internal/pve"
	"github.com/jbweber/kiln/internal/status"
	"github.com/jbweber/kiln/internal/template"
	"github.com/jbweber/kiln/internal/vmid"
)

var qcow2Header = []byte{0x51, 0x46, 0x49, 0xfb, 0, 0, 0, 3}

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.Parse([]byte(`
Ubuntu:
  versions:
    - name: "24.04"
      url: https://example.com/noble.img
Alpine Linux:
  tag: alpine
  versions:
    - name: "3.20"
      url: https://example.com/alpine.qcow2
FreeBSD:
  versions:
    - name: "14.3"
      url: https://example.com/freebsd.qcow2.xz
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return c
}

func testConfig() *config.Config {
	return &config.Config{
		Hardware: config.Hardware{Memory: 2048, Cores: 2, Sockets: 1, CPU: "host"},
		Network:  config.Network{Bridge: "vmbr0", IPv4: "dhcp", IPv6: "auto"},
		Naming:   config.Naming{Prefix: "template", StartID: 900},
		Disk:     config.Disk{Size: "20G"},
		Policy:   config.PolicyBestEffort,
	}
}

func xzBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := xz.NewWriter(&buf)
	if err != nil {
		t.Fatalf("xz.NewWriter() error = %v", err)
	}
	if _, err := w.Write(data); err != nil {
		t.Fatalf("xz write error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("xz close error = %v", err)
	}
	return buf.Bytes()
}

type harness struct {
	runner     *Runner
	downloader *fakeDownloader
	builder    *fakeBuilder
	workspace  *fetch.Workspace
	out        *bytes.Buffer
}

func newHarness(t *testing.T, used []int) *harness {
	t.Helper()
	ws, err := fetch.NewWorkspace(t.TempDir())
	if err != nil {
		t.Fatalf("NewWorkspace() error = %v", err)
	}

	h := &harness{
		downloader: &fakeDownloader{bodies: map[string][]byte{
			"https://example.com/noble.img":        qcow2Header,
			"https://example.com/alpine.qcow2":     qcow2Header,
			"https://example.com/freebsd.qcow2.xz": xzBytes(t, qcow2Header),
		}},
		builder:   &fakeBuilder{failStep: map[int]string{}, err: map[int]error{}},
		workspace: ws,
		out:       &bytes.Buffer{},
	}
	cfg := testConfig()
	h.runner = &Runner{
		Catalog:    testCatalog(t),
		Config:     cfg,
		Allocator:  vmid.NewAllocator(&fakeSource{used: used}, cfg.Naming.StartID),
		Downloader: h.downloader,
		Builder:    h.builder,
		Workspace:  ws,
		Version:    "v1.2.3",
		Out:        h.out,
		now:        func() time.Time { return time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC) },
	}
	return h
}

func allSelections() []catalog.Selection {
	return []catalog.Selection{
		{Distribution: "Ubuntu", VersionIndex: 0},
		{Distribution: "Alpine Linux", VersionIndex: 0},
		{Distribution: "FreeBSD", VersionIndex: 0},
	}
}

func testOptions() Options {
	return Options{
		Storage:     pve.Storage{Name: "local", Type: "dir", Active: true},
		Credentials: template.Credentials{Username: "admin"},
	}
}

func TestRun_BuildsEverySelection(t *testing.T) {
	h := newHarness(t, []int{900, 901, 903})

	results, err := h.runner.Run(context.Background(), allSelections(), testOptions())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	wantIDs := []int{902, 904, 905}
	wantNames := []string{"template-ubuntu-24-04", "template-alpine-linux-3-20", "template-freebsd-14-3"}
	wantTags := []string{"ubuntu", "alpine", "freebsd"}

	if len(results) != 3 || len(h.builder.descriptors) != 3 {
		t.Fatalf("got %d results and %d builds, want 3", len(results), len(h.builder.descriptors))
	}
	for i, d := range h.builder.descriptors {
		if d.ID != wantIDs[i] || results[i].ID != wantIDs[i] {
			t.Errorf("template %d ID = %d, want %d", i, d.ID, wantIDs[i])
		}
		if d.Name != wantNames[i] {
			t.Errorf("template %d name = %q, want %q", i, d.Name, wantNames[i])
		}
		if d.Tag != wantTags[i] {
			t.Errorf("template %d tag = %q, want %q", i, d.Tag, wantTags[i])
		}
		if d.Format != fetch.FormatQCOW2 {
			t.Errorf("template %d format = %q, want qcow2", i, d.Format)
		}
		if d.Storage.Name != "local" || d.Credentials.Username != "admin" {
			t.Errorf("template %d missing shared options: %+v", i, d)
		}
		if d.Hardware.Memory != 2048 || d.DiskSize != "20G" || d.Network.Bridge != "vmbr0" {
			t.Errorf("template %d missing config: %+v", i, d)
		}
		if !h.builder.imageExists[i] {
			t.Errorf("template %d image missing when the builder ran", i)
		}
		if results[i].Phase != status.PhaseCompleted {
			t.Errorf("template %d phase = %s, want Completed", i, results[i].Phase)
		}
	}

	if got := filepath.Base(h.builder.descriptors[2].ImagePath); got != "freebsd.qcow2" {
		t.Errorf("decompressed image = %q, want freebsd.qcow2", got)
	}
	if _, err := os.Stat(h.workspace.Path("freebsd.qcow2.xz")); !os.IsNotExist(err) {
		t.Error("compressed download not removed after decompression")
	}
	if !strings.Contains(h.out.String(), "✓ Template template-freebsd-14-3 (ID 905) Completed") {
		t.Errorf("missing confirmation line:\n%s", h.out.String())
	}
}

func TestRun_ProvenanceNote(t *testing.T) {
	h := newHarness(t, nil)

	if _, err := h.runner.Run(context.Background(), allSelections()[:2], testOptions()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	var runID string
	for i, d := range h.builder.descriptors {
		p, err := metadata.Parse(d.Description)
		if err != nil {
			t.Fatalf("metadata.Parse() error = %v", err)
		}
		if p.Tool != "kiln" || p.Version != "v1.2.3" || p.SourceURL != d.Entry.URL {
			t.Errorf("unexpected provenance: %+v", p)
		}
		if !p.Created.Equal(time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)) {
			t.Errorf("created = %v", p.Created)
		}
		if i == 0 {
			runID = p.RunID
		} else if p.RunID != runID {
			t.Errorf("run IDs differ within one batch: %q vs %q", runID, p.RunID)
		}
	}
	if runID == "" {
		t.Error("run ID not recorded")
	}
}

func TestRun_DegradedBuild(t *testing.T) {
	h := newHarness(t, nil)
	h.builder.failStep[900] = "resize"

	results, err := h.runner.Run(context.Background(), allSelections()[:2], testOptions())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if results[0].Phase != status.PhaseDegraded || results[1].Phase != status.PhaseCompleted {
		t.Errorf("phases = %s, %s; want Degraded, Completed", results[0].Phase, results[1].Phase)
	}
}

func TestRun_DownloadFailureStopsBatch(t *testing.T) {
	h := newHarness(t, nil)
	delete(h.downloader.bodies, "https://example.com/alpine.qcow2")

	results, err := h.runner.Run(context.Background(), allSelections(), testOptions())
	if err == nil {
		t.Fatal("Run() expected error")
	}
	if !strings.Contains(err.Error(), "template-alpine-linux-3-20") {
		t.Errorf("error does not name the template: %v", err)
	}

	wantPhases := []status.Phase{status.PhaseCompleted, status.PhaseFailed, status.PhasePending}
	if len(results) != len(wantPhases) {
		t.Fatalf("got %d results, want %d", len(results), len(wantPhases))
	}
	for i, want := range wantPhases {
		if results[i].Phase != want {
			t.Errorf("result %d phase = %s, want %s", i, results[i].Phase, want)
		}
	}
	if len(h.downloader.urls) != 2 {
		t.Errorf("downloads attempted = %d, want 2", len(h.downloader.urls))
	}

	sum := status.Summarize(results)
	if sum.Completed != 1 || sum.Failed != 1 || sum.Pending != 1 {
		t.Errorf("summary = %+v", sum)
	}
}

func TestRun_CorruptArchiveStopsBatch(t *testing.T) {
	h := newHarness(t, nil)
	h.downloader.bodies["https://example.com/freebsd.qcow2.xz"] = []byte("not xz")

	results, err := h.runner.Run(context.Background(), allSelections()[2:], testOptions())
	if err == nil || !strings.Contains(err.Error(), "failed to decompress") {
		t.Fatalf("Run() error = %v, want decompress failure", err)
	}
	if results[0].Phase != status.PhaseFailed {
		t.Errorf("phase = %s, want Failed", results[0].Phase)
	}
	if _, err := os.Stat(h.workspace.Path("freebsd.qcow2.xz")); !os.IsNotExist(err) {
		t.Error("corrupt download left in the workspace")
	}
	if len(h.builder.descriptors) != 0 {
		t.Error("builder ran after a decompression failure")
	}
}

func TestRun_StepErrorStopsBatch(t *testing.T) {
	h := newHarness(t, nil)
	h.builder.err[900] = &template.StepError{Step: "disk", ExitCode: 255}

	results, err := h.runner.Run(context.Background(), allSelections()[:2], testOptions())

	var stepErr *template.StepError
	if !errors.As(err, &stepErr) || stepErr.Step != "disk" {
		t.Fatalf("Run() error = %v, want *template.StepError", err)
	}
	if results[0].Phase != status.PhaseFailed || results[1].Phase != status.PhasePending {
		t.Errorf("phases = %s, %s", results[0].Phase, results[1].Phase)
	}
}

func TestRun_AllocationFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.runner.Allocator = vmid.NewAllocator(&fakeSource{err: errors.New("qm: command not found")}, 900)

	results, err := h.runner.Run(context.Background(), allSelections()[:1], testOptions())
	if err == nil {
		t.Fatal("Run() expected error")
	}
	if len(results) != 1 || results[0].Phase != status.PhasePending {
		t.Errorf("results = %+v", results)
	}
}

func TestRun_UnknownSelection(t *testing.T) {
	h := newHarness(t, nil)

	_, err := h.runner.Run(context.Background(), []catalog.Selection{{Distribution: "Plan 9"}}, testOptions())
	if err == nil {
		t.Fatal("Run() expected error for unknown distribution")
	}
	if len(h.downloader.urls) != 0 {
		t.Error("downloaded before validating selections")
	}
}
