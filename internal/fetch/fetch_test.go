package fetch

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

func TestFileNameFromURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		want    string
		wantErr bool
	}{
		{"plain", "https://cloud-images.ubuntu.com/noble/current/noble-server-cloudimg-amd64.img", "noble-server-cloudimg-amd64.img", false},
		{"query stripped", "https://example.com/images/disk.qcow2?token=abc", "disk.qcow2", false},
		{"fragment stripped", "https://example.com/a/b.raw#frag", "b.raw", false},
		{"no path", "https://example.com", "", true},
		{"root path", "https://example.com/", "", true},
		{"invalid", "://bad", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FileNameFromURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Fatalf("FileNameFromURL() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("FileNameFromURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

type fakeSpace struct {
	need int64
	err  error
}

func (f *fakeSpace) CheckSpace(need int64) error {
	f.need = need
	return f.err
}

func TestDownloader_Download(t *testing.T) {
	payload := strings.Repeat("x", 4096)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/image.qcow2":
			w.Header().Set("Content-Length", strconv.Itoa(len(payload)))
			_, _ = w.Write([]byte(payload))
		case "/chunked.img":
			// No Content-Length: flushing forces chunked encoding.
			_, _ = w.Write([]byte(payload[:100]))
			w.(http.Flusher).Flush()
			_, _ = w.Write([]byte(payload[100:]))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	t.Run("known size reports percent", func(t *testing.T) {
		dir := t.TempDir()
		dest := filepath.Join(dir, "image.qcow2")
		var progress bytes.Buffer
		space := &fakeSpace{}
		d := &Downloader{Client: srv.Client(), Progress: &progress, Space: space}

		if err := d.Download(context.Background(), srv.URL+"/image.qcow2", dest); err != nil {
			t.Fatalf("Download() error = %v", err)
		}
		if readFile(t, dest) != payload {
			t.Error("downloaded content mismatch")
		}
		assertGone(t, dest+".part")
		if space.need != int64(len(payload)) {
			t.Errorf("space check need = %d, want %d", space.need, len(payload))
		}
		if !strings.Contains(progress.String(), "100.0%") {
			t.Errorf("progress %q does not report 100.0%%", progress.String())
		}
	})

	t.Run("unknown size reports bytes", func(t *testing.T) {
		dir := t.TempDir()
		dest := filepath.Join(dir, "chunked.img")
		var progress bytes.Buffer
		d := &Downloader{Client: srv.Client(), Progress: &progress}

		if err := d.Download(context.Background(), srv.URL+"/chunked.img", dest); err != nil {
			t.Fatalf("Download() error = %v", err)
		}
		if !strings.Contains(progress.String(), "4096 bytes") {
			t.Errorf("progress %q does not report byte count", progress.String())
		}
	})

	t.Run("not found", func(t *testing.T) {
		dir := t.TempDir()
		dest := filepath.Join(dir, "missing.img")
		d := &Downloader{Client: srv.Client()}

		err := d.Download(context.Background(), srv.URL+"/missing.img", dest)
		if err == nil || !strings.Contains(err.Error(), "HTTP 404") {
			t.Fatalf("Download() error = %v, want HTTP 404", err)
		}
		assertGone(t, dest)
		assertGone(t, dest+".part")
	})

	t.Run("insufficient space", func(t *testing.T) {
		dir := t.TempDir()
		dest := filepath.Join(dir, "image.qcow2")
		d := &Downloader{Client: srv.Client(), Space: &fakeSpace{err: ErrInsufficientSpace}}

		err := d.Download(context.Background(), srv.URL+"/image.qcow2", dest)
		if !errors.Is(err, ErrInsufficientSpace) {
			t.Fatalf("Download() error = %v, want ErrInsufficientSpace", err)
		}
		assertGone(t, dest+".part")
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		d := &Downloader{Client: srv.Client()}

		if err := d.Download(ctx, srv.URL+"/image.qcow2", filepath.Join(t.TempDir(), "x")); err == nil {
			t.Fatal("expected error for cancelled context, got nil")
		}
	})
}

func TestDiskFormat(t *testing.T) {
	dir := t.TempDir()
	qcowImg := writeTemp(t, dir, "jammy.img", append([]byte{0x51, 0x46, 0x49, 0xfb}, make([]byte, 508)...))
	rawImg := writeTemp(t, dir, "raw.img", make([]byte, 512))
	tinyImg := writeTemp(t, dir, "tiny.img", []byte{0x51})

	tests := []struct {
		name    string
		path    string
		want    string
		wantErr bool
	}{
		{"qcow2 extension", "/tmp/debian-13-genericcloud-amd64.qcow2", FormatQCOW2, false},
		{"vmdk extension", "/tmp/disk.VMDK", FormatVMDK, false},
		{"raw extension", "/tmp/disk.raw", FormatRaw, false},
		{"img with qcow2 magic", qcowImg, FormatQCOW2, false},
		{"img without magic", rawImg, FormatRaw, false},
		{"img too short", tinyImg, FormatRaw, false},
		{"img missing", filepath.Join(dir, "nope.img"), "", true},
		{"unknown extension", "/tmp/disk.bin", FormatRaw, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DiskFormat(tt.path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("DiskFormat() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("DiskFormat() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWorkspace_CheckSpace(t *testing.T) {
	w := &Workspace{
		Dir:       "/work",
		available: func(string) (uint64, error) { return 10 << 20, nil },
	}

	tests := []struct {
		name    string
		need    int64
		wantErr bool
	}{
		{"fits", 5 << 20, false},
		{"exact", 10 << 20, false},
		{"too large", 11 << 20, true},
		{"unknown size", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := w.CheckSpace(tt.need)
			if (err != nil) != tt.wantErr {
				t.Fatalf("CheckSpace() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, ErrInsufficientSpace) {
				t.Errorf("error %v is not ErrInsufficientSpace", err)
			}
		})
	}
}

func TestWorkspace_RealFilesystem(t *testing.T) {
	w, err := NewWorkspace(filepath.Join(t.TempDir(), "work"))
	if err != nil {
		t.Fatalf("NewWorkspace() error = %v", err)
	}
	if _, err := os.Stat(w.Dir); err != nil {
		t.Fatalf("workspace dir not created: %v", err)
	}
	free, err := w.Available()
	if err != nil {
		t.Fatalf("Available() error = %v", err)
	}
	if free == 0 {
		t.Error("Available() reported zero free bytes")
	}
	if got := w.Path("../../etc/passwd"); got != filepath.Join(w.Dir, "passwd") {
		t.Errorf("Path() escaped the workspace: %s", got)
	}
}

func TestWorkspace_Remove(t *testing.T) {
	dir := t.TempDir()
	w := &Workspace{Dir: dir}
	a := writeTemp(t, dir, "a.img", []byte("a"))
	b := writeTemp(t, dir, ".kiln-900-abc.pub", []byte("b"))

	if err := w.Remove(a, b, filepath.Join(dir, "missing"), ""); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	assertGone(t, a)
	assertGone(t, b)
}
