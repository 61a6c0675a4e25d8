package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
)

// progressInterval throttles progress redraws.
const progressInterval = 100 * time.Millisecond

// SpaceChecker refuses downloads that would not fit.
type SpaceChecker interface {
	CheckSpace(need int64) error
}

// Downloader streams an HTTP resource to a local file.
type Downloader struct {
	// Client defaults to http.DefaultClient.
	Client *http.Client
	// Progress receives the progress line. Nil disables progress output.
	Progress io.Writer
	// Space, when set, is consulted with the announced Content-Length.
	Space SpaceChecker
	// Logger defaults to a no-op logger.
	Logger *zap.Logger
}

// Download fetches url into dest. Data is written to dest+".part" and
// renamed into place only after the body has been fully read, so dest never
// holds a truncated image. There is no retry and no resume.
func (d *Downloader) Download(ctx context.Context, url, dest string) error {
	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("download failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}

	if resp.ContentLength > 0 && d.Space != nil {
		if err := d.Space.CheckSpace(resp.ContentLength); err != nil {
			return err
		}
	}

	logger.Info("downloading image",
		zap.String("url", url),
		zap.String("dest", dest),
		zap.Int64("size", resp.ContentLength))

	partPath := dest + ".part"
	out, err := os.OpenFile(partPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", partPath, err)
	}

	counter := &writeCounter{out: d.Progress}
	if resp.ContentLength > 0 {
		counter.total = resp.ContentLength
	}

	written, copyErr := io.Copy(out, io.TeeReader(resp.Body, counter))
	counter.finish()
	closeErr := out.Close()

	if copyErr != nil {
		_ = os.Remove(partPath)
		return fmt.Errorf("write failed: %w", copyErr)
	}
	if closeErr != nil {
		_ = os.Remove(partPath)
		return fmt.Errorf("failed to close %s: %w", partPath, closeErr)
	}
	if counter.total > 0 && written != counter.total {
		_ = os.Remove(partPath)
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", counter.total, written)
	}

	if err := os.Rename(partPath, dest); err != nil {
		return fmt.Errorf("rename failed: %w", err)
	}

	logger.Info("download complete", zap.String("dest", dest), zap.Int64("bytes", written))
	return nil
}

// writeCounter counts bytes passing through and redraws a single progress
// line: a percentage when the total is known, a byte count otherwise.
type writeCounter struct {
	total   int64
	current int64
	out     io.Writer
	lastUpd time.Time
}

func (wc *writeCounter) Write(p []byte) (int, error) {
	n := len(p)
	wc.current += int64(n)
	wc.print(false)
	return n, nil
}

func (wc *writeCounter) print(force bool) {
	if wc.out == nil {
		return
	}
	if !force && time.Since(wc.lastUpd) < progressInterval {
		return
	}
	wc.lastUpd = time.Now()

	if wc.total <= 0 {
		_, _ = fmt.Fprintf(wc.out, "\rDownloaded %d bytes", wc.current)
		return
	}
	percent := float64(wc.current) / float64(wc.total) * 100
	_, _ = fmt.Fprintf(wc.out, "\rDownloaded %.1f%%", percent)
}

func (wc *writeCounter) finish() {
	if wc.out == nil {
		return
	}
	wc.print(true)
	_, _ = fmt.Fprintln(wc.out)
}
