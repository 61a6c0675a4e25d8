// Package batch builds the selected templates one after another.
//
// For every selection the runner allocates an identifier, downloads and
// unpacks the image into the workspace, records provenance, and hands a
// template.Descriptor to the builder. Templates share the working directory,
// so the first download, decompression or aborted build stops the batch;
// selections not yet attempted stay Pending in the results.
package batch

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jbweber/kiln/internal/catalog"
	"github.com/jbweber/kiln/internal/config"
	"github.com/jbweber/kiln/internal/fetch"
	"github.com/jbweber/kiln/internal/metadata"
	"github.com/jbweber/kiln/internal/naming"
	"github.com/jbweber/kiln/internal/pve"
	"github.com/jbweber/kiln/internal/status"
	"github.com/jbweber/kiln/internal/template"
	"github.com/jbweber/kiln/internal/vmid"
)

// Downloader fetches an image to a local path. Satisfied by *fetch.Downloader.
type Downloader interface {
	Download(ctx context.Context, url, dest string) error
}

// Builder creates one template. Satisfied by *template.Builder.
type Builder interface {
	Build(ctx context.Context, d *template.Descriptor, result *status.Result) error
}

// Options are the decisions shared by every template in a batch.
type Options struct {
	Storage     pve.Storage
	Credentials template.Credentials
}

// Runner drives a batch.
type Runner struct {
	Catalog    *catalog.Catalog
	Config     *config.Config
	Allocator  *vmid.Allocator
	Downloader Downloader
	Builder    Builder
	Workspace  *fetch.Workspace

	// Version is recorded in the provenance note.
	Version string
	Logger  *zap.Logger
	// Out receives operator-facing progress lines.
	Out io.Writer

	now func() time.Time
}

// Run builds every selection in order. The returned results cover all
// selections, including the ones never attempted after a fatal error.
func (r *Runner) Run(ctx context.Context, selections []catalog.Selection, opts Options) ([]*status.Result, error) {
	logger := r.logger()
	runID := uuid.NewString()
	logger.Info("starting batch", zap.String("run_id", runID), zap.Int("templates", len(selections)))

	entries := make([]catalog.Entry, len(selections))
	for i, sel := range selections {
		entry, err := r.Catalog.Resolve(sel)
		if err != nil {
			return nil, err
		}
		entries[i] = entry
	}

	results := make([]*status.Result, 0, len(entries))
	for i, entry := range entries {
		id, err := r.Allocator.Next(ctx)
		if err != nil {
			return append(results, pending(r.Config, entries[i:])...), err
		}

		name := naming.TemplateName(r.Config.Naming.Prefix, entry.Distribution, entry.Version)
		result := status.NewResult(id, name, entry.Distribution, entry.Version)
		results = append(results, result)

		r.printf("Generating template %s (ID %d) from %s %s ...\n", name, id, entry.Distribution, entry.Version)

		if err := r.buildOne(ctx, runID, entry, result, opts); err != nil {
			status.TransitionToFailed(result, err.Error())
			logger.Error("template failed",
				zap.Int("vmid", id),
				zap.String("name", name),
				zap.Error(err))
			return append(results, pending(r.Config, entries[i+1:])...),
				fmt.Errorf("template %s: %w", name, err)
		}

		r.printf("✓ Template %s (ID %d) %s\n\n", name, id, result.Phase)
	}

	logger.Info("batch finished", zap.String("run_id", runID), zap.Stringer("summary", status.Summarize(results)))
	return results, nil
}

func (r *Runner) buildOne(ctx context.Context, runID string, entry catalog.Entry, result *status.Result, opts Options) error {
	if err := status.TransitionToDownloading(result); err != nil {
		return err
	}

	fileName, err := fetch.FileNameFromURL(entry.URL)
	if err != nil {
		return err
	}
	dest := r.Workspace.Path(fileName)

	r.printf("Downloading image from %s ...\n", entry.URL)
	if err := r.Downloader.Download(ctx, entry.URL, dest); err != nil {
		return fmt.Errorf("failed to download %s: %w", entry.URL, err)
	}

	if err := status.TransitionToExtracting(result); err != nil {
		return err
	}

	image, err := fetch.Decompress(dest)
	if err != nil {
		_ = r.Workspace.Remove(dest)
		return fmt.Errorf("failed to decompress %s: %w", fileName, err)
	}
	if image != dest {
		r.printf("Decompressed %s to %s\n", fileName, filepath.Base(image))
	}

	format, err := fetch.DiskFormat(image)
	if err != nil {
		_ = r.Workspace.Remove(image)
		return fmt.Errorf("failed to detect image format: %w", err)
	}

	note, err := metadata.Render(metadata.Provenance{
		Version:      r.Version,
		RunID:        runID,
		Distribution: entry.Distribution,
		Release:      entry.Version,
		SourceURL:    entry.URL,
		Image:        filepath.Base(image),
		Format:       format,
		Created:      r.clock(),
	})
	if err != nil {
		_ = r.Workspace.Remove(image)
		return err
	}

	if err := status.TransitionToBuilding(result); err != nil {
		return err
	}

	cfg := r.Config
	d := &template.Descriptor{
		ID:          result.ID,
		Name:        result.Name,
		Storage:     opts.Storage,
		Hardware:    cfg.Hardware,
		Network:     cfg.Network,
		Credentials: opts.Credentials,
		DiskSize:    cfg.Disk.Size,
		Tag:         naming.Tag(entry.Tag, entry.Distribution),
		Entry:       entry,
		ImagePath:   image,
		Format:      format,
		Description: note,
	}
	if err := r.Builder.Build(ctx, d, result); err != nil {
		return err
	}

	return status.TransitionToFinished(result)
}

// pending records selections that were never attempted.
func pending(cfg *config.Config, entries []catalog.Entry) []*status.Result {
	out := make([]*status.Result, 0, len(entries))
	for _, e := range entries {
		name := naming.TemplateName(cfg.Naming.Prefix, e.Distribution, e.Version)
		out = append(out, &status.Result{
			Name:         name,
			Distribution: e.Distribution,
			Version:      e.Version,
			Phase:        status.PhasePending,
		})
	}
	return out
}

func (r *Runner) printf(format string, args ...any) {
	if r.Out == nil {
		return
	}
	_, _ = fmt.Fprintf(r.Out, format, args...)
}

func (r *Runner) clock() time.Time {
	if r.now == nil {
		return time.Now()
	}
	return r.now()
}

func (r *Runner) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}
