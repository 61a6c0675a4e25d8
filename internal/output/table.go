package output

import (
	"bytes"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/jbweber/kiln/internal/catalog"
	"github.com/jbweber/kiln/internal/pve"
	"github.com/jbweber/kiln/internal/status"
)

// TableFormatter formats data as human-readable tables.
type TableFormatter struct {
	// NoHeaders omits the header row.
	NoHeaders bool
}

func (f *TableFormatter) render(header string, rows func(w io.Writer)) string {
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	if !f.NoHeaders {
		_, _ = fmt.Fprintln(w, header)
	}
	rows(w)

	_ = w.Flush()
	return buf.String()
}

// FormatEntries formats catalog entries as a table.
func (f *TableFormatter) FormatEntries(entries []catalog.Entry) (string, error) {
	if len(entries) == 0 {
		return "No catalog entries found\n", nil
	}

	return f.render("DISTRIBUTION\tVERSION\tTAG\tDEPRECATED\tURL", func(w io.Writer) {
		for _, e := range entries {
			deprecated := "-"
			if e.Deprecated {
				deprecated = "yes"
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				e.Distribution, e.Version, dash(e.Tag), deprecated, e.URL)
		}
	}), nil
}

// FormatChecks formats URL check results as a table.
func (f *TableFormatter) FormatChecks(results []catalog.CheckResult) (string, error) {
	if len(results) == 0 {
		return "No URLs checked\n", nil
	}

	return f.render("DISTRIBUTION\tVERSION\tRESULT\tURL", func(w io.Writer) {
		for _, r := range results {
			result := "OK"
			if !r.OK() {
				result = r.Reason()
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				r.Entry.Distribution, r.Entry.Version, result, r.Entry.URL)
		}
	}), nil
}

// FormatResults formats batch results as a table.
func (f *TableFormatter) FormatResults(results []*status.Result) (string, error) {
	if len(results) == 0 {
		return "No templates built\n", nil
	}

	return f.render("ID\tNAME\tPHASE\tDURATION\tMESSAGE", func(w io.Writer) {
		for _, r := range results {
			duration := "-"
			if !r.Started.IsZero() {
				duration = formatDuration(r.Duration())
			}
			_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
				r.ID, r.Name, r.Phase, duration, dash(r.Message))
		}
	}), nil
}

// FormatStorages formats storages as a table.
func (f *TableFormatter) FormatStorages(storages []pve.Storage) (string, error) {
	if len(storages) == 0 {
		return "No storages found\n", nil
	}

	return f.render("NAME\tTYPE\tFILE-BASED", func(w io.Writer) {
		for _, s := range storages {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%t\n", s.Name, s.Type, s.FileBased())
		}
	}), nil
}

// FormatSnippets formats snippets as a table.
func (f *TableFormatter) FormatSnippets(snippets []pve.Snippet) (string, error) {
	if len(snippets) == 0 {
		return "No snippets found\n", nil
	}

	return f.render("STORAGE\tFILE\tREFERENCE", func(w io.Writer) {
		for _, s := range snippets {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", s.Storage, s.File, s.Ref())
		}
	}), nil
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// formatDuration formats a duration as a short human-readable string.
// Examples: "5s", "2m30s", "1h4m"
func formatDuration(d time.Duration) string {
	if d < 0 {
		return "unknown"
	}

	seconds := int(d.Seconds())
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}

	minutes := seconds / 60
	if minutes < 60 {
		if rem := seconds % 60; rem > 0 {
			return fmt.Sprintf("%dm%ds", minutes, rem)
		}
		return fmt.Sprintf("%dm", minutes)
	}

	hours := minutes / 60
	if rem := minutes % 60; rem > 0 {
		return fmt.Sprintf("%dh%dm", hours, rem)
	}
	return fmt.Sprintf("%dh", hours)
}
