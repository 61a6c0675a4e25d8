package prompt

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/charmbracelet/huh"

	"github.com/jbweber/kiln/internal/catalog"
)

const testSSHKey = "ssh-ed25519 AAAAC3NzaC1lZDI1NTE5AAAAIIbJKZscbOLzBsgY5y2QupKW4A2kSDjMBQGPb1dChr+S test@example.com"

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.Parse([]byte(`
Ubuntu:
  versions:
    - name: "22.04"
      url: https://example.com/jammy.img
    - name: "24.04"
      url: https://example.com/noble.img
Alpine:
  tag: alpine
  versions:
    - name: "3.20"
      url: https://example.com/alpine-3.20.qcow2
      deprecated: true
`))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return c
}

func newTestPrompter(input string) (*Prompter, *bytes.Buffer) {
	var out bytes.Buffer
	return New(strings.NewReader(input), &out), &out
}

func TestParseChoice(t *testing.T) {
	tests := []struct {
		input   string
		n       int
		want    int
		wantErr bool
	}{
		{"1", 3, 0, false},
		{" 3 ", 3, 2, false},
		{"0", 3, 0, true},
		{"4", 3, 0, true},
		{"-1", 3, 0, true},
		{"abc", 3, 0, true},
		{"", 3, 0, true},
		{"1.5", 3, 0, true},
		{"1", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseChoice(tt.input, tt.n)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseChoice(%q, %d) error = %v, wantErr %v", tt.input, tt.n, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseChoice(%q, %d) = %d, want %d", tt.input, tt.n, got, tt.want)
			}
		})
	}
}

func TestChoose_RepromptsUntilValid(t *testing.T) {
	p, out := newTestPrompter("x\n9\n\n2\n")

	idx, err := p.Choose("Select OS", []string{"Ubuntu", "Debian"})
	if err != nil {
		t.Fatalf("Choose() error = %v", err)
	}
	if idx != 1 {
		t.Errorf("Choose() = %d, want 1", idx)
	}

	text := out.String()
	if !strings.Contains(text, "1) Ubuntu\n2) Debian\n") {
		t.Errorf("menu not printed:\n%s", text)
	}
	if got := strings.Count(text, "Enter choice: "); got != 4 {
		t.Errorf("prompted %d times, want 4", got)
	}
}

func TestChoose_EOF(t *testing.T) {
	p, _ := newTestPrompter("7\n")

	_, err := p.Choose("Select OS", []string{"Ubuntu"})
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("Choose() error = %v, want io.ErrUnexpectedEOF", err)
	}
}

func TestChoose_LastLineWithoutNewline(t *testing.T) {
	p, _ := newTestPrompter("1")

	idx, err := p.Choose("Select OS", []string{"Ubuntu"})
	if err != nil || idx != 0 {
		t.Errorf("Choose() = %d, %v", idx, err)
	}
}

func TestChoose_NoOptions(t *testing.T) {
	p, _ := newTestPrompter("1\n")
	if _, err := p.Choose("Select storage", nil); err == nil {
		t.Error("Choose() expected error for empty options")
	}
}

func TestAsk_Validates(t *testing.T) {
	p, out := newTestPrompter("Root\nadmin\n")

	got, err := p.Ask("username", func(s string) error {
		if s != strings.ToLower(s) {
			return errors.New("must be lowercase")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if got != "admin" {
		t.Errorf("Ask() = %q, want admin", got)
	}
	if !strings.Contains(out.String(), "must be lowercase") {
		t.Errorf("validation message not shown:\n%s", out.String())
	}
}

func TestPassword(t *testing.T) {
	p, _ := newTestPrompter("\n")
	pw, err := p.Password("password")
	if err != nil || pw != "" {
		t.Errorf("Password() = %q, %v; want empty", pw, err)
	}

	p, out := newTestPrompter("")
	p.readPassword = func() (string, error) { return "hidden", nil }
	pw, err = p.Password("password")
	if err != nil || pw != "hidden" {
		t.Errorf("Password() = %q, %v", pw, err)
	}
	if strings.Contains(out.String(), "hidden") {
		t.Error("password echoed to output")
	}
}

func TestSelectSingle(t *testing.T) {
	c := testCatalog(t)
	p, out := newTestPrompter("2\n1\n")

	sel, err := p.SelectSingle(c)
	if err != nil {
		t.Fatalf("SelectSingle() error = %v", err)
	}
	if sel.Distribution != "Alpine" || sel.VersionIndex != 0 {
		t.Errorf("SelectSingle() = %+v", sel)
	}
	if !strings.Contains(out.String(), "1) 3.20 (deprecated)") {
		t.Errorf("deprecated label missing:\n%s", out.String())
	}
}

func TestChecklist_FallsBackWithoutTerminal(t *testing.T) {
	c := testCatalog(t)
	p, _ := newTestPrompter("1\n2\n")
	p.runChecklist = func(*huh.Form, *checklistAnswer) error {
		t.Fatal("form must not run without a terminal")
		return nil
	}

	sels, err := p.Checklist(c)
	if err != nil {
		t.Fatalf("Checklist() error = %v", err)
	}
	if len(sels) != 1 || sels[0].Distribution != "Ubuntu" || sels[0].VersionIndex != 1 {
		t.Errorf("Checklist() = %+v", sels)
	}
}

func TestChecklist_FormOutcomes(t *testing.T) {
	tests := []struct {
		name    string
		formErr error
		input   string
		wantErr error
		wantLen int
	}{
		{name: "aborted", formErr: huh.ErrUserAborted, wantErr: ErrCancelled},
		{name: "not confirmed", formErr: nil, wantErr: ErrCancelled},
		{name: "form fails", formErr: errors.New("could not open a new TTY"), input: "1\n1\n", wantLen: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := newTestPrompter(tt.input)
			p.interactive = true
			p.runChecklist = func(*huh.Form, *checklistAnswer) error { return tt.formErr }

			sels, err := p.Checklist(testCatalog(t))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("Checklist() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Checklist() error = %v", err)
			}
			if len(sels) != tt.wantLen {
				t.Errorf("Checklist() returned %d selections, want %d", len(sels), tt.wantLen)
			}
		})
	}
}

func TestChecklist_Confirmed(t *testing.T) {
	tests := []struct {
		name   string
		picked []int
		want   []catalog.Selection
	}{
		{
			name:   "across distributions with deprecated",
			picked: []int{0, 2},
			want:   []catalog.Selection{{Distribution: "Ubuntu", VersionIndex: 0}, {Distribution: "Alpine", VersionIndex: 0}},
		},
		{
			name:   "order follows picks",
			picked: []int{2, 1},
			want:   []catalog.Selection{{Distribution: "Alpine", VersionIndex: 0}, {Distribution: "Ubuntu", VersionIndex: 1}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := newTestPrompter("")
			p.interactive = true
			p.runChecklist = func(_ *huh.Form, answer *checklistAnswer) error {
				answer.Picked = tt.picked
				answer.Confirmed = true
				return nil
			}

			c := testCatalog(t)
			sels, err := p.Checklist(c)
			if err != nil {
				t.Fatalf("Checklist() error = %v", err)
			}
			if len(sels) != len(tt.want) {
				t.Fatalf("Checklist() = %+v, want %+v", sels, tt.want)
			}
			for i := range sels {
				if sels[i] != tt.want[i] {
					t.Errorf("selection %d = %+v, want %+v", i, sels[i], tt.want[i])
				}
			}

			e, err := c.Resolve(sels[len(sels)-1])
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if e.URL == "" {
				t.Errorf("resolved entry has no URL: %+v", e)
			}
		})
	}
}

func TestChecklist_UnknownOption(t *testing.T) {
	p, _ := newTestPrompter("")
	p.interactive = true
	p.runChecklist = func(_ *huh.Form, answer *checklistAnswer) error {
		answer.Picked = []int{7}
		answer.Confirmed = true
		return nil
	}

	if _, err := p.Checklist(testCatalog(t)); err == nil {
		t.Error("Checklist() expected error for an option outside the catalog")
	}
}
