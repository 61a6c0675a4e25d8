package prompt

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"

	"github.com/jbweber/kiln/internal/catalog"
)

// SelectSingle asks for a distribution and then one of its versions.
func (p *Prompter) SelectSingle(c *catalog.Catalog) (catalog.Selection, error) {
	di, err := p.Choose("Select OS", c.Names())
	if err != nil {
		return catalog.Selection{}, err
	}
	d := c.Distributions[di]

	labels := make([]string, len(d.Versions))
	for i, v := range d.Versions {
		labels[i] = v.Name
		if v.Deprecated {
			labels[i] += " (deprecated)"
		}
	}

	vi, err := p.Choose("Select Version", labels)
	if err != nil {
		return catalog.Selection{}, err
	}
	return catalog.Selection{Distribution: d.Name, VersionIndex: vi}, nil
}

// checklistAnswer holds the values bound to the checklist form. Picked
// indexes the catalog's Selections(true).
type checklistAnswer struct {
	Picked    []int
	Confirmed bool
}

// Checklist lets the operator toggle any number of images and confirm the
// batch at once. Without a terminal, or when the form cannot run, it falls
// back to SelectSingle.
func (p *Prompter) Checklist(c *catalog.Catalog) ([]catalog.Selection, error) {
	if !p.interactive {
		return p.single(c)
	}

	entries := c.Entries(true)
	choices := c.Selections(true)
	options := make([]huh.Option[int], len(entries))
	for i, e := range entries {
		options[i] = huh.NewOption(e.Label(), i)
	}

	var answer checklistAnswer
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewMultiSelect[int]().
				Title("Select images").
				Description("space toggles, enter continues").
				Options(options...).
				Value(&answer.Picked).
				Validate(func(v []int) error {
					if len(v) == 0 {
						return errors.New("select at least one image")
					}
					return nil
				}),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Build the selected templates?").
				Affirmative("Build").
				Negative("Cancel").
				Value(&answer.Confirmed),
		),
	)

	if err := p.runChecklist(form, &answer); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return nil, ErrCancelled
		}
		_, _ = fmt.Fprintf(p.Out, "Checklist unavailable (%v), using menus\n\n", err)
		return p.single(c)
	}
	if !answer.Confirmed || len(answer.Picked) == 0 {
		return nil, ErrCancelled
	}

	selections := make([]catalog.Selection, 0, len(answer.Picked))
	for _, i := range answer.Picked {
		if i < 0 || i >= len(choices) {
			return nil, fmt.Errorf("checklist returned unknown option %d", i)
		}
		selections = append(selections, choices[i])
	}
	return selections, nil
}

func (p *Prompter) single(c *catalog.Catalog) ([]catalog.Selection, error) {
	sel, err := p.SelectSingle(c)
	if err != nil {
		return nil, err
	}
	return []catalog.Selection{sel}, nil
}
