// Package confirm gates destructive operations behind user approval.
// Interactive runs present a multi-select of candidate paths; batch runs use
// the Auto confirmer, which approves or rejects everything according to
// flags.
package confirm

import (
	"fmt"

	"github.com/charmbracelet/huh"
)

// Confirmer selects which of the candidate paths an operation may proceed
// with. An empty result means nothing was approved.
type Confirmer interface {
	Confirm(title string, candidates []string) ([]string, error)
}

// Auto is the non-interactive confirmer for batch runs.
type Auto struct {
	// Approve controls whether every candidate is approved or none.
	Approve bool
}

// Confirm approves all candidates or none, without prompting.
func (a Auto) Confirm(title string, candidates []string) ([]string, error) {
	if !a.Approve {
		return nil, nil
	}
	return candidates, nil
}

// Interactive prompts on the terminal with every candidate preselected.
type Interactive struct{}

// Confirm presents a multi-select of candidates and returns the approved
// subset. A user abort is an error so callers do not mistake it for an empty
// approval.
func (Interactive) Confirm(title string, candidates []string) ([]string, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	options := huh.NewOptions(candidates...)
	for i := range options {
		options[i] = options[i].Selected(true)
	}

	var selected []string
	form := huh.NewForm(huh.NewGroup(
		huh.NewMultiSelect[string]().
			Title(title).
			Options(options...).
			Value(&selected),
	))
	if err := form.Run(); err != nil {
		return nil, fmt.Errorf("confirmation prompt: %w", err)
	}
	return selected, nil
}
