package cli

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"
)

// confirm asks a yes/no question interactively. Callers must check for
// headless mode first; huh needs a TTY.
func confirm(title, description string) (bool, error) {
	var yes bool
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(title).
			Description(description).
			Affirmative("Yes").
			Negative("No").
			Value(&yes),
	))
	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return false, fmt.Errorf("prompt failed: %w", err)
	}
	return yes, nil
}
