package cli

import (
	"context"
	"fmt"
	"strings"
)

// Execute implements the go-flags Commander interface for HideCommand.
func (c *HideCommand) Execute(args []string) error {
	e, err := openEnv(c.globals)
	if err != nil {
		return err
	}
	defer e.Close()

	return c.executeWithEnv(e)
}

func (c *HideCommand) executeWithEnv(e *env) error {
	ctx := context.Background()

	hidden, err := e.settings.HiddenSites(ctx)
	if err != nil {
		return err
	}

	if len(c.Add) > 0 || len(c.Remove) > 0 {
		remove := make(map[string]bool, len(c.Remove))
		for _, h := range c.Remove {
			remove[strings.ToLower(strings.TrimSpace(h))] = true
		}
		next := make([]string, 0, len(hidden)+len(c.Add))
		for _, h := range append(hidden, c.Add...) {
			if !remove[strings.ToLower(strings.TrimSpace(h))] {
				next = append(next, h)
			}
		}
		if err := e.settings.SetHiddenSites(ctx, next); err != nil {
			return fmt.Errorf("update hidden sites: %w", err)
		}
		if hidden, err = e.settings.HiddenSites(ctx); err != nil {
			return err
		}
	}

	switch c.ShowHidden {
	case "on", "off":
		if err := e.settings.SetShowHiddenSites(ctx, c.ShowHidden == "on"); err != nil {
			return fmt.Errorf("update show-hidden: %w", err)
		}
	case "":
	default:
		return fmt.Errorf("invalid --show-hidden %q (use on or off)", c.ShowHidden)
	}

	show, err := e.settings.ShowHiddenSites(ctx)
	if err != nil {
		return err
	}

	if jsonOutput(c.globals) {
		return printJSON(map[string]interface{}{
			"hidden_sites":      hidden,
			"show_hidden_sites": show,
		})
	}

	if len(hidden) == 0 {
		fmt.Println("No hidden sites.")
	} else {
		fmt.Println("Hidden sites:")
		for _, h := range hidden {
			fmt.Printf("  %s\n", h)
		}
	}
	if show {
		fmt.Println("Hidden sites are currently shown in stats.")
	}
	return nil
}
