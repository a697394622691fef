//go:build !windows

package process

import (
	"context"
	"fmt"
	"strings"

	"github.com/enough/enough/internal/domain"
)

// pgrep/pkill exit 0 on a match, 1 on no match, anything else is a failure.

func (g *Guard) Apply(ctx context.Context, target domain.BlockTarget) error {
	if target.Kind != domain.TargetApplication {
		return domain.ErrUnsupportedTarget
	}
	out, code, err := g.run(ctx, "pkill", "-f", target.Value)
	if err != nil {
		return fmt.Errorf("pkill %s: %w", target.Value, err)
	}
	switch code {
	case 0:
		g.log.Debug("terminated application", "app", target.Value)
		return nil
	case 1:
		return nil // nothing running, already in the blocked state
	default:
		return fmt.Errorf("pkill %s exited %d: %s", target.Value, code, strings.TrimSpace(string(out)))
	}
}

func (g *Guard) Remove(_ context.Context, target domain.BlockTarget) error {
	if target.Kind != domain.TargetApplication {
		return domain.ErrUnsupportedTarget
	}
	// Nothing persistent to undo, the user may simply relaunch the app.
	return nil
}

func (g *Guard) IsApplied(ctx context.Context, target domain.BlockTarget) (bool, error) {
	if target.Kind != domain.TargetApplication {
		return false, domain.ErrUnsupportedTarget
	}
	out, code, err := g.run(ctx, "pgrep", "-f", target.Value)
	if err != nil {
		return false, fmt.Errorf("pgrep %s: %w", target.Value, err)
	}
	switch code {
	case 0:
		return false, nil // a matching process is alive, block not in effect
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("pgrep %s exited %d: %s", target.Value, code, strings.TrimSpace(string(out)))
	}
}
