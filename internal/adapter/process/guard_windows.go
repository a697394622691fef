//go:build windows

package process

import (
	"context"
	"fmt"
	"strings"

	"github.com/enough/enough/internal/domain"
)

// taskkill exits 128 when no process matched the image name.
const taskkillNotFound = 128

func imageName(target domain.BlockTarget) string {
	return target.Value + ".exe"
}

func (g *Guard) Apply(ctx context.Context, target domain.BlockTarget) error {
	if target.Kind != domain.TargetApplication {
		return domain.ErrUnsupportedTarget
	}
	image := imageName(target)
	out, code, err := g.run(ctx, "taskkill", "/F", "/IM", image)
	if err != nil {
		return fmt.Errorf("taskkill %s: %w", image, err)
	}
	switch code {
	case 0:
		g.log.Debug("terminated application", "app", target.Value)
		return nil
	case taskkillNotFound:
		return nil
	default:
		return fmt.Errorf("taskkill %s exited %d: %s", image, code, strings.TrimSpace(string(out)))
	}
}

func (g *Guard) Remove(_ context.Context, target domain.BlockTarget) error {
	if target.Kind != domain.TargetApplication {
		return domain.ErrUnsupportedTarget
	}
	return nil
}

func (g *Guard) IsApplied(ctx context.Context, target domain.BlockTarget) (bool, error) {
	if target.Kind != domain.TargetApplication {
		return false, domain.ErrUnsupportedTarget
	}
	image := imageName(target)
	out, code, err := g.run(ctx, "tasklist", "/NH", "/FI", "IMAGENAME eq "+image)
	if err != nil {
		return false, fmt.Errorf("tasklist %s: %w", image, err)
	}
	if code != 0 {
		return false, fmt.Errorf("tasklist %s exited %d: %s", image, code, strings.TrimSpace(string(out)))
	}
	running := strings.Contains(strings.ToLower(string(out)), strings.ToLower(image))
	return !running, nil
}
