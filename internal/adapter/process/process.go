// Package process blocks applications by terminating matching processes.
// Blocking is best-effort: a relaunched process survives until the next
// watchdog tick re-applies the block.
package process

import (
	"context"
	"os/exec"

	"github.com/hashicorp/go-hclog"
)

// runner executes a command and reports its combined output and exit
// code. Split out so tests can stub process inspection.
type runner func(ctx context.Context, name string, args ...string) (out []byte, exitCode int, err error)

func defaultRun(ctx context.Context, name string, args ...string) ([]byte, int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	if err == nil {
		return out, 0, nil
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return out, exitErr.ExitCode(), nil
	}
	return out, -1, err
}

// Guard implements port.TargetApplier for application targets.
type Guard struct {
	log hclog.Logger
	run runner
}

func New(log hclog.Logger) *Guard {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	return &Guard{log: log, run: defaultRun}
}
