// Package hostsfile blocks websites by pointing their domains at
// non-routable addresses inside a marker-delimited section of the
// system hosts file.
package hostsfile

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/enough/enough/internal/domain"
)

const (
	markerStart = "# ENOUGH BLOCK START"
	markerEnd   = "# ENOUGH BLOCK END"
)

// Blocker implements port.TargetApplier for website targets.
type Blocker struct {
	path  string
	log   hclog.Logger
	flush func(ctx context.Context) error
}

func New(path string, log hclog.Logger) *Blocker {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	b := &Blocker{path: path, log: log}
	b.flush = b.flushDNSCache
	return b
}

func (b *Blocker) Apply(ctx context.Context, target domain.BlockTarget) error {
	if target.Kind != domain.TargetWebsite {
		return domain.ErrUnsupportedTarget
	}
	outside, entries, err := b.read()
	if err != nil {
		return err
	}
	if hasAllEntries(entries, target.Value) {
		return nil
	}
	blocked := blockedDomains(entries)
	blocked[target.Value] = true
	if err := b.write(ctx, outside, blocked); err != nil {
		return err
	}
	b.log.Debug("blocked website", "domain", target.Value)
	return nil
}

func (b *Blocker) Remove(ctx context.Context, target domain.BlockTarget) error {
	if target.Kind != domain.TargetWebsite {
		return domain.ErrUnsupportedTarget
	}
	outside, entries, err := b.read()
	if err != nil {
		return err
	}
	if !hasAnyEntry(entries, target.Value) {
		return nil
	}
	blocked := blockedDomains(entries)
	delete(blocked, target.Value)
	if err := b.write(ctx, outside, blocked); err != nil {
		return err
	}
	b.log.Debug("unblocked website", "domain", target.Value)
	return nil
}

func (b *Blocker) IsApplied(_ context.Context, target domain.BlockTarget) (bool, error) {
	if target.Kind != domain.TargetWebsite {
		return false, domain.ErrUnsupportedTarget
	}
	_, entries, err := b.read()
	if err != nil {
		return false, err
	}
	return hasAllEntries(entries, target.Value), nil
}

func hostVariants(d string) []string {
	return []string{d, "www." + d}
}

// hasAllEntries reports whether every intended line for the domain is
// present. A partial hand edit (say, only the www lines deleted) must
// read as not applied so the next tick rewrites the section.
func hasAllEntries(entries map[string]bool, d string) bool {
	for _, host := range hostVariants(d) {
		if !entries["0.0.0.0 "+host] || !entries["::1 "+host] {
			return false
		}
	}
	return true
}

func hasAnyEntry(entries map[string]bool, d string) bool {
	for _, host := range hostVariants(d) {
		if entries["0.0.0.0 "+host] || entries["::1 "+host] {
			return true
		}
	}
	return false
}

// blockedDomains collapses surviving entries back to the domain set the
// managed section should be rendered from.
func blockedDomains(entries map[string]bool) map[string]bool {
	out := make(map[string]bool)
	for key := range entries {
		if _, host, ok := strings.Cut(key, " "); ok {
			out[strings.TrimPrefix(host, "www.")] = true
		}
	}
	return out
}

// read splits the hosts file into the lines outside the managed section
// and the exact entries inside it, keyed "addr host".
func (b *Blocker) read() (outside []string, entries map[string]bool, err error) {
	entries = make(map[string]bool)
	data, err := os.ReadFile(b.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, entries, nil
		}
		return nil, nil, fmt.Errorf("read hosts file %s: %w", b.path, err)
	}
	inBlock := false
	for _, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
		switch {
		case strings.Contains(line, markerStart):
			inBlock = true
		case strings.Contains(line, markerEnd):
			inBlock = false
		case inBlock:
			fields := strings.Fields(line)
			if len(fields) == 2 && (fields[0] == "0.0.0.0" || fields[0] == "::1") {
				entries[fields[0]+" "+fields[1]] = true
			}
		default:
			outside = append(outside, line)
		}
	}
	return outside, entries, nil
}

// write rewrites the hosts file atomically: untouched lines first, then
// one managed section with the www and non-www variant of every blocked
// domain on both IPv4 and IPv6 blackhole addresses.
func (b *Blocker) write(ctx context.Context, outside []string, blocked map[string]bool) error {
	var sb strings.Builder
	sb.WriteString(strings.Join(outside, "\n"))
	if len(blocked) > 0 {
		domains := make([]string, 0, len(blocked))
		for d := range blocked {
			domains = append(domains, d)
		}
		sort.Strings(domains)
		sb.WriteString("\n\n" + markerStart + "\n")
		for _, d := range domains {
			for _, host := range []string{d, "www." + d} {
				sb.WriteString("0.0.0.0 " + host + "\n")
				sb.WriteString("::1 " + host + "\n")
			}
		}
		sb.WriteString(markerEnd + "\n")
	} else {
		sb.WriteString("\n")
	}

	tmp, err := os.CreateTemp(filepath.Dir(b.path), ".hosts-*")
	if err != nil {
		return fmt.Errorf("create temp hosts file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(sb.String()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp hosts file: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("chmod temp hosts file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp hosts file: %w", err)
	}
	if err := os.Rename(tmpName, b.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace hosts file: %w", err)
	}

	if err := b.flush(ctx); err != nil {
		// Stale resolver caches clear on their own, not worth failing the apply.
		b.log.Warn("dns cache flush failed", "error", err)
	}
	return nil
}

func (b *Blocker) flushDNSCache(ctx context.Context) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.CommandContext(ctx, "dscacheutil", "-flushcache")
	case "linux":
		cmd = exec.CommandContext(ctx, "resolvectl", "flush-caches")
	case "windows":
		cmd = exec.CommandContext(ctx, "ipconfig", "/flushdns")
	default:
		return nil
	}
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %v: %s", cmd.Path, err, strings.TrimSpace(string(out)))
	}
	return nil
}
