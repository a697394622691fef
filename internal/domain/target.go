package domain

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// TargetKind discriminates what a BlockTarget points at.
type TargetKind string

const (
	TargetWebsite     TargetKind = "website"
	TargetApplication TargetKind = "application"
)

// BlockTarget is one website or application subject to blocking.
// Values are normalized on construction so the same logical target
// always compares equal, which apply/remove idempotence and tamper
// detection depend on.
type BlockTarget struct {
	Kind  TargetKind `yaml:"kind" json:"kind"`
	Value string     `yaml:"value" json:"value"`
}

// NewWebsiteTarget accepts a bare domain or a full URL and normalizes it
// to a lowercase host with scheme, path and leading "www." stripped.
func NewWebsiteTarget(raw string) (BlockTarget, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return BlockTarget{}, fmt.Errorf("empty website target")
	}
	if !strings.Contains(s, "://") {
		s = "http://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return BlockTarget{}, fmt.Errorf("parse website %q: %w", raw, err)
	}
	host := u.Hostname()
	host = strings.TrimPrefix(host, "www.")
	if host == "" || !strings.Contains(host, ".") {
		return BlockTarget{}, fmt.Errorf("website %q has no valid host", raw)
	}
	return BlockTarget{Kind: TargetWebsite, Value: host}, nil
}

// NewApplicationTarget accepts an executable name, bundle path or full
// path and normalizes it to a lowercase identifier without directory or
// extension ("/Applications/Steam.app" and "steam" are the same target).
func NewApplicationTarget(raw string) (BlockTarget, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return BlockTarget{}, fmt.Errorf("empty application target")
	}
	base := path.Base(strings.ReplaceAll(s, "\\", "/"))
	if ext := path.Ext(base); ext == ".app" || ext == ".exe" {
		base = strings.TrimSuffix(base, ext)
	}
	base = strings.ToLower(base)
	if base == "" || base == "." || base == "/" {
		return BlockTarget{}, fmt.Errorf("application %q has no valid name", raw)
	}
	return BlockTarget{Kind: TargetApplication, Value: base}, nil
}

// Key is a stable identity for map lookups and drift diffing.
func (t BlockTarget) Key() string {
	return string(t.Kind) + ":" + t.Value
}

func (t BlockTarget) String() string {
	return t.Key()
}
