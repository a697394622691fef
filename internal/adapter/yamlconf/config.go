// Package yamlconf loads and validates the human-authored profiles file
// and resolves profiles into the engine's already-normalized form.
package yamlconf

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/enough/enough/internal/domain"
)

// Duration wraps time.Duration with the human form ("90m", "1h30m") in YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

type ProfileSpec struct {
	Duration Duration `yaml:"duration"`
	Websites []string `yaml:"websites,omitempty"`
	Apps     []string `yaml:"apps,omitempty"`
}

type Config struct {
	DefaultProfile string                 `yaml:"default-profile,omitempty"`
	Profiles       map[string]ProfileSpec `yaml:"profiles"`
}

// Load reads the config at path, or searches the usual locations when
// path is empty, and validates it.
func Load(path string) (*Config, error) {
	if path == "" {
		found, err := findConfigFile()
		if err != nil {
			return nil, err
		}
		path = found
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if len(c.Profiles) == 0 {
		return fmt.Errorf("no profiles defined")
	}
	if c.DefaultProfile != "" {
		if _, ok := c.Profiles[c.DefaultProfile]; !ok {
			return fmt.Errorf("default profile %q not found in profiles", c.DefaultProfile)
		}
	}
	for name, p := range c.Profiles {
		if time.Duration(p.Duration) <= 0 {
			return fmt.Errorf("profile %q: %w", name, domain.ErrInvalidDuration)
		}
		if len(p.Websites) == 0 && len(p.Apps) == 0 {
			return fmt.Errorf("profile %q: %w", name, domain.ErrEmptyTargetSet)
		}
		for _, site := range p.Websites {
			if err := validateWebsite(site); err != nil {
				return fmt.Errorf("profile %q: %w", name, err)
			}
		}
		for _, app := range p.Apps {
			if strings.TrimSpace(app) == "" {
				return fmt.Errorf("profile %q: empty app entry", name)
			}
		}
	}
	return nil
}

func validateWebsite(raw string) error {
	s := raw
	if strings.Contains(s, "://") {
		u, err := url.Parse(s)
		if err != nil {
			return fmt.Errorf("invalid website %q: %v", raw, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("website %q: scheme must be http or https", raw)
		}
	}
	if _, err := domain.NewWebsiteTarget(s); err != nil {
		return err
	}
	return nil
}

// Resolve builds the immutable profile snapshot the engine consumes.
// An empty name falls back to the configured default profile.
func (c *Config) Resolve(name string) (domain.Profile, error) {
	if name == "" {
		name = c.DefaultProfile
	}
	if name == "" {
		return domain.Profile{}, domain.ErrNoProfile
	}
	spec, ok := c.Profiles[name]
	if !ok {
		return domain.Profile{}, fmt.Errorf("profile %q not found: %w", name, domain.ErrNoProfile)
	}
	targets := make([]domain.BlockTarget, 0, len(spec.Websites)+len(spec.Apps))
	for _, site := range spec.Websites {
		t, err := domain.NewWebsiteTarget(site)
		if err != nil {
			return domain.Profile{}, err
		}
		targets = append(targets, t)
	}
	for _, app := range spec.Apps {
		t, err := domain.NewApplicationTarget(app)
		if err != nil {
			return domain.Profile{}, err
		}
		targets = append(targets, t)
	}
	return domain.Profile{
		Name:     name,
		Duration: time.Duration(spec.Duration),
		Targets:  targets,
	}, nil
}

// Names returns profile names sorted for stable listings.
func (c *Config) Names() []string {
	names := make([]string, 0, len(c.Profiles))
	for name := range c.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func findConfigFile() (string, error) {
	home, _ := os.UserHomeDir()
	candidates := []string{
		"enough.yaml",
		filepath.Join(home, ".config", "enough", "enough.yaml"),
		filepath.Join(home, ".config", "enough.yaml"),
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("no config file found (looked for %s)", strings.Join(candidates, ", "))
}

// DefaultConfigPath is where `init` writes its sample.
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "enough", "enough.yaml")
}

// GenerateSample writes a starter config and returns its path.
func GenerateSample(path string) (string, error) {
	if path == "" {
		path = DefaultConfigPath()
	}
	sample := Config{
		DefaultProfile: "lock-in",
		Profiles: map[string]ProfileSpec{
			"lock-in": {
				Duration: Duration(90 * time.Minute),
				Websites: []string{"https://www.youtube.com", "https://reddit.com"},
				Apps:     []string{"/Applications/Steam.app"},
			},
			"wind-down": {
				Duration: Duration(30 * time.Minute),
				Websites: []string{"https://www.youtube.com", "https://www.reddit.com", "https://github.com"},
			},
		},
	}
	data, err := yaml.Marshal(sample)
	if err != nil {
		return "", fmt.Errorf("encode sample config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write sample config: %w", err)
	}
	return path, nil
}
