package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Gather contains the options that drive a log-gathering run. Flags override
// anything loaded from the config file; the struct is treated as read-only
// once the run starts.
type Gather struct {
	// Contexts selects the kubectl contexts to stream from. The single
	// entry "all" expands through context discovery.
	Contexts []string `toml:"contexts"`

	// AllAtOnce streams every context concurrently instead of one context
	// at a time.
	AllAtOnce bool `toml:"all_at_once"`

	// SternDefaults passes the standard stern argument set (all
	// namespaces, JSON output, short UTC timestamps, since window).
	SternDefaults bool `toml:"stern_defaults"`

	// SkipInvalid drops lines that are not valid stern JSON envelopes
	// instead of printing them verbatim.
	SkipInvalid bool `toml:"skip_invalid_messages"`

	// IncludeContainers restricts output to the named containers. Empty or
	// containing "all" means no filtering.
	IncludeContainers []string `toml:"include_containers"`

	// FixUpMessages strips redundant leading timestamps from message
	// bodies.
	FixUpMessages bool `toml:"fix_up_messages"`

	// PrettyPrint renders JSON objects embedded in messages across
	// multiple indented lines.
	PrettyPrint bool `toml:"pretty_print_objects"`

	// Since bounds each stern process's time window ("5s", "2m", "3h").
	Since string `toml:"since"`

	// Follow keeps streaming until interrupted.
	Follow bool `toml:"follow"`

	// Quiet suppresses log output on stdout; the save file still receives
	// everything.
	Quiet bool `toml:"quiet"`

	// BlankLineAfterEntry and SpaceAfterMessage are cosmetic suffixes.
	BlankLineAfterEntry bool `toml:"blank_line_after_entry"`
	SpaceAfterMessage   bool `toml:"space_after_message"`

	// Save enables the file destination; SavePath empty means an
	// auto-generated name.
	Save     bool   `toml:"-"`
	SavePath string `toml:"save_path"`

	// WorkDir is changed into before the save file is opened.
	WorkDir string `toml:"work_dir"`

	// TerminateGraceSeconds bounds how long still-running stern processes
	// get between SIGTERM and SIGKILL during shutdown.
	TerminateGraceSeconds int `toml:"terminate_grace_seconds"`

	// PodQuery is the passthrough argument list handed to every stern
	// invocation (everything after "--").
	PodQuery []string `toml:"-"`
}

// Logging contains diagnostic log output settings. Diagnostics go to stderr
// and never mix with the formatted log stream.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// History contains run-history persistence settings.
type History struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Config encapsulates all sternmux settings.
type Config struct {
	Gather  Gather  `toml:"gather"`
	Logging Logging `toml:"logging"`
	History History `toml:"history"`
}

// DefaultConfigPath returns the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/sternmux/config.toml")
}

// Load locates and parses a configuration file, falling back to defaults
// when none exists. The returned config is normalized but not yet validated;
// callers apply flag overrides first and then call Validate.
func Load(path string) (*Config, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", resolvedPath, err)
		}
	} else if strings.TrimSpace(path) != "" {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SampleConfig returns the embedded sample configuration file contents.
func SampleConfig() string {
	return sampleConfig
}

// WriteSample writes the sample configuration to path, refusing to clobber
// an existing file.
func WriteSample(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat config path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// ExpandPath resolves a leading "~" against the user's home directory.
// Used for the paths configured outside the config file itself (history
// database, work directory).
func ExpandPath(path string) (string, error) {
	return expandPath(path)
}

func resolveConfigPath(path string) (string, bool, error) {
	if strings.TrimSpace(path) != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	if _, err := os.Stat(defaultPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return defaultPath, false, nil
		}
		return "", false, fmt.Errorf("stat config: %w", err)
	}
	return defaultPath, true, nil
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if trimmed == "~" {
			return home, nil
		}
		return filepath.Join(home, trimmed[2:]), nil
	}
	return trimmed, nil
}
