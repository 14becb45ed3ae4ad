package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "LEGISRAG_"

	maxConfigFileSize = 1 << 20
	systemConfigDir   = "/etc/legisrag"
)

// LoadWithFile builds the configuration from Defaults, the YAML file at
// configPath and LEGISRAG_* environment variables, later sources winning.
//
// An empty configPath means ~/.config/legisrag/config.yaml; a missing file
// is skipped. GEMINI_API_KEY, then GOOGLE_API_KEY, fill an unset generation
// key, which in turn fills an unset gemini embeddings key.
//
// The file must live under ~/.config/legisrag, /etc/legisrag or the working
// directory after symlinks are resolved. It must be a regular file of at
// most 1 MiB that neither group nor others can write.
//
// Environment names map to keys by splitting section from field at the
// first underscore:
//
//	LEGISRAG_SERVER_HTTP_PORT      server.http_port
//	LEGISRAG_INDEX_BACKEND         index.backend
//	LEGISRAG_CORPUS_FETCH_ENDPOINT corpus.fetch.endpoint
func LoadWithFile(configPath string) (*Config, error) {
	if configPath == "" {
		dir, err := DefaultConfigDir()
		if err != nil {
			return nil, err
		}
		configPath = filepath.Join(dir, "config.yaml")
	}

	k := koanf.New(".")
	content, err := readConfigFile(configPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("read %s environment: %w", EnvPrefix, err)
	}

	cfg := Defaults()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	applyAPIKeyFallbacks(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// readConfigFile returns the file's content, or an error wrapping
// fs.ErrNotExist when there is none. Checks run on the open descriptor so
// the file cannot be swapped between check and read.
func readConfigFile(path string) ([]byte, error) {
	if err := checkConfigLocation(path); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		return nil, fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat config file: %w", err)
	}
	if err := checkConfigMode(path, info); err != nil {
		return nil, err
	}

	content, err := io.ReadAll(io.LimitReader(f, maxConfigFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if len(content) > maxConfigFileSize {
		return nil, fmt.Errorf("config file %s exceeds %d bytes", path, maxConfigFileSize)
	}
	return content, nil
}

// checkConfigLocation applies to files that do not exist yet as well.
func checkConfigLocation(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("config location: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		resolved = abs
	}

	roots := []string{systemConfigDir}
	if dir, err := DefaultConfigDir(); err == nil {
		roots = append(roots, dir)
	}
	if wd, err := os.Getwd(); err == nil {
		roots = append(roots, wd)
	}
	for _, root := range roots {
		if within(root, resolved) || resolved == abs && within(root, abs) {
			return nil
		}
	}
	return fmt.Errorf("config location: %s is outside ~/.config/legisrag, %s and the working directory", path, systemConfigDir)
}

func checkConfigMode(path string, info fs.FileInfo) error {
	if !info.Mode().IsRegular() {
		return fmt.Errorf("config file %s is not a regular file", path)
	}
	if runtime.GOOS != "windows" && info.Mode().Perm()&0o022 != 0 {
		return fmt.Errorf("config file %s is writable by group or others (mode %v)", path, info.Mode().Perm())
	}
	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file %s exceeds %d bytes", path, maxConfigFileSize)
	}
	return nil
}

// within reports whether path lies inside dir. dir is resolved too, so a
// symlinked home such as macOS /var still matches.
func within(dir, path string) bool {
	if resolved, err := filepath.EvalSymlinks(dir); err == nil {
		dir = resolved
	}
	rel, err := filepath.Rel(dir, path)
	if err != nil || filepath.IsAbs(rel) {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// envKey maps LEGISRAG_SECTION_FIELD_NAME to section.field_name. The
// corpus chunk and fetch groups nest one level deeper:
// LEGISRAG_CORPUS_CHUNK_SIZE -> corpus.chunk.size.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	section, field, found := strings.Cut(lower, "_")
	if !found {
		return lower
	}
	if section == "corpus" {
		for _, group := range []string{"chunk", "fetch"} {
			if rest, ok := strings.CutPrefix(field, group+"_"); ok {
				return section + "." + group + "." + rest
			}
		}
	}
	return section + "." + field
}

func applyAPIKeyFallbacks(cfg *Config) {
	if !cfg.Generation.APIKey.IsSet() {
		for _, name := range []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"} {
			if v := strings.TrimSpace(os.Getenv(name)); v != "" {
				cfg.Generation.APIKey = Secret(v)
				break
			}
		}
	}
	if cfg.Embeddings.Provider == "gemini" && !cfg.Embeddings.APIKey.IsSet() {
		cfg.Embeddings.APIKey = cfg.Generation.APIKey
	}
}

// DefaultConfigDir returns ~/.config/legisrag.
func DefaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locate home directory: %w", err)
	}
	return filepath.Join(home, ".config", "legisrag"), nil
}
