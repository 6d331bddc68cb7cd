package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	maxConfigSize = 1 << 20 // config files are small; 1MB is generous
	maxJSONDepth  = 32
	maxEnvVarLen  = 4096
	maxPathLen    = 4096
)

// format of a config file, derived from its extension.
type format int

const (
	formatJSON format = iota
	formatYAML
)

func formatOf(path string) (format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return formatJSON, nil
	case ".yaml", ".yml":
		return formatYAML, nil
	default:
		return 0, fmt.Errorf("unsupported config file type: %s", path)
	}
}

// validateConfigPath rejects empty, oversized and traversing paths.
func validateConfigPath(path string) error {
	if path == "" {
		return errors.New("empty config path")
	}
	if len(path) > maxPathLen {
		return fmt.Errorf("path too long: %d > %d", len(path), maxPathLen)
	}
	if strings.ContainsRune(path, 0) {
		return errors.New("null byte in config path")
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("cannot get working directory: %w", err)
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return fmt.Errorf("cannot resolve absolute path: %w", err)
		}
		rel, err := filepath.Rel(cwd, abs)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return fmt.Errorf("path traversal not allowed: %s resolves outside working directory", path)
		}
	}

	_, err := formatOf(path)
	return err
}

// safeReadFile reads a config file after checking its path, type and size.
func safeReadFile(path string) ([]byte, error) {
	if err := validateConfigPath(path); err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("cannot stat config file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", path)
	}
	if info.Size() > maxConfigSize {
		return nil, fmt.Errorf("config file too large: %d bytes > %d", info.Size(), maxConfigSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read config file: %w", err)
	}
	return data, nil
}

// safeWriteFile writes a config file readable only by its owner.
func safeWriteFile(path string, data []byte) error {
	if err := validateConfigPath(path); err != nil {
		return fmt.Errorf("invalid config path: %w", err)
	}
	if len(data) > maxConfigSize {
		return fmt.Errorf("config data too large: %d bytes > %d", len(data), maxConfigSize)
	}
	return os.WriteFile(path, data, 0o600)
}

func validateEnvVar(key, value string) error {
	if len(value) > maxEnvVarLen {
		return fmt.Errorf("environment variable %s too long: %d > %d", key, len(value), maxEnvVarLen)
	}
	if strings.ContainsRune(value, 0) {
		return fmt.Errorf("null byte in environment variable %s", key)
	}
	return nil
}

// validateJSONDepth bounds nesting before the document reaches the decoder.
func validateJSONDepth(data []byte) error {
	depth := 0
	inString, escaped := false, false

	for _, b := range data {
		if inString {
			switch {
			case escaped:
				escaped = false
			case b == '\\':
				escaped = true
			case b == '"':
				inString = false
			}
			continue
		}

		switch b {
		case '"':
			inString = true
		case '{', '[':
			depth++
			if depth > maxJSONDepth {
				return fmt.Errorf("JSON nesting too deep: %d > %d", depth, maxJSONDepth)
			}
		case '}', ']':
			depth--
			if depth < 0 {
				return errors.New("malformed JSON: unbalanced brackets")
			}
		}
	}

	if depth != 0 {
		return fmt.Errorf("malformed JSON: unclosed brackets (depth=%d)", depth)
	}
	return nil
}
