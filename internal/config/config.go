package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/flitsinc/go-transcript/internal/truncate"
)

type Config struct {
	HTTPAddr string
	DataDir  string
	DBPath   string
	FilePath string

	MemoryEnabled       bool
	Truncation          truncate.Config
	ToolTruncation      map[string]truncate.Config
	NoFinalResponseText string
}

// fileConfig is the optional YAML overlay.
type fileConfig struct {
	MemoryEnabled *bool                      `yaml:"memory_enabled"`
	Truncation    *truncate.Config           `yaml:"truncation"`
	Tools         map[string]truncate.Config `yaml:"tools"`
	Placeholder   struct {
		NoFinalResponseText string `yaml:"no_final_response_text"`
	} `yaml:"placeholder"`
}

// Load reads env (plus a .env file, if present) for daemon settings, then
// overlays the YAML file named by GO_TRANSCRIPT_CONFIG when it exists.
func Load() (Config, error) {
	loadDotEnv(".env")
	dataDir := getEnv("GO_TRANSCRIPT_DATA_DIR", "data")
	cfg := Config{
		HTTPAddr: getEnv("GO_TRANSCRIPT_HTTP_ADDR", ":8080"),
		DataDir:  dataDir,
		DBPath:   getEnv("GO_TRANSCRIPT_DB_PATH", filepath.Join(dataDir, "go-transcript.db")),
		FilePath: getEnv("GO_TRANSCRIPT_CONFIG", ""),

		MemoryEnabled: getEnv("GO_TRANSCRIPT_MEMORY", "true") != "false",
		Truncation: truncate.Config{
			MaxCharacters:   20000,
			Method:          truncate.MethodEnd,
			IncludeSizeInfo: true,
		},
	}

	if cfg.FilePath != "" {
		if err := cfg.applyFile(cfg.FilePath); err != nil {
			return Config{}, err
		}
	}
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if fc.MemoryEnabled != nil {
		c.MemoryEnabled = *fc.MemoryEnabled
	}
	if fc.Truncation != nil {
		c.Truncation = *fc.Truncation
	}
	if len(fc.Tools) > 0 {
		c.ToolTruncation = fc.Tools
	}
	if fc.Placeholder.NoFinalResponseText != "" {
		c.NoFinalResponseText = fc.Placeholder.NoFinalResponseText
	}
	return nil
}

// TruncationFor returns the effective truncation config for a tool.
func (c Config) TruncationFor(tool string) truncate.Config {
	if override, ok := c.ToolTruncation[tool]; ok {
		return override
	}
	return c.Truncation
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func loadDotEnv(path string) {
	file, err := os.Open(path)
	if err != nil {
		return
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "export ") {
			line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		value = strings.TrimSpace(value)
		value = strings.Trim(value, `"'`)
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		_ = os.Setenv(key, value)
	}
}
