// Package config provides XML-based configuration with .env and environment overrides.
package config

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// FileName is the default config file name, looked up next to the executable.
const FileName = "promptcad.config.xml"

// AppConfig represents the root XML configuration structure
type AppConfig struct {
	XMLName xml.Name `xml:"PromptCAD"`

	Server   ServerConfig   `xml:"Server"`
	Storage  StorageConfig  `xml:"Storage"`
	Kernel   KernelConfig   `xml:"Kernel"`
	Preview  PreviewConfig  `xml:"Preview"`
	Advanced AdvancedConfig `xml:"Advanced"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port              int     `xml:"Port"`
	BindAddress       string  `xml:"BindAddress"`
	AllowOrigin       string  `xml:"AllowOrigin"`
	ReadTimeout       int     `xml:"ReadTimeoutSeconds"`
	WriteTimeout      int     `xml:"WriteTimeoutSeconds"`
	IdleTimeout       int     `xml:"IdleTimeoutSeconds"`
	BodyLimit         string  `xml:"BodyLimit"`
	EnableCompression bool    `xml:"EnableCompression"`
	CompressionLevel  int     `xml:"CompressionLevel"`
	RateLimit         float64 `xml:"GenerateRateLimitPerSecond"` // 0 disables the limiter
	RateBurst         int     `xml:"GenerateRateBurst"`
}

// StorageConfig contains filesystem locations
type StorageConfig struct {
	DataDirectory     string `xml:"DataDirectory"`
	ProjectsDirectory string `xml:"ProjectsDirectory"`
	LibraryDirectory  string `xml:"LibraryDirectory"`
	OutputDirectory   string `xml:"OutputDirectory"`
}

// KernelConfig selects the geometry kernel
type KernelConfig struct {
	Name           string `xml:"Name"`
	Command        string `xml:"Command"`
	Args           string `xml:"Args"`
	TimeoutSeconds int    `xml:"TimeoutSeconds"`
}

// PreviewConfig controls retention of generated preview meshes
type PreviewConfig struct {
	RetentionMinutes       int `xml:"RetentionMinutes"`
	CleanupIntervalMinutes int `xml:"CleanupIntervalMinutes"`
}

// AdvancedConfig contains logging and tuning options
type AdvancedConfig struct {
	LogLevel             string `xml:"LogLevel"`
	LogFormat            string `xml:"LogFormat"`
	EnableRequestLogging bool   `xml:"EnableRequestLogging"`
	MetricsNamespace     string `xml:"MetricsNamespace"`
	VocabularyFile       string `xml:"VocabularyFile"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:              8000,
			BindAddress:       "0.0.0.0",
			AllowOrigin:       "http://localhost:5173",
			ReadTimeout:       30,
			WriteTimeout:      30,
			IdleTimeout:       120,
			BodyLimit:         "2M",
			EnableCompression: true,
			CompressionLevel:  5,
			RateLimit:         10,
			RateBurst:         20,
		},
		Storage: StorageConfig{
			DataDirectory:     "./data",
			ProjectsDirectory: "./data/projects",
			LibraryDirectory:  "./library",
			OutputDirectory:   "./output",
		},
		Kernel: KernelConfig{
			Name:           "native",
			TimeoutSeconds: 60,
		},
		Preview: PreviewConfig{
			RetentionMinutes:       60,
			CleanupIntervalMinutes: 5,
		},
		Advanced: AdvancedConfig{
			LogLevel:             "info",
			LogFormat:            "json",
			EnableRequestLogging: true,
			MetricsNamespace:     "promptcad",
		},
	}
}

// LoadConfig loads configuration from an XML file, creating it with defaults
// when missing. A .env file next to it is loaded first; variables already set
// in the environment win over it.
func LoadConfig(configPath string) (*AppConfig, error) {
	configDir := filepath.Dir(configPath)
	if err := loadDotEnv(filepath.Join(configDir, ".env")); err != nil {
		return nil, err
	}

	config := DefaultConfig()
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := config.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	} else {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := xml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	config.applyEnvironmentOverrides()
	config.resolvePaths(configDir)

	return config, nil
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Save saves the configuration to XML file
func (c *AppConfig) Save(configPath string) error {
	output, err := xml.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(xml.Header + "\n<!-- PromptCAD Configuration -->\n<!-- This file is auto-generated on first run -->\n\n")
	content := append(header, output...)

	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// applyEnvironmentOverrides allows environment variables to override config values
func (c *AppConfig) applyEnvironmentOverrides() {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Server.Port = p
		}
	}

	// DATA_DIR moves the projects directory along with it.
	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		c.Storage.DataDirectory = dataDir
		c.Storage.ProjectsDirectory = filepath.Join(dataDir, "projects")
	}
	if dir := os.Getenv("LIBRARY_DIR"); dir != "" {
		c.Storage.LibraryDirectory = dir
	}
	if dir := os.Getenv("OUTPUT_DIR"); dir != "" {
		c.Storage.OutputDirectory = dir
	}
	if origin := os.Getenv("CORS_ORIGIN"); origin != "" {
		c.Server.AllowOrigin = origin
	}
	if name := os.Getenv("KERNEL"); name != "" {
		c.Kernel.Name = name
	}
	if cmd := os.Getenv("KERNEL_COMMAND"); cmd != "" {
		c.Kernel.Command = cmd
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Advanced.LogLevel = level
	}
	if format := os.Getenv("LOG_FORMAT"); format != "" {
		c.Advanced.LogFormat = format
	}
}

// resolvePaths converts relative paths to absolute based on config file location
func (c *AppConfig) resolvePaths(configDir string) {
	for _, p := range []*string{
		&c.Storage.DataDirectory,
		&c.Storage.ProjectsDirectory,
		&c.Storage.LibraryDirectory,
		&c.Storage.OutputDirectory,
	} {
		if !filepath.IsAbs(*p) {
			*p = filepath.Join(configDir, *p)
		}
	}
	if c.Advanced.VocabularyFile != "" && !filepath.IsAbs(c.Advanced.VocabularyFile) {
		c.Advanced.VocabularyFile = filepath.Join(configDir, c.Advanced.VocabularyFile)
	}
}

// GetProjectsDir returns the absolute projects directory path
func (c *AppConfig) GetProjectsDir() string {
	return c.Storage.ProjectsDirectory
}

// GetLibraryDir returns the absolute library directory path
func (c *AppConfig) GetLibraryDir() string {
	return c.Storage.LibraryDirectory
}

// GetOutputDir returns the absolute scratch output directory path
func (c *AppConfig) GetOutputDir() string {
	return c.Storage.OutputDirectory
}

// GetServerAddr returns the server bind address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}

// KernelArgs splits the configured argument string on whitespace.
func (c *AppConfig) KernelArgs() []string {
	return strings.Fields(c.Kernel.Args)
}

// KernelTimeout returns the per-call timeout of the command kernel.
func (c *AppConfig) KernelTimeout() time.Duration {
	return time.Duration(c.Kernel.TimeoutSeconds) * time.Second
}

// EnsureDirectories creates all necessary directories
func (c *AppConfig) EnsureDirectories() error {
	dirs := []string{
		c.Storage.DataDirectory,
		c.Storage.ProjectsDirectory,
		c.Storage.LibraryDirectory,
		c.Storage.OutputDirectory,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
