package adapters

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds backend connection settings. Each adapter reads only the
// fields that apply to its engine.
type Config struct {
	// Backend optionally names the adapter (mysql, sqlite, sqlite3, postgres).
	Backend    string            `yaml:"backend"`
	Host       string            `yaml:"host"`
	Port       int               `yaml:"port"`
	User       string            `yaml:"user"`
	Password   string            `yaml:"password"`
	DBName     string            `yaml:"dbname"`
	Charset    string            `yaml:"charset"`
	UnixSocket string            `yaml:"unix_socket"`
	File       string            `yaml:"file"`
	SSLMode    string            `yaml:"sslmode"`
	Options    map[string]string `yaml:"options"`
}

// ParseConfig decodes a YAML document into a Config.
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// LoadConfig reads and decodes a YAML configuration file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(data)
}
