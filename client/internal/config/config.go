package config

import (
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
	"io"
	"os"
	"path/filepath"
)

const (
	FileName = ".opentracker.yml"

	accessKeyEnv = "OPENTRACKER_ACCESS_KEY"
)

type (
	Config struct {
		Host      string `yaml:"host"`
		AccessKey string `yaml:"accessKey"`
	}
)

// Path returns the config file location, the working directory copy wins over the home one
func Path() string {
	if _, err := os.Stat(FileName); err == nil {
		return FileName
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return FileName
	}
	return filepath.Join(home, FileName)
}

func Parse() (Config, error) {
	return ParseFile(Path())
}

func ParseFile(path string) (Config, error) {
	c := Config{}
	fi, err := os.Open(path)
	if err != nil {
		return c, errors.Wrap(err, "no client configuration found, run 'opentracker config init'")
	}
	defer fi.Close()

	value, err := io.ReadAll(fi)
	if err != nil {
		return c, err
	}

	if err = yaml.Unmarshal(value, &c); err != nil {
		return c, err
	}

	if key := os.Getenv(accessKeyEnv); key != "" {
		c.AccessKey = key
	}
	return c, nil
}

func SaveConfig(c Config) error {
	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}
	return SaveFile(filepath.Join(home, FileName), c)
}

func SaveFile(path string, c Config) error {
	value, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, value, 0o600)
}
