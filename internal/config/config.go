// Package config reads the project-local configuration file that setup
// creates once under the state directory. The file belongs to the user;
// stencil only ever reads it back.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/stencilhq/stencil/internal/defs"
)

// maxConfigSize rejects pathological config files before parsing.
const maxConfigSize = 1 * 1024 * 1024 // 1MB

// Config is the project-local configuration.
type Config struct {
	Project ProjectConfig `yaml:"project"`
	Stencil StencilConfig `yaml:"stencil"`
}

// ProjectConfig identifies the project.
type ProjectConfig struct {
	Name          string `yaml:"name"`
	InitializedAt string `yaml:"initialized_at"`
}

// StencilConfig records the versions in effect when setup ran.
type StencilConfig struct {
	ToolVersion   string `yaml:"tool_version"`
	SchemaVersion string `yaml:"schema_version"`
}

// Load reads the config file under projectRoot. A missing file is not an
// error; it yields a zero Config and found=false (setup has not run, or
// the user removed it).
func Load(projectRoot string) (Config, bool, error) {
	path := filepath.Join(projectRoot, defs.StencilDir, defs.ConfigYAML)

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Config{}, false, nil
		}
		return Config{}, false, fmt.Errorf("stat project config: %w", err)
	}
	if info.Size() > maxConfigSize {
		return Config{}, false, fmt.Errorf("project config %q too large: %d bytes (max %d)", path, info.Size(), maxConfigSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, false, fmt.Errorf("read project config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, false, fmt.Errorf("parse project config %q: %w", path, err)
	}
	return cfg, true, nil
}
