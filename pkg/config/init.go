package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const configHeader = `# dittosmb Configuration File
#
# Every key can be overridden from the environment with the DITTOSMB_
# prefix, e.g. DITTOSMB_SERVER_PORT=445 or DITTOSMB_LOGGING_LEVEL=debug.
# Sizes accept units ("8Mi", "1MB") and durations accept Go syntax ("30s").
#
# Share backends:
#   memory  scratch share kept in RAM, lost on restart
#   local   host directory at "path"; watch_external reports outside edits

`

// InitConfig writes the default configuration to the default location and
// returns its path. An existing file is only replaced when force is set.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	return path, InitConfigToPath(path, force)
}

// InitConfigToPath writes the default configuration to path.
func InitConfigToPath(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("configuration file already exists at %s (use --force to overwrite)", path)
	}

	data, err := defaultConfigYAML()
	if err != nil {
		return err
	}
	return writeConfigFile(path, data)
}

func defaultConfigYAML() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(configHeader)

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(GetDefaultConfig()); err != nil {
		return nil, fmt.Errorf("failed to marshal default config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
