package commands

import "github.com/marmos91/dittosmb/pkg/config"

// configSource names the file the configuration came from, for the startup
// log line.
func configSource(flagPath string) string {
	switch {
	case flagPath != "":
		return flagPath
	case config.DefaultConfigExists():
		return config.GetDefaultConfigPath()
	default:
		return "built-in defaults"
	}
}
