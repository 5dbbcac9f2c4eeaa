package config

import "fmt"

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

func (l *LoggingConfig) validate() error {
	switch l.Level {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown logging.level %q", l.Level)
	}
	switch l.Format {
	case "", "json", "console", "text":
	default:
		return fmt.Errorf("unknown logging.format %q", l.Format)
	}
	return nil
}
