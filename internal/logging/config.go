package logging

// Config holds logging configuration.
type Config struct {
	Level    string         `yaml:"level"` // debug, info, warn, error
	Dir      string         `yaml:"dir"`   // log directory path
	Rotation RotationConfig `yaml:"rotation"`
	Console  OutputConfig   `yaml:"console"`
	File     OutputConfig   `yaml:"file"`
}

// RotationConfig holds log rotation settings.
type RotationConfig struct {
	MaxSize    int  `yaml:"max_size"`    // MB
	MaxBackups int  `yaml:"max_backups"` // number of files
	MaxAge     int  `yaml:"max_age"`     // days
	Compress   bool `yaml:"compress"`
}

// OutputConfig describes one log sink.
type OutputConfig struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"`  // optional override of the global level
	Format  string `yaml:"format"` // text or json
}

func DefaultConfig() Config {
	return Config{
		Level: "info",
		Dir:   "logs",
		Rotation: RotationConfig{
			MaxSize:    100,
			MaxBackups: 10,
			MaxAge:     30,
			Compress:   true,
		},
		Console: OutputConfig{Enabled: true, Format: "text"},
		File:    OutputConfig{Enabled: true, Format: "text"},
	}
}
