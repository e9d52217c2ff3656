package logger

// Config configures New.
type Config struct {
	// Level is one of debug, info, warn, error, fatal.
	Level string `env:"LOG_LEVEL" yaml:"level"`
	// Format is kept for config compatibility. Output is always JSON.
	Format string `env:"LOG_FORMAT" yaml:"format"`
	// Development disables sampling and enables zap's development checks.
	Development bool `yaml:"development"`
	// OutputPaths are zap sink URLs or file paths. The CLI routes logs to stderr
	// so that table output on stdout stays clean.
	OutputPaths []string `yaml:"output_paths"`
}

const (
	DefaultLevel  = "info"
	DefaultFormat = "json"
)

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.Level == "" {
		c.Level = DefaultLevel
	}
	if c.Format == "" {
		c.Format = DefaultFormat
	}
	if len(c.OutputPaths) == 0 {
		c.OutputPaths = []string{"stdout"}
	}
}
