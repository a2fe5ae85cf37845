package logger

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Timezone      string                  `yaml:"timezone" json:"timezone" mapstructure:"timezone"`                // "Local", "UTC", or IANA timezone name
	DefaultLevel  string                  `yaml:"default_level" json:"default_level" mapstructure:"default_level"` // default log level for all modules
	Console       *ConsoleOutput          `yaml:"console" json:"console" mapstructure:"console"`
	FileOutput    *FileOutput             `yaml:"file_output" json:"file_output" mapstructure:"file_output"`
	ModuleOutputs map[string]ModuleOutput `yaml:"modules" json:"modules" mapstructure:"modules"`
	ModuleLevels  map[string]string       `yaml:"module_levels" json:"module_levels" mapstructure:"module_levels"`
}

// ConsoleOutput represents console logging configuration.
// Text format omits timestamps; journald or Docker adds them.
type ConsoleOutput struct {
	Enabled bool   `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	Level   string `yaml:"level" json:"level" mapstructure:"level"`
	JSON    bool   `yaml:"json" json:"json" mapstructure:"json"` // emit JSON to stdout, for container log shippers
}

// FileOutput represents file logging configuration. Always JSON.
type FileOutput struct {
	Enabled bool   `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" json:"path" mapstructure:"path"`
	Level   string `yaml:"level" json:"level" mapstructure:"level"`
}

// ModuleOutput represents per-module output configuration
type ModuleOutput struct {
	Enabled     bool   `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	FilePath    string `yaml:"file_path" json:"file_path" mapstructure:"file_path"`
	Level       string `yaml:"level" json:"level" mapstructure:"level"`
	ConsoleAlso bool   `yaml:"console_also" json:"console_also" mapstructure:"console_also"`
}

// Default values for logging configuration, mirrored in conf/defaults.go.
const (
	DefaultLogLevel          = "info"
	DefaultLogPath           = "logs/trailcam.log"
	DefaultAccessLogPath     = "logs/access.log"
	DefaultClassifierLogPath = "logs/classifier.log"
	DefaultConsoleEnabled    = true
	DefaultFileEnabled       = true
)

func ensureModuleOutput(cfg *LoggingConfig, module, filePath string) {
	if _, exists := cfg.ModuleOutputs[module]; !exists {
		cfg.ModuleOutputs[module] = ModuleOutput{
			Enabled:  true,
			FilePath: filePath,
			Level:    DefaultLogLevel,
		}
	}
}

// applyConfigDefaults fills nil sections so a partial config still logs
// to console and file.
func applyConfigDefaults(cfg *LoggingConfig) {
	if cfg == nil {
		return
	}

	if cfg.DefaultLevel == "" {
		cfg.DefaultLevel = DefaultLogLevel
	}

	if cfg.Console == nil {
		cfg.Console = &ConsoleOutput{
			Enabled: DefaultConsoleEnabled,
			Level:   DefaultLogLevel,
		}
	}

	if cfg.FileOutput == nil {
		cfg.FileOutput = &FileOutput{
			Enabled: DefaultFileEnabled,
			Path:    DefaultLogPath,
			Level:   DefaultLogLevel,
		}
	}

	if cfg.ModuleOutputs == nil {
		cfg.ModuleOutputs = make(map[string]ModuleOutput)
	}

	// HTTP access logs go to their own file
	ensureModuleOutput(cfg, "access", DefaultAccessLogPath)

	// Outbound classifier calls are slow and noisy when debugging
	ensureModuleOutput(cfg, "classifier", DefaultClassifierLogPath)
}
