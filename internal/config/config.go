package config

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// Config holds the full application configuration.
type Config struct {
	Extract ExtractConfig `yaml:"extract" mapstructure:"extract"`
	OCR     OCRConfig     `yaml:"ocr" mapstructure:"ocr"`
	Export  ExportConfig  `yaml:"export" mapstructure:"export"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// ExtractConfig configures the field extraction behavior.
type ExtractConfig struct {
	// EmptyLinePolicy decides what a document with no matched benefit line
	// becomes: "placeholder" keeps it as one empty-period record, "fail"
	// records it as an extraction failure.
	EmptyLinePolicy string `yaml:"empty_line_policy" mapstructure:"empty_line_policy"`
	// Fallback enables the loose line-scan pattern when the standard
	// benefit-line pattern finds nothing.
	Fallback bool `yaml:"fallback" mapstructure:"fallback"`
	// TempDir is where archives are unpacked for the duration of a run.
	// Empty means the system temp directory.
	TempDir string `yaml:"temp_dir" mapstructure:"temp_dir"`
}

// OCRConfig configures PDF text extraction.
type OCRConfig struct {
	Provider      string `yaml:"provider" mapstructure:"provider"`
	PdfToTextPath string `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
}

// ExportConfig configures the workbook output.
type ExportConfig struct {
	SheetName string `yaml:"sheet_name" mapstructure:"sheet_name"`
	// TotalRows appends a shaded per-document total summary row.
	TotalRows bool `yaml:"total_rows" mapstructure:"total_rows"`
}

// ServerConfig configures the upload server.
type ServerConfig struct {
	Port            int `yaml:"port" mapstructure:"port"`
	MaxUploadMB     int `yaml:"max_upload_mb" mapstructure:"max_upload_mb"`
	UploadPerMinute int `yaml:"uploads_per_minute" mapstructure:"uploads_per_minute"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("IJSS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("extract.empty_line_policy", "placeholder")
	v.SetDefault("extract.fallback", true)
	v.SetDefault("ocr.provider", "native")
	v.SetDefault("ocr.pdftotext_path", "pdftotext")
	v.SetDefault("export.sheet_name", "Bordereaux")
	v.SetDefault("export.total_rows", false)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.max_upload_mb", 200)
	v.SetDefault("server.uploads_per_minute", 10)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Validate checks value constraints that viper cannot express.
func (c *Config) Validate() error {
	switch c.Extract.EmptyLinePolicy {
	case "placeholder", "fail":
	default:
		return eris.Errorf("config: extract.empty_line_policy must be \"placeholder\" or \"fail\", got %q", c.Extract.EmptyLinePolicy)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return eris.Errorf("config: server.port %d out of range", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return eris.New("config: server.max_upload_mb must be positive")
	}

	return nil
}

// WriteDefault writes a config.yaml populated with the default values,
// used by the "config init" command.
func WriteDefault(path string) error {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return eris.Wrap(err, "config: unmarshal defaults")
	}

	data, err := yaml.Marshal(&cfg)
	if err != nil {
		return eris.Wrap(err, "config: marshal defaults")
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrap(err, "config: write file")
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
