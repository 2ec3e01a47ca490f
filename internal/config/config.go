package config

import (
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	DataDir string        `yaml:"data_dir" mapstructure:"data_dir"`
	Import  ImportConfig  `yaml:"import" mapstructure:"import"`
	ClinVar ClinVarConfig `yaml:"clinvar" mapstructure:"clinvar"`
	KB      KBConfig      `yaml:"kb" mapstructure:"kb"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// ImportConfig configures the import transaction.
type ImportConfig struct {
	// BatchSize is the number of rows parsed between cancellation checks.
	BatchSize int `yaml:"batch_size" mapstructure:"batch_size"`
}

// ClinVarConfig configures the clinical variant cache.
type ClinVarConfig struct {
	// CacheFile is the cache artifact filename under the data directory.
	CacheFile string `yaml:"cache_file" mapstructure:"cache_file"`
}

// KBConfig configures the curated knowledge base.
type KBConfig struct {
	// Dir overrides the embedded module set with an on-disk directory.
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// ServerConfig configures the query surface server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// DatabasePath is the genotype store artifact under the data directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "genotype.db")
}

// CachePath is the clinical variant cache artifact under the data directory.
func (c *Config) CachePath() string {
	return filepath.Join(c.DataDir, c.ClinVar.CacheFile)
}

// BlobDir holds encrypted raw-import and genotype blobs.
func (c *Config) BlobDir() string {
	return filepath.Join(c.DataDir, "blobs")
}

// Load reads configuration from file and environment. The data directory
// override (GENOTYPE_DATA_DIR) is read here, once, and carried into the core
// as a value; core components never read the environment themselves.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("GENOTYPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("data_dir", "genotype-data")
	v.SetDefault("import.batch_size", 1000)
	v.SetDefault("clinvar.cache_file", "clinvar-cache.db")
	v.SetDefault("server.port", 8642)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

	return &cfg, nil
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
