package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"

	"github.com/rainbow-me/gateway-correlation/common/env"
	"github.com/rainbow-me/gateway-correlation/common/logger"
)

const (
	fileFormat   = ".yaml"        // File format of the config files
	relativePath = "./cmd/config" // Default relative path for config files
	envVarPrefix = "env://"       // Prefix for values resolved from environment variables
)

// YamlReadConfig holds the configuration paths (relative and absolute).
type YamlReadConfig struct {
	RelativePath string // Path relative to the current directory
	AbsolutePath string // Absolute path if provided, wins over RelativePath
	DynamicDir   string // Optional subdirectory appended to whichever path is used
}

// ReadConfigOption is a function signature used to set configuration options.
type ReadConfigOption func(*YamlReadConfig)

// WithRelativePath sets a relative path for the config file.
func WithRelativePath(path string) ReadConfigOption {
	return func(config *YamlReadConfig) {
		config.RelativePath = path
	}
}

// WithAbsolutePath sets an absolute path for the config file.
func WithAbsolutePath(path string) ReadConfigOption {
	return func(config *YamlReadConfig) {
		config.AbsolutePath = path
	}
}

// WithDynamicDir allows setting a dynamic subdirectory for the configuration path.
func WithDynamicDir(dynamicDir string) ReadConfigOption {
	return func(config *YamlReadConfig) {
		config.DynamicDir = dynamicDir
	}
}

// LoadConfig reads <dir>/<ENVIRONMENT>.yaml into conf.
//
// Values may be overridden by environment variables named after the key path
// (correlation.header -> CORRELATION_HEADER), and a string value of the form
// "env://NAME" is replaced by the content of $NAME.
func LoadConfig(conf any, log *logger.Logger, options ...ReadConfigOption) error {
	if log == nil {
		log = logger.NoOp()
	}

	config := &YamlReadConfig{RelativePath: relativePath}
	for _, option := range options {
		option(config)
	}

	dir := config.RelativePath
	if config.AbsolutePath != "" {
		dir = config.AbsolutePath
	}
	if config.DynamicDir != "" {
		dir = filepath.Join(dir, config.DynamicDir)
	}

	currentEnv, err := env.GetApplicationEnv()
	if err != nil {
		return errors.Wrap(err, "invalid environment")
	}

	filePath := filepath.Join(dir, currentEnv.String()+fileFormat)
	log.Info("Reading config file", logger.String("path", filePath))

	v := viper.New()
	v.SetConfigFile(filePath)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err = v.ReadInConfig(); err != nil {
		return errors.Wrapf(err, "failed to read configuration file %s", filePath)
	}

	for _, key := range v.AllKeys() {
		resolveEnvPlaceholder(v, key, log)
	}

	if err = v.Unmarshal(conf); err != nil {
		return errors.Wrap(err, "failed to unmarshal configuration")
	}
	return nil
}

func resolveEnvPlaceholder(v *viper.Viper, key string, log *logger.Logger) {
	str, ok := v.Get(key).(string)
	if !ok || !strings.HasPrefix(str, envVarPrefix) {
		return
	}

	envVar := strings.TrimPrefix(str, envVarPrefix)
	if envValue, exists := os.LookupEnv(envVar); exists {
		v.Set(key, envValue)
		log.Info("set environment variable", logger.String("variableName", envVar))
		return
	}
	v.Set(key, "")
	log.Warn("environment variable not found", logger.String("variableName", envVar))
}
