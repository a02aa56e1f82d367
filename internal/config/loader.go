package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("collection_prefix", "quartz")
	v.SetDefault("use_tls", false)
	v.SetDefault("misfire_threshold", "60s")
	v.SetDefault("db_retry_interval", "15s")
	v.SetDefault("max_misfires_per_pass", 20)
	v.SetDefault("retryable_action_error_log_threshold", 4)
}

// Load собирает Config из окружения (префикс TRIGGERSTORE_) и, если
// путь непуст, из файла настроек. connection_string, instance_id и
// instance_name обязательны — без них Load возвращает ошибку, чтобы
// Initialize никогда не увидел частично собранный инстанс.
func Load(configFile string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TRIGGERSTORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: reading %s: %w", configFile, err)
		}
	}

	cfg := Config{
		ConnectionString:                 v.GetString("connection_string"),
		CollectionPrefix:                 v.GetString("collection_prefix"),
		UseTLS:                           v.GetBool("use_tls"),
		InstanceID:                       v.GetString("instance_id"),
		InstanceName:                     v.GetString("instance_name"),
		MisfireThreshold:                 v.GetDuration("misfire_threshold"),
		DBRetryInterval:                  v.GetDuration("db_retry_interval"),
		MaxMisfiresPerPass:               v.GetInt("max_misfires_per_pass"),
		RetryableActionErrorLogThreshold: v.GetInt("retryable_action_error_log_threshold"),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate проверяет обязательные поля и разумность операционных
// таймингов.
func (c Config) Validate() error {
	if c.ConnectionString == "" {
		return errors.New("config: connection_string is required")
	}
	if c.InstanceID == "" {
		return errors.New("config: instance_id is required")
	}
	if c.InstanceName == "" {
		return errors.New("config: instance_name is required")
	}
	if c.MisfireThreshold <= 0 {
		return errors.New("config: misfire_threshold must be positive")
	}
	if c.DBRetryInterval <= 0 {
		return errors.New("config: db_retry_interval must be positive")
	}
	if c.MaxMisfiresPerPass <= 0 {
		return errors.New("config: max_misfires_per_pass must be positive")
	}
	return nil
}

// parseOverrideFile читает только операционную часть конфигурации из
// файла с горячей перезагрузкой (misfire_threshold и т.д.) — используется
// исключительно Watch, поэтому не трогает неизменные поля.
func parseOverrideFile(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)
	if err := v.ReadInConfig(); err != nil {
		return Config{}, err
	}
	return Config{
		MisfireThreshold:                 v.GetDuration("misfire_threshold"),
		DBRetryInterval:                  v.GetDuration("db_retry_interval"),
		MaxMisfiresPerPass:               v.GetInt("max_misfires_per_pass"),
		RetryableActionErrorLogThreshold: v.GetInt("retryable_action_error_log_threshold"),
	}, nil
}
