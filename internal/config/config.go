// Package config handles input from etc/glassview.toml and the environment.
package config

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// ReadConfig from config file, with GLASSVIEW_* environment overrides.
func ReadConfig(path string) (Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("glassview")
		v.SetConfigType("toml")
		v.AddConfigPath("./etc")
	}

	v.SetEnvPrefix("GLASSVIEW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, errors.Wrap(err, "failed to read main config file")
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, errors.Wrap(err, "failed to decode main config file")
	}

	return c, validate(c)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("title", "Glassview")
	v.SetDefault("db.engine", "sqlite")
	v.SetDefault("db.name", "glassview.db")
	v.SetDefault("webserver.port", 8080)
	v.SetDefault("webserver.shutdowntime", 3)
	v.SetDefault("log.loglevel", "info")
	v.SetDefault("log.appname", "glassview")
	v.SetDefault("log.servicename", "glassview")
	v.SetDefault("log.console.enabled", true)
	v.SetDefault("permissions.defaultgroup", "All Users")
	v.SetDefault("permissions.newtabledataaccess", "no-self-service")
	v.SetDefault("permissions.newtabledownload", "no")
}

func validate(c Config) error {
	if c.DB.Name == "" {
		return ErrDBNameEmpty
	}

	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(err, "config validation failed")
	}

	return nil
}
