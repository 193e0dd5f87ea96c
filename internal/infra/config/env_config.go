package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

var (
	// ErrInvalidConfig is returned when the provided config is not a pointer to a struct
	// that embeds EnvConfig.
	ErrInvalidConfig = errors.New("config must be a pointer to a struct embedding EnvConfig")

	// ErrVarNotSet is returned when a required environment variable is not set and has no default.
	ErrVarNotSet = errors.New("env var not set")

	// ErrUnsupportedVarType is returned when trying to parse an environment variable
	// into an unsupported Go type.
	ErrUnsupportedVarType = errors.New("unsupported env var type")
)

// EnvConfig is a base type that must be embedded in configuration structs
// to enable environment variable parsing.
type EnvConfig struct {
	namespace string
	sources   map[string]string
}

// Namespace returns the namespace the config was parsed with.
func (c EnvConfig) Namespace() string {
	return c.namespace
}

// Source returns the environment variable the field with the given prefixed
// name (e.g. "SESSION_SECRET") was read from, or "default" if its default
// value was applied.
func (c EnvConfig) Source(name string) string {
	return c.sources[name]
}

//nolint:varnamelen
func getEnvConfig(cfg any) (*EnvConfig, error) {
	v := reflect.ValueOf(cfg)

	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return nil, ErrInvalidConfig
	}

	v = v.Elem()
	t := v.Type()

	for i := range t.NumField() {
		field := t.Field(i)
		//nolint:exhaustruct,forcetypeassert
		if field.Anonymous && field.Type == reflect.TypeOf(EnvConfig{}) {
			if ev := v.Field(i); ev.CanAddr() {
				return ev.Addr().Interface().(*EnvConfig), nil
			}
		}
	}

	return nil, ErrInvalidConfig
}

// LoadDotEnv loads variables from the given dotenv files into the process
// environment. Variables that are already set are left untouched and missing
// files are skipped.
func LoadDotEnv(files ...string) error {
	for _, file := range files {
		if _, err := os.Stat(file); errors.Is(err, os.ErrNotExist) {
			continue
		}

		if err := godotenv.Load(file); err != nil {
			return fmt.Errorf("load %s: %w", file, err)
		}
	}

	return nil
}

// Parse loads configuration values from environment variables into the provided struct.
// The struct must embed EnvConfig and use `env` tags to specify variable names.
//
// A field tagged `env:"SECRET"` inside a struct tagged `envPrefix:"SESSION_"` with
// namespace "APP_SVC" is looked up as APP_SVC_SESSION_SECRET, APP_SESSION_SECRET
// and finally SESSION_SECRET. The first one set wins, otherwise the `default` tag
// applies. Supports string, int and bool fields and nested structs.
func Parse(ctx context.Context, cfg any, namespace string) error {
	envConfig, err := getEnvConfig(cfg)
	if err != nil {
		return fmt.Errorf("get env config: %w", err)
	}

	envConfig.namespace = namespace
	envConfig.sources = make(map[string]string)

	return parse(envConfig, "", cfg)
}

func parse(envConfig *EnvConfig, prefix string, c interface{}) error {
	t := reflect.TypeOf(c).Elem()
	v := reflect.ValueOf(c).Elem()

	for i := range t.NumField() {
		field := t.Field(i)
		structField := v.Field(i)

		if field.Anonymous && field.Type == reflect.TypeOf(EnvConfig{}) {
			continue
		}

		if field.Type.Kind() == reflect.Struct {
			envPrefix := field.Tag.Get("envPrefix")

			if err := parse(envConfig, prefix+envPrefix, structField.Addr().Interface()); err != nil {
				return err
			}

			continue
		}

		if err := parseField(envConfig, prefix, field, structField); err != nil {
			return fmt.Errorf("parse field: %w", err)
		}
	}

	return nil
}

// lookupEnv walks the namespace from most to least specific, ending with the
// bare variable name.
func lookupEnv(namespace, name string) (envName, envValue string, ok bool) {
	var nsParts []string
	if namespace != "" {
		nsParts = strings.Split(namespace, "_")
	}

	for i := len(nsParts); i >= 0; i-- {
		envName = name
		if i > 0 {
			envName = strings.Join(nsParts[:i], "_") + "_" + name
		}

		if envValue, ok = os.LookupEnv(envName); ok {
			return envName, envValue, true
		}
	}

	return "", "", false
}

//nolint:cyclop
func parseField(
	envConfig *EnvConfig,
	prefix string,
	field reflect.StructField,
	structField reflect.Value,
) error {
	envTag := field.Tag.Get("env")
	if envTag == "" {
		return nil
	}

	defaultValue, hasDefault := field.Tag.Lookup("default")
	name := prefix + envTag

	envName, envValue, envExists := lookupEnv(envConfig.namespace, name)
	if !envExists {
		if !hasDefault {
			return fmt.Errorf("%w: %s", ErrVarNotSet, name)
		}

		envName, envValue = "default", defaultValue
	}

	envConfig.sources[name] = envName

	//nolint:exhaustive
	switch kind := field.Type.Kind(); kind {
	case reflect.String:
		structField.SetString(envValue)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		intValue, err := strconv.ParseInt(envValue, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid type for %s: %w", name, err)
		}

		structField.SetInt(intValue)
	case reflect.Bool:
		boolValue, err := strconv.ParseBool(envValue)
		if err != nil {
			return fmt.Errorf("invalid type for %s: %w", name, err)
		}

		structField.SetBool(boolValue)
	default:
		return fmt.Errorf("%w: %s (%v)", ErrUnsupportedVarType, name, kind)
	}

	return nil
}
