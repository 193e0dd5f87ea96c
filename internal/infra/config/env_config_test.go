package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	. "github.com/mkrupp/csrf-target/internal/infra/config"
)

type testConfig struct {
	EnvConfig

	StringValue string `env:"STRING_VALUE" default:"default"`
	IntValue    int    `env:"INT_VALUE" default:"42"`
	BoolValue   bool   `env:"BOOL_VALUE" default:"true"`
	NoEnvTag    string
	Nested      testNestedConfig `envPrefix:"NESTED_"`
}

type testNestedConfig struct {
	NestedString string `env:"STRING" default:"nested-default"`
}

func setupEnv(t *testing.T, envVars map[string]string) {
	t.Helper()

	for k, v := range envVars {
		t.Setenv(k, v)
	}
}

//nolint:paralleltest
func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		prefix  string
		envVars map[string]string
		want    testConfig
		wantErr bool
	}{
		{
			name:    "uses default values when env vars not set",
			prefix:  "",
			envVars: map[string]string{},
			want: testConfig{
				StringValue: "default",
				IntValue:    42,
				BoolValue:   true,
				Nested: testNestedConfig{
					NestedString: "nested-default",
				},
			},
		},
		{
			name:   "reads environment variables",
			prefix: "",
			envVars: map[string]string{
				"STRING_VALUE":  "env-value",
				"INT_VALUE":     "123",
				"BOOL_VALUE":    "false",
				"NESTED_STRING": "env-nested",
			},
			want: testConfig{
				StringValue: "env-value",
				IntValue:    123,
				BoolValue:   false,
				Nested: testNestedConfig{
					NestedString: "env-nested",
				},
			},
		},
		{
			name:   "handles prefix correctly",
			prefix: "APP",
			envVars: map[string]string{
				"APP_STRING_VALUE": "prefixed-value",
			},
			want: testConfig{
				StringValue: "prefixed-value",
				IntValue:    42,
				BoolValue:   true,
				Nested: testNestedConfig{
					NestedString: "nested-default",
				},
			},
		},
		{
			name:   "fails on invalid int value",
			prefix: "",
			envVars: map[string]string{
				"INT_VALUE": "not-a-number",
			},
			wantErr: true,
		},
		{
			name:   "fails on invalid bool value",
			prefix: "",
			envVars: map[string]string{
				"BOOL_VALUE": "not-a-bool",
			},
			wantErr: true,
		},
		{
			name:    "ignores fields without env tag",
			prefix:  "",
			envVars: map[string]string{},
			want: testConfig{
				StringValue: "default",
				IntValue:    42,
				BoolValue:   true,
				NoEnvTag:    "",
				Nested: testNestedConfig{
					NestedString: "nested-default",
				},
			},
		},
		{
			name:   "handles multi-level prefixes",
			prefix: "APP_SERVICE",
			envVars: map[string]string{
				"APP_SERVICE_STRING_VALUE": "multi-level-prefix",
			},
			want: testConfig{
				StringValue: "multi-level-prefix",
				IntValue:    42,
				BoolValue:   true,
				Nested: testNestedConfig{
					NestedString: "nested-default",
				},
			},
		},
		{
			name:   "prefers more specific prefix",
			prefix: "APP_SERVICE",
			envVars: map[string]string{
				"APP_STRING_VALUE":         "less-specific",
				"APP_SERVICE_STRING_VALUE": "more-specific",
			},
			want: testConfig{
				StringValue: "more-specific",
				IntValue:    42,
				BoolValue:   true,
				Nested: testNestedConfig{
					NestedString: "nested-default",
				},
			},
		},
		{
			name:   "falls back to bare variable name",
			prefix: "APP_SERVICE",
			envVars: map[string]string{
				"INT_VALUE":                "7",
				"APP_SERVICE_STRING_VALUE": "namespaced",
			},
			want: testConfig{
				StringValue: "namespaced",
				IntValue:    7,
				BoolValue:   true,
				Nested: testNestedConfig{
					NestedString: "nested-default",
				},
			},
		},
		{
			name:   "applies nested prefix under namespace",
			prefix: "APP",
			envVars: map[string]string{
				"APP_NESTED_STRING": "nested-namespaced",
			},
			want: testConfig{
				StringValue: "default",
				IntValue:    42,
				BoolValue:   true,
				Nested: testNestedConfig{
					NestedString: "nested-namespaced",
				},
			},
		},
		{
			name:   "handles empty string values",
			prefix: "",
			envVars: map[string]string{
				"STRING_VALUE": "",
			},
			want: testConfig{
				StringValue: "",
				IntValue:    42,
				BoolValue:   true,
				Nested: testNestedConfig{
					NestedString: "nested-default",
				},
			},
		},
		{
			name:   "handles zero int values",
			prefix: "",
			envVars: map[string]string{
				"INT_VALUE": "0",
			},
			want: testConfig{
				StringValue: "default",
				IntValue:    0,
				BoolValue:   true,
				Nested: testNestedConfig{
					NestedString: "nested-default",
				},
			},
		},
	}

	ctx := context.Background()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupEnv(t, tt.envVars)

			cfg := &testConfig{}
			err := Parse(ctx, cfg, tt.prefix)

			if (err != nil) != tt.wantErr {
				t.Errorf("Parse() error = %v, wantErr %v", err, tt.wantErr)
				return
			}

			if !tt.wantErr {
				if cfg.StringValue != tt.want.StringValue {
					t.Errorf("StringValue = %v, want %v", cfg.StringValue, tt.want.StringValue)
				}
				if cfg.IntValue != tt.want.IntValue {
					t.Errorf("IntValue = %v, want %v", cfg.IntValue, tt.want.IntValue)
				}
				if cfg.BoolValue != tt.want.BoolValue {
					t.Errorf("BoolValue = %v, want %v", cfg.BoolValue, tt.want.BoolValue)
				}
				if cfg.NoEnvTag != tt.want.NoEnvTag {
					t.Errorf("NoEnvTag = %v, want %v", cfg.NoEnvTag, tt.want.NoEnvTag)
				}
				if cfg.Nested.NestedString != tt.want.Nested.NestedString {
					t.Errorf("NestedString = %v, want %v", cfg.Nested.NestedString, tt.want.Nested.NestedString)
				}
			}
		})
	}
}

func TestParseInvalidConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     interface{}
		wantErr error
	}{
		{
			name:    "non-pointer config",
			cfg:     testConfig{},
			wantErr: ErrInvalidConfig,
		},
		{
			name:    "non-struct pointer",
			cfg:     new(string),
			wantErr: ErrInvalidConfig,
		},
		{
			name: "missing EnvConfig embedding",
			cfg: &struct {
				Value string `env:"VALUE"`
			}{},
			wantErr: ErrInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := Parse(context.Background(), tt.cfg, "")
			if err == nil {
				t.Error("expected error, got nil")
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected error %v, got %v", tt.wantErr, err)
			}
		})
	}
}

//nolint:paralleltest
func TestParseRecordsSource(t *testing.T) {
	setupEnv(t, map[string]string{
		"APP_STRING_VALUE": "from-env",
	})

	cfg := &testConfig{}
	if err := Parse(context.Background(), cfg, "APP_SERVICE"); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if got := cfg.Source("STRING_VALUE"); got != "APP_STRING_VALUE" {
		t.Errorf("Source(STRING_VALUE) = %q, want %q", got, "APP_STRING_VALUE")
	}

	if got := cfg.Source("INT_VALUE"); got != "default" {
		t.Errorf("Source(INT_VALUE) = %q, want %q", got, "default")
	}

	if got := cfg.Source("NESTED_STRING"); got != "default" {
		t.Errorf("Source(NESTED_STRING) = %q, want %q", got, "default")
	}

	if got := cfg.Source("UNKNOWN"); got != "" {
		t.Errorf("Source(UNKNOWN) = %q, want empty", got)
	}

	if got := cfg.Namespace(); got != "APP_SERVICE" {
		t.Errorf("Namespace() = %q, want %q", got, "APP_SERVICE")
	}
}

func TestParseMissingRequired(t *testing.T) {
	t.Parallel()

	cfg := &struct {
		EnvConfig

		Required string `env:"CSRF_TARGET_TEST_REQUIRED_UNSET"`
	}{}

	err := Parse(context.Background(), cfg, "")
	if !errors.Is(err, ErrVarNotSet) {
		t.Errorf("expected error %v, got %v", ErrVarNotSet, err)
	}
}

//nolint:paralleltest
func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, ".env")

	content := "CSRF_TARGET_TEST_DOTENV=from-file\nCSRF_TARGET_TEST_PRESET=from-file\n"
	if err := os.WriteFile(file, []byte(content), 0o600); err != nil {
		t.Fatalf("write dotenv: %v", err)
	}

	t.Setenv("CSRF_TARGET_TEST_PRESET", "from-env")
	t.Setenv("CSRF_TARGET_TEST_DOTENV", "")
	os.Unsetenv("CSRF_TARGET_TEST_DOTENV")

	if err := LoadDotEnv(filepath.Join(dir, "missing.env"), file); err != nil {
		t.Fatalf("LoadDotEnv() error = %v", err)
	}

	if got := os.Getenv("CSRF_TARGET_TEST_DOTENV"); got != "from-file" {
		t.Errorf("CSRF_TARGET_TEST_DOTENV = %q, want %q", got, "from-file")
	}

	if got := os.Getenv("CSRF_TARGET_TEST_PRESET"); got != "from-env" {
		t.Errorf("CSRF_TARGET_TEST_PRESET = %q, want %q", got, "from-env")
	}
}
