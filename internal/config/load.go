// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

package config

import (
	"errors"
	"io/fs"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/passgate/passgate/internal/xdg"
)

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"http-addr":                "http.addr",
	"http-read-header-timeout": "http.read_header_timeout",
	"http-shutdown-timeout":    "http.shutdown_timeout",
	"metrics-addr":             "metrics.addr",
	"log-format":               "log.format",
	"log-level":                "log.level",
	"store-driver":             "store.driver",
	"store-auto-migrate":       "store.auto_migrate",
	"token-ttl":                "token.ttl",
	"token-issuer":             "token.issuer",
	"hash-time":                "hash.time",
	"hash-memory-kib":          "hash.memory_kib",
	"hash-threads":             "hash.threads",
}

// RegisterFlags adds the config flags to flags with the built-in defaults.
func RegisterFlags(flags *pflag.FlagSet) {
	d := Default()
	flags.String("config", "", "config file (default: $XDG_CONFIG_HOME/passgate/config.yaml if present)")
	flags.String("env-file", ".env", "dotenv file loaded into the environment if present")
	flags.String("http-addr", d.HTTP.Addr, "API listen address")
	flags.Duration("http-read-header-timeout", d.HTTP.ReadHeaderTimeout, "time allowed to read request headers")
	flags.Duration("http-shutdown-timeout", d.HTTP.ShutdownTimeout, "graceful shutdown timeout")
	flags.String("metrics-addr", d.Metrics.Addr, "metrics/health HTTP address (empty = disabled)")
	flags.String("log-format", d.Log.Format, "log format (json or text)")
	flags.String("log-level", d.Log.Level, "log level (debug, info, warn, error)")
	flags.String("store-driver", d.Store.Driver, "account store (memory or postgres)")
	flags.Bool("store-auto-migrate", d.Store.AutoMigrate, "apply pending postgres migrations on startup")
	flags.Duration("token-ttl", d.Token.TTL, "access token lifetime")
	flags.String("token-issuer", d.Token.Issuer, "access token issuer claim")
	flags.Uint32("hash-time", d.Hash.Time, "argon2id iterations")
	flags.Uint32("hash-memory-kib", d.Hash.MemoryKiB, "argon2id memory in KiB")
	flags.Uint8("hash-threads", d.Hash.Threads, "argon2id parallelism")
}

// Load builds the configuration. Later sources override earlier ones:
// defaults, the config file, then flags that were set explicitly. Secrets
// are read from the environment after loading the dotenv file, if any.
// flags may be nil.
func Load(flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	path, required := configPath(flags)
	if path != "" {
		if err := loadFile(k, path, required); err != nil {
			return nil, err
		}
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
		}
	}

	cfg := Default()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("operation", "unmarshal").Wrap(err)
	}

	envFile := ".env"
	if flags != nil {
		if v, err := flags.GetString("env-file"); err == nil {
			envFile = v
		}
	}
	secrets, err := LoadSecrets(envFile)
	if err != nil {
		return nil, err
	}
	cfg.Secrets = *secrets

	return cfg, nil
}

// LoadSecrets reads secrets from the environment. If envFile names an
// existing dotenv file it is loaded first; variables already set in the
// environment take precedence over the file.
func LoadSecrets(envFile string) (*Secrets, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", envFile).Wrap(err)
		}
	}

	var s Secrets
	if err := env.Parse(&s); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "environment").Wrap(err)
	}
	return &s, nil
}

// configPath returns the file to load and whether it must exist. An
// explicit --config must exist; the XDG default is used only if present.
func configPath(flags *pflag.FlagSet) (string, bool) {
	if flags != nil {
		if p, err := flags.GetString("config"); err == nil && p != "" {
			return p, true
		}
	}
	if p, ok := xdg.DefaultConfigFile(); ok {
		return p, false
	}
	return "", false
}

func loadFile(k *koanf.Koanf, path string, required bool) error {
	data, err := os.ReadFile(path) //nolint:gosec // path is operator supplied
	if err != nil {
		if !required && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
	}

	if err := ValidateYAML(data); err != nil {
		return oops.Code("CONFIG_INVALID").With("path", path).Wrap(err)
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
	}
	return nil
}
