package main

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/avdeyev/roster/internal/krypto"
	"github.com/avdeyev/roster/internal/web"
)

// httpConfig is the configuration for the HTTP server.
type httpConfig struct {
	addr            string
	readTimeout     time.Duration
	writeTimeout    time.Duration
	idleTimeout     time.Duration
	shutdownTimeout time.Duration
	cookieKeys      []krypto.Key
	viewDir         string
	server          web.ServerConfig
}

// dbConfig is the configuration for the sqlite database.
type dbConfig struct {
	file    string
	migrate bool
}

// config is the configuration for the server command.
type config struct {
	http httpConfig
	db   dbConfig
}

// defaultConfig returns a config with sane default values.
func defaultConfig() config {
	return config{
		http: httpConfig{
			addr:            ":8888",
			readTimeout:     time.Second * 5,
			writeTimeout:    time.Second * 10,
			idleTimeout:     time.Second * 120,
			shutdownTimeout: time.Second * 15,
			server: web.ServerConfig{
				SecureCookie: true,
			},
		},
		db: dbConfig{
			file:    "roster.db",
			migrate: true,
		},
	}
}

// envMap maps environment variable names to fields in the config struct.
var envMap = map[string]func(v string, c *config) error{
	"HTTP_ADDR": func(v string, c *config) error {
		c.http.addr = v
		return nil
	},
	"HTTP_READ_TIMEOUT": func(v string, c *config) error {
		return confDuration(v, &c.http.readTimeout, 0, math.MaxInt64)
	},
	"HTTP_WRITE_TIMEOUT": func(v string, c *config) error {
		return confDuration(v, &c.http.writeTimeout, 0, math.MaxInt64)
	},
	"HTTP_IDLE_TIMEOUT": func(v string, c *config) error {
		return confDuration(v, &c.http.idleTimeout, 0, math.MaxInt64)
	},
	"HTTP_SHUTDOWN_TIMEOUT": func(v string, c *config) error {
		return confDuration(v, &c.http.shutdownTimeout, 0, math.MaxInt64)
	},
	"HTTP_COOKIE_KEYS": func(v string, c *config) error {
		return confKeys(v, &c.http.cookieKeys)
	},
	"HTTP_CSRF_KEY": func(v string, c *config) error {
		key, err := krypto.ParseKey(v)
		if err != nil {
			return err
		}

		c.http.server.CSRFKey = key
		return nil
	},
	"HTTP_SECURE_COOKIE": func(v string, c *config) error {
		return confBool(v, &c.http.server.SecureCookie)
	},
	"HTTP_VIEW_DIR": func(v string, c *config) error {
		c.http.viewDir = v
		return nil
	},
	"DB_FILENAME": func(v string, c *config) error {
		if v == "" {
			return errors.New("empty filename")
		}

		c.db.file = v
		return nil
	},
	"DB_MIGRATE": func(v string, c *config) error {
		return confBool(v, &c.db.migrate)
	},
}

// configFromEnv returns a config with values from the environment. It falls
// back to default values for any missing non-required environment variables.
//
// It does a best effort to validate provided values, so that mistakes are
// caught ASAP. However, there is no guarantee that the returned config
// is valid and will work. All invalid variables are reported at once.
func configFromEnv() (config, error) {
	c := defaultConfig()

	var errs []error
	for key, mf := range envMap {
		if val, ok := os.LookupEnv(key); ok {
			if err := mf(val, &c); err != nil {
				errs = append(errs, fmt.Errorf("invalid env variable %s: %w", key, err))
			}
		}
	}

	if len(c.http.cookieKeys) == 0 {
		errs = append(errs, errors.New("required env variable HTTP_COOKIE_KEYS is not set"))
	}

	if len(c.http.server.CSRFKey.SecretValue()) == 0 {
		errs = append(errs, errors.New("required env variable HTTP_CSRF_KEY is not set"))
	}

	return c, errors.Join(errs...)
}

// confDuration attempts to parse v into tgt and checks if the result is in
// the provided range (inclusive).
func confDuration(v string, tgt *time.Duration, min, max time.Duration) error {
	dur, err := time.ParseDuration(v)
	if err != nil {
		return err
	}

	if dur < min || dur > max {
		return fmt.Errorf("duration %s not in range [%s, %s] (inclusive)", dur, min, max)
	}

	*tgt = dur

	return nil
}

func confBool(v string, tgt *bool) error {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return err
	}

	*tgt = b

	return nil
}

// confKeys parses a comma separated list of hex encoded keys.
func confKeys(v string, tgt *[]krypto.Key) error {
	parts := strings.Split(v, ",")

	keys := make([]krypto.Key, 0, len(parts))
	for _, part := range parts {
		key, err := krypto.ParseKey(strings.TrimSpace(part))
		if err != nil {
			return err
		}

		keys = append(keys, key)
	}

	*tgt = keys

	return nil
}
