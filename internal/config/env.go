package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Environment overrides. The process environment wins over the dotenv
// file; both win over the YAML file.
const (
	EnvListen    = "UTRCAL_LISTEN"
	EnvStorePath = "UTRCAL_STORE_PATH"
	EnvLogLevel  = "UTRCAL_LOG_LEVEL"
	EnvLocale    = "UTRCAL_LOCALE"
	EnvStrict    = "UTRCAL_STRICT"
	EnvNotify    = "UTRCAL_NOTIFY"
	EnvAuthUser  = "UTRCAL_BASIC_AUTH_USERNAME"
	EnvAuthPass  = "UTRCAL_BASIC_AUTH_PASSWORD"
)

// ApplyEnv overlays UTRCAL_* variables onto c. dotenvPath may be empty or
// point at a missing file. Unparsable booleans are ignored.
func (c *Config) ApplyEnv(dotenvPath string) error {
	file := map[string]string{}
	if dotenvPath != "" {
		vars, err := godotenv.Read(dotenvPath)
		switch {
		case err == nil:
			file = vars
		case errors.Is(err, fs.ErrNotExist):
		default:
			return err
		}
	}

	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := file[key]
		return v, ok
	}
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}

	str(EnvListen, &c.Listen)
	str(EnvStorePath, &c.StorePath)
	str(EnvLogLevel, &c.LogLevel)
	str(EnvLocale, &c.Locale)
	boolean(EnvStrict, &c.Editor.Strict)
	boolean(EnvNotify, &c.Notify.Enabled)

	var user, pass string
	str(EnvAuthUser, &user)
	str(EnvAuthPass, &pass)
	if user != "" && pass != "" {
		c.BasicAuth = &BasicAuthConfig{Username: user, Password: pass}
	}

	c.Normalize()
	return nil
}
