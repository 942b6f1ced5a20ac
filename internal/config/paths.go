package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// configFileName is the config file inside the jollykit directory.
const configFileName = "config.yaml"

// redacted replaces secrets in printed configuration.
const redacted = "xxxxx"

// dsnPassword matches the password and sslpassword settings of a keyword/value connection
// string, with the value bare or single-quoted (backslash escapes allowed inside quotes).
var dsnPassword = regexp.MustCompile(`(?i)(\b(?:ssl)?password\s*=\s*)('(?:[^'\\]|\\.)*'|\S*)`)

// GetConfigDir returns the jollykit configuration directory, $JOLLYKIT_HOME or ~/.jollykit.
func GetConfigDir(lookupEnv func(string) (string, bool)) (string, error) {
	if home, ok := lookupEnv(EnvHome); ok && home != "" {
		return home, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".jollykit"), nil
}

// ResolveConfigPath picks the config file: flagValue, then $JOLLYKIT_CONFIG, then the file in
// the config directory. It returns "" when no location can be determined.
func ResolveConfigPath(flagValue string, lookupEnv func(string) (string, bool)) string {
	if flagValue != "" {
		return flagValue
	}
	if v, ok := lookupEnv(EnvConfig); ok && v != "" {
		return v
	}
	dir, err := GetConfigDir(lookupEnv)
	if err != nil {
		return ""
	}
	return filepath.Join(dir, configFileName)
}

// redactURL masks the password of a connection string. Both URL form (user info and the
// password query parameter) and keyword/value form are handled. A URL that cannot be parsed
// is masked entirely.
func redactURL(raw string) string {
	if raw == "" {
		return raw
	}
	if !strings.Contains(raw, "://") {
		return dsnPassword.ReplaceAllString(raw, "${1}"+redacted)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return redacted
	}
	if u.User != nil {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), redacted)
		}
	}
	if q := u.Query(); q.Has("password") {
		q.Set("password", redacted)
		u.RawQuery = q.Encode()
	}
	return u.String()
}
