package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// Environment variables honored when neither flags nor a named profile
// provide the server coordinates.
const (
	EnvServerURL = "IMMICH_SERVER_URL"
	EnvAPIKey    = "IMMICH_API_KEY"
)

// ErrNoCredentials is returned when no source yields a usable server/key pair.
var ErrNoCredentials = errors.New("no server/API key configured")

// Flags carries the values given explicitly on the command line. Empty
// fields count as "not given".
type Flags struct {
	ServerURL string
	APIKey    string
	User      string
}

// ResolveSession picks the server URL and API key for a run. Sources are
// consulted in precedence order: explicit flags, then the named profile
// (--user), then environment variables, then the default profile. Flag
// values always win field by field over whatever base was selected.
func (c *Config) ResolveSession(fl Flags) (Profile, error) {
	base, err := c.baseProfile(fl)
	if err != nil {
		return Profile{}, err
	}

	if fl.ServerURL != "" {
		base.ServerURL = fl.ServerURL
	}
	if fl.APIKey != "" {
		base.APIKey = fl.APIKey
	}

	if base.ServerURL == "" || base.APIKey == "" {
		return Profile{}, fmt.Errorf("%w: pass --server and --key, or add a user with %q",
			ErrNoCredentials, "user add")
	}
	base.ServerURL = strings.TrimRight(base.ServerURL, "/")
	return base, nil
}

func (c *Config) baseProfile(fl Flags) (Profile, error) {
	// Both flags given: no other source is needed or consulted.
	if fl.ServerURL != "" && fl.APIKey != "" {
		return Profile{}, nil
	}

	if fl.User != "" {
		p, ok := c.Users[fl.User]
		if !ok {
			return Profile{}, fmt.Errorf("%w: %q", ErrUserNotFound, fl.User)
		}
		return p, nil
	}

	if server, key := os.Getenv(EnvServerURL), os.Getenv(EnvAPIKey); server != "" && key != "" {
		return Profile{ServerURL: server, APIKey: key}, nil
	}

	if _, p, ok := c.CurrentProfile(); ok {
		return p, nil
	}
	return Profile{}, nil
}
