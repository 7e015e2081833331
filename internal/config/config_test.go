package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func withTempHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home) // windows
	return home
}

func TestLoad_MissingFile_ReturnsEmptyStore(t *testing.T) {
	withTempHome(t)

	cfg, err := Load()
	require.NoError(t, err)
	require.Empty(t, cfg.Users)
	require.Empty(t, cfg.CurrentUser)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	home := withTempHome(t)

	cfg := &Config{Users: map[string]Profile{}}
	cfg.AddUser("home", Profile{ServerURL: "http://immich.local:2283", APIKey: "key-1"}, false)
	cfg.AddUser("work", Profile{ServerURL: "https://photos.example.com", APIKey: "key-2"}, true)
	require.NoError(t, cfg.Save())

	info, err := os.Stat(filepath.Join(home, ".immich", "config.toml"))
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := Load()
	require.NoError(t, err)
	require.Equal(t, "work", loaded.CurrentUser)
	require.Equal(t, cfg.Users, loaded.Users)
}

func TestAddUser_FirstBecomesDefault(t *testing.T) {
	cfg := &Config{}
	cfg.AddUser("first", Profile{ServerURL: "http://a", APIKey: "k"}, false)
	require.Equal(t, "first", cfg.CurrentUser)

	cfg.AddUser("second", Profile{ServerURL: "http://b", APIKey: "k"}, false)
	require.Equal(t, "first", cfg.CurrentUser)
}

func TestDeleteUser_ClearsDefault(t *testing.T) {
	cfg := &Config{}
	cfg.AddUser("only", Profile{ServerURL: "http://a", APIKey: "k"}, true)

	require.NoError(t, cfg.DeleteUser("only"))
	require.Empty(t, cfg.CurrentUser)
	require.Empty(t, cfg.Users)

	require.ErrorIs(t, cfg.DeleteUser("only"), ErrUserNotFound)
}

func TestSetDefault_UnknownUser(t *testing.T) {
	cfg := &Config{}
	require.ErrorIs(t, cfg.SetDefault("ghost"), ErrUserNotFound)
}

func TestResolveSession_FlagsWin(t *testing.T) {
	t.Setenv(EnvServerURL, "http://env:2283")
	t.Setenv(EnvAPIKey, "env-key")

	cfg := &Config{}
	cfg.AddUser("home", Profile{ServerURL: "http://stored", APIKey: "stored-key"}, true)

	p, err := cfg.ResolveSession(Flags{ServerURL: "http://flag:2283/", APIKey: "flag-key"})
	require.NoError(t, err)
	require.Equal(t, "http://flag:2283", p.ServerURL) // trailing slash trimmed
	require.Equal(t, "flag-key", p.APIKey)
}

func TestResolveSession_NamedProfileBeatsEnv(t *testing.T) {
	t.Setenv(EnvServerURL, "http://env:2283")
	t.Setenv(EnvAPIKey, "env-key")

	cfg := &Config{}
	cfg.AddUser("work", Profile{ServerURL: "http://work", APIKey: "work-key"}, false)
	cfg.AddUser("home", Profile{ServerURL: "http://home", APIKey: "home-key"}, true)

	p, err := cfg.ResolveSession(Flags{User: "work"})
	require.NoError(t, err)
	require.Equal(t, "work-key", p.APIKey)
}

func TestResolveSession_UnknownNamedProfile(t *testing.T) {
	cfg := &Config{}
	_, err := cfg.ResolveSession(Flags{User: "ghost"})
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestResolveSession_EnvBeatsDefaultProfile(t *testing.T) {
	t.Setenv(EnvServerURL, "http://env:2283")
	t.Setenv(EnvAPIKey, "env-key")

	cfg := &Config{}
	cfg.AddUser("home", Profile{ServerURL: "http://home", APIKey: "home-key"}, true)

	p, err := cfg.ResolveSession(Flags{})
	require.NoError(t, err)
	require.Equal(t, "env-key", p.APIKey)
}

func TestResolveSession_FallsBackToDefaultProfile(t *testing.T) {
	t.Setenv(EnvServerURL, "")
	t.Setenv(EnvAPIKey, "")

	cfg := &Config{}
	cfg.AddUser("home", Profile{ServerURL: "http://home", APIKey: "home-key"}, true)

	p, err := cfg.ResolveSession(Flags{})
	require.NoError(t, err)
	require.Equal(t, "home-key", p.APIKey)
}

func TestResolveSession_SingleFlagOverlaysBase(t *testing.T) {
	t.Setenv(EnvServerURL, "")
	t.Setenv(EnvAPIKey, "")

	cfg := &Config{}
	cfg.AddUser("home", Profile{ServerURL: "http://home", APIKey: "home-key"}, true)

	p, err := cfg.ResolveSession(Flags{ServerURL: "http://override"})
	require.NoError(t, err)
	require.Equal(t, "http://override", p.ServerURL)
	require.Equal(t, "home-key", p.APIKey)
}

func TestResolveSession_NothingConfigured(t *testing.T) {
	t.Setenv(EnvServerURL, "")
	t.Setenv(EnvAPIKey, "")

	cfg := &Config{}
	_, err := cfg.ResolveSession(Flags{})
	require.ErrorIs(t, err, ErrNoCredentials)
}
