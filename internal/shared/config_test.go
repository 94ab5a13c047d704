package shared

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/oauth2"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "wdx.db" {
			t.Errorf("expected database path wdx.db, got %s", config.Database.Path)
		}

		if config.Server.Port != 3000 {
			t.Errorf("expected server port 3000, got %d", config.Server.Port)
		}

		if config.Discovery.WindowDays != 7 {
			t.Errorf("expected 7 day window, got %d", config.Discovery.WindowDays)
		}

		if config.Discovery.MaxArtists != 50 {
			t.Errorf("expected 50 artist cap, got %d", config.Discovery.MaxArtists)
		}

		if !config.Discovery.MonthEndFallback {
			t.Error("expected month end fallback on by default")
		}

		if config.Credentials.Spotify.ClientID != "" {
			t.Errorf("expected empty spotify client_id, got %s", config.Credentials.Spotify.ClientID)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		if _, err := os.Stat(configPath); err != nil {
			t.Fatalf("config file should exist: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		defaultConfig := DefaultConfig()
		if config.Database.Path != defaultConfig.Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `[database]
path = "/custom/path.db"
max_open_conns = 20
max_idle_conns = 10

[server]
host = "0.0.0.0"
port = 8080

[credentials.spotify]
client_id = "test_client_id"
client_secret = "test_secret"
redirect_uri = "http://localhost:3000/callback"

[discovery]
window_days = 14
max_related_per_artist = 3
max_artists = 25
depth = 2
workers = 8
month_end_fallback = false
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Database.Path != "/custom/path.db" {
			t.Errorf("expected database path /custom/path.db, got %s", config.Database.Path)
		}

		if config.Server.Port != 8080 {
			t.Errorf("expected server port 8080, got %d", config.Server.Port)
		}

		if config.Credentials.Spotify.ClientID != "test_client_id" {
			t.Errorf("expected spotify client_id test_client_id, got %s", config.Credentials.Spotify.ClientID)
		}

		if config.Discovery.WindowDays != 14 {
			t.Errorf("expected 14 day window, got %d", config.Discovery.WindowDays)
		}

		if config.Discovery.MonthEndFallback {
			t.Error("expected month end fallback disabled")
		}
	})

	t.Run("SaveConfig Round Trip", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		config := DefaultConfig()
		config.Credentials.Spotify.ClientID = "saved_id"
		config.Discovery.WindowDays = 21

		if err := SaveConfig(configPath, config); err != nil {
			t.Fatalf("failed to save config: %v", err)
		}

		loaded, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to reload config: %v", err)
		}

		if loaded.Credentials.Spotify.ClientID != "saved_id" {
			t.Errorf("expected saved client_id, got %s", loaded.Credentials.Spotify.ClientID)
		}
		if loaded.Discovery.WindowDays != 21 {
			t.Errorf("expected 21 day window, got %d", loaded.Discovery.WindowDays)
		}
	})
}

func TestSpotifyConfig(t *testing.T) {
	t.Run("Token returns nil without access token", func(t *testing.T) {
		s := &SpotifyConfig{}

		if s.Token() != nil {
			t.Error("expected nil token for empty credentials")
		}
	})

	t.Run("Update stores token fields", func(t *testing.T) {
		s := &SpotifyConfig{RefreshToken: "old_refresh"}
		expiry := time.Now().Add(time.Hour).UTC()

		err := s.Update(&oauth2.Token{
			AccessToken:  "new_access",
			RefreshToken: "new_refresh",
			Expiry:       expiry,
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if s.AccessToken != "new_access" {
			t.Errorf("expected access token to be stored, got %s", s.AccessToken)
		}
		if s.RefreshToken != "new_refresh" {
			t.Errorf("expected refresh token to be stored, got %s", s.RefreshToken)
		}

		token := s.Token()
		if token == nil || !token.Expiry.Equal(expiry) {
			t.Errorf("expected round-tripped expiry, got %+v", token)
		}
	})

	t.Run("Update keeps refresh token when omitted", func(t *testing.T) {
		s := &SpotifyConfig{RefreshToken: "old_refresh"}

		if err := s.Update(&oauth2.Token{AccessToken: "new_access"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if s.RefreshToken != "old_refresh" {
			t.Errorf("expected refresh token to be preserved, got %s", s.RefreshToken)
		}
	})

	t.Run("Update rejects nil token", func(t *testing.T) {
		s := &SpotifyConfig{}

		if err := s.Update(nil); err == nil {
			t.Error("expected error for nil token")
		}
	})
}
