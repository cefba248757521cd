package core

import (
	"time"
)

type Config struct {
	Spotify SpotifyConfig
	Store   StoreConfig
	Shuffle ShuffleConfig
	Server  ServerConfig
	Log     LogConfig
}

type SpotifyConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	TokenPath    string
}

type StoreConfig struct {
	DBPath string
}

type ShuffleConfig struct {
	// QueueDepth is the number of daemon-managed tracks kept ahead in the
	// device queue.
	QueueDepth int
	// TickInterval is the reconciliation timer period.
	TickInterval time.Duration
	// AddDelay is the pause between consecutive queue additions.
	AddDelay time.Duration
	// PlaylistPrefix marks shadow playlists owned by this daemon.
	PlaylistPrefix string
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

func DefaultConfig() *Config {
	return &Config{
		Spotify: SpotifyConfig{
			RedirectURL: "http://localhost:8080/callback",
			TokenPath:   "./spotify_token.json",
		},
		Store: StoreConfig{
			DBPath: "./shufflerd.db",
		},
		Shuffle: ShuffleConfig{
			QueueDepth:     5,
			TickInterval:   15 * time.Second,
			AddDelay:       2 * time.Second,
			PlaylistPrefix: "[shufflerd] ",
		},
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
