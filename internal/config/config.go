package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type ServerConfig struct {
	Addr                  string
	MaxLobbies            int
	MaxActiveGames        int
	LobbyIdleTimeout      time.Duration
	GameIdleTimeout       time.Duration
	FinishedGameRetention time.Duration
	CleanupInterval       time.Duration
	GameRateLimitRPS      int
	AllowedOrigins        []string
}

type CLIConfig struct {
	APIBaseURL string
}

func LoadServerFromEnv() ServerConfig {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	addr := strings.TrimSpace(os.Getenv("PORT"))
	if addr != "" {
		if !strings.HasPrefix(addr, ":") {
			addr = ":" + addr
		}
	} else {
		addr = envDefault("ACQUIRE_ADDR", ":8080")
	}

	return ServerConfig{
		Addr:                  addr,
		MaxLobbies:            envIntDefault("MAX_LOBBIES", 200),
		MaxActiveGames:        envIntDefault("MAX_ACTIVE_GAMES", 100),
		LobbyIdleTimeout:      envDurationDefault("LOBBY_IDLE_TIMEOUT", 30*time.Minute),
		GameIdleTimeout:       envDurationDefault("GAME_IDLE_TIMEOUT", 2*time.Hour),
		FinishedGameRetention: envDurationDefault("FINISHED_GAME_RETENTION", 5*time.Minute),
		CleanupInterval:       envDurationDefault("CLEANUP_INTERVAL", 60*time.Second),
		GameRateLimitRPS:      envIntDefault("ACQUIRE_RATE_LIMIT_RPS", 20),
		AllowedOrigins:        envListDefault("ACQUIRE_ALLOWED_ORIGINS", nil),
	}
}

func LoadCLIFromEnv() CLIConfig {
	return CLIConfig{
		APIBaseURL: strings.TrimRight(envDefault("ACQUIRE_API_BASE_URL", "http://localhost:8080"), "/"),
	}
}

func envDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envIntDefault(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func envDurationDefault(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envListDefault(key string, fallback []string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
