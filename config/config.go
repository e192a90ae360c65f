package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	SRS       SRSConfig
	Spectator SpectatorConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
	PublicDomain       string // externally reachable base URL, used for spectator join links
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds JWT signing and validation settings.
type JWTConfig struct {
	Secret      string
	ExpireHours int
}

// SRSConfig holds the external SRS streaming server endpoints.
type SRSConfig struct {
	Host      string // SRS host for the HTTP API and media ports
	APIPort   int    // HTTP API port (negotiation + version probe)
	RTMPPort  int    // ingest port for the expert's encoder
	HTTPPort  int    // HLS playout port
	Domain    string // domain embedded in webrtc:// stream URLs
}

// SpectatorConfig holds spectator identity cookie settings.
type SpectatorConfig struct {
	CookieMaxAge int // seconds; identity cookie lifetime for queue rejoin
}

// APIBaseURL returns the base URL of the SRS HTTP API.
func (c SRSConfig) APIBaseURL() string {
	return fmt.Sprintf("http://%s:%d", c.Host, c.APIPort)
}

// RTMPURL returns the RTMP ingest URL for a stream key.
func (c SRSConfig) RTMPURL(streamKey string) string {
	return fmt.Sprintf("rtmp://%s:%d/live/%s", c.Host, c.RTMPPort, streamKey)
}

// HLSURL returns the HLS playout URL for a stream key.
func (c SRSConfig) HLSURL(streamKey string) string {
	return fmt.Sprintf("http://%s:%d/live/%s.m3u8", c.Host, c.HTTPPort, streamKey)
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load() // .env

	readTimeout, _ := strconv.Atoi(getEnv("READ_TIMEOUT_SEC", "30"))
	writeTimeout, _ := strconv.Atoi(getEnv("WRITE_TIMEOUT_SEC", "30"))
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	jwtExpire, _ := strconv.Atoi(getEnv("JWT_EXPIRE_HOURS", "24"))

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        readTimeout,
			WriteTimeout:       writeTimeout,
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
			PublicDomain:       strings.TrimRight(getEnv("PUBLIC_DOMAIN", "http://localhost:8080"), "/"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "expertlive"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "change-me-in-production"),
			ExpireHours: jwtExpire,
		},
		SRS: SRSConfig{
			Host:     getEnv("SRS_SERVER", "localhost"),
			APIPort:  getEnvInt("SRS_API_PORT", 1985),
			RTMPPort: getEnvInt("SRS_RTMP_PORT", 1935),
			HTTPPort: getEnvInt("SRS_HTTP_PORT", 8088),
			Domain:   getEnv("SRS_DOMAIN", getEnv("SRS_SERVER", "localhost")),
		},
		Spectator: SpectatorConfig{
			CookieMaxAge: getEnvInt("SPECTATOR_COOKIE_MAX_AGE_SEC", 3600),
		},
	}
	return cfg, nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
