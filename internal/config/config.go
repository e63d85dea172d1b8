// backend-go/internal/config/config.go
package config

import (
	"strconv"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Cache    CacheConfig
	CRM      CRMConfig
	Sync     SyncConfig
	Archive  ArchiveConfig
	Log      LogConfig
}

type ServerConfig struct {
	Port           string
	Mode           string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
}

type DatabaseConfig struct {
	URL      string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type CacheConfig struct {
	Enabled          bool
	Backend          string
	RedisURL         string
	RedisHost        string
	RedisPort        string
	RedisPassword    string
	RedisDB          int
	ReportTTLSeconds int
}

// CRMConfig describes the upstream shipment CRM. Username and Password have no
// defaults on purpose: blank means the integration is not configured.
type CRMConfig struct {
	BaseURL  string
	Username string
	Password string
	MaxPages int
}

type SyncConfig struct {
	DefaultFilterTypes []int
	DefaultWindowDays  int
	ChunkSize          int
	KeepUnidentified   bool
	Timezone           string
}

type ArchiveConfig struct {
	Enabled   bool
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type LogConfig struct {
	Level  string
	Format string
}

const DefaultCRMBaseURL = "https://crm.tuushin.mn/api"

var (
	once     sync.Once
	instance *Config
)

func Load() *Config {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()

		viper.SetDefault("SERVER_PORT", "8080")
		viper.SetDefault("SERVER_MODE", "debug")
		viper.SetDefault("SERVER_READ_TIMEOUT", 30)
		viper.SetDefault("SERVER_WRITE_TIMEOUT", 300)
		viper.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})
		viper.SetDefault("DATABASE_URL", "")
		viper.SetDefault("DB_HOST", "localhost")
		viper.SetDefault("DB_PORT", "5432")
		viper.SetDefault("DB_USER", "postgres")
		viper.SetDefault("DB_PASSWORD", "postgres")
		viper.SetDefault("DB_NAME", "crmsync")
		viper.SetDefault("DB_SSLMODE", "disable")
		viper.SetDefault("CACHE_ENABLED", false)
		viper.SetDefault("CACHE_BACKEND", "redis")
		viper.SetDefault("REDIS_URL", "")
		viper.SetDefault("REDIS_HOST", "127.0.0.1")
		viper.SetDefault("REDIS_PORT", "6379")
		viper.SetDefault("REDIS_PASSWORD", "")
		viper.SetDefault("REDIS_DB", 0)
		viper.SetDefault("CACHE_REPORT_TTL_SECONDS", 60)
		viper.SetDefault("CRM_BASE_URL", DefaultCRMBaseURL)
		viper.SetDefault("CRM_MAX_PAGES", 1000)
		viper.SetDefault("SYNC_DEFAULT_FILTER_TYPES", "1,2")
		viper.SetDefault("SYNC_DEFAULT_WINDOW_DAYS", 30)
		viper.SetDefault("SYNC_CHUNK_SIZE", 25)
		viper.SetDefault("SYNC_KEEP_UNIDENTIFIED", false)
		viper.SetDefault("SYNC_TIMEZONE", "Asia/Ulaanbaatar")
		viper.SetDefault("ARCHIVE_ENABLED", false)
		viper.SetDefault("ARCHIVE_USE_SSL", true)
		viper.SetDefault("LOG_LEVEL", "")
		viper.SetDefault("LOG_FORMAT", "console")

		// Read from environment variables
		viper.AutomaticEnv()

		instance = &Config{
			Server: ServerConfig{
				Port:           viper.GetString("SERVER_PORT"),
				Mode:           viper.GetString("SERVER_MODE"),
				ReadTimeout:    viper.GetInt("SERVER_READ_TIMEOUT"),
				WriteTimeout:   viper.GetInt("SERVER_WRITE_TIMEOUT"),
				AllowedOrigins: viper.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
			},
			Database: DatabaseConfig{
				URL:      viper.GetString("DATABASE_URL"),
				Host:     viper.GetString("DB_HOST"),
				Port:     viper.GetString("DB_PORT"),
				User:     viper.GetString("DB_USER"),
				Password: viper.GetString("DB_PASSWORD"),
				DBName:   viper.GetString("DB_NAME"),
				SSLMode:  viper.GetString("DB_SSLMODE"),
			},
			Cache: CacheConfig{
				Enabled:          viper.GetBool("CACHE_ENABLED"),
				Backend:          strings.ToLower(viper.GetString("CACHE_BACKEND")),
				RedisURL:         viper.GetString("REDIS_URL"),
				RedisHost:        viper.GetString("REDIS_HOST"),
				RedisPort:        viper.GetString("REDIS_PORT"),
				RedisPassword:    viper.GetString("REDIS_PASSWORD"),
				RedisDB:          viper.GetInt("REDIS_DB"),
				ReportTTLSeconds: viper.GetInt("CACHE_REPORT_TTL_SECONDS"),
			},
			CRM: CRMConfig{
				BaseURL:  viper.GetString("CRM_BASE_URL"),
				Username: strings.TrimSpace(viper.GetString("CRM_USERNAME")),
				Password: strings.TrimSpace(viper.GetString("CRM_PASSWORD")),
				MaxPages: viper.GetInt("CRM_MAX_PAGES"),
			},
			Sync: SyncConfig{
				DefaultFilterTypes: ParseIntList(viper.GetString("SYNC_DEFAULT_FILTER_TYPES")),
				DefaultWindowDays:  viper.GetInt("SYNC_DEFAULT_WINDOW_DAYS"),
				ChunkSize:          viper.GetInt("SYNC_CHUNK_SIZE"),
				KeepUnidentified:   viper.GetBool("SYNC_KEEP_UNIDENTIFIED"),
				Timezone:           viper.GetString("SYNC_TIMEZONE"),
			},
			Archive: ArchiveConfig{
				Enabled:   viper.GetBool("ARCHIVE_ENABLED"),
				Endpoint:  viper.GetString("ARCHIVE_ENDPOINT"),
				AccessKey: viper.GetString("ARCHIVE_ACCESS_KEY"),
				SecretKey: viper.GetString("ARCHIVE_SECRET_KEY"),
				Bucket:    viper.GetString("ARCHIVE_BUCKET"),
				UseSSL:    viper.GetBool("ARCHIVE_USE_SSL"),
			},
			Log: LogConfig{
				Level:  viper.GetString("LOG_LEVEL"),
				Format: viper.GetString("LOG_FORMAT"),
			},
		}
	})

	return instance
}

// ParseIntList parses "1, 2,3" into []int, silently dropping tokens that are not integers.
func ParseIntList(value string) []int {
	parts := strings.Split(value, ",")
	result := make([]int, 0, len(parts))
	for _, part := range parts {
		if n, err := strconv.Atoi(strings.TrimSpace(part)); err == nil {
			result = append(result, n)
		}
	}
	return result
}

// HasCredentials reports whether both basic auth values are present.
func (c CRMConfig) HasCredentials() bool {
	return c.Username != "" && c.Password != ""
}
