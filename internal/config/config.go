package config

import (
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	App      AppConfig
	Cache    CacheConfig
	Storage  StorageConfig
	Drive    DriveConfig
	Jobs     JobsConfig
}

type ServerConfig struct {
	Port           string
	Mode           string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
}

type DatabaseConfig struct {
	URL             string
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxConcurrentTx int
}

// DSN returns URL when set, otherwise a key/value connection string.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

type AppConfig struct {
	UploadDir     string
	LogLevel      string
	ImportWorkers int
	ImportArchive bool
}

type CacheConfig struct {
	Enabled                  bool
	RedisURL                 string
	RedisHost                string
	RedisPort                string
	RedisPassword            string
	RedisDB                  int
	RecommendationTTLSeconds int
}

// StorageConfig points at an S3-compatible bucket holding import sources.
type StorageConfig struct {
	Enabled   bool
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

type DriveConfig struct {
	CredentialsJSON string
	FolderID        string
}

type JobsConfig struct {
	RedisAddr    string
	SnapshotCron string
	AlertsCron   string
	Concurrency  int
}

var (
	once     sync.Once
	instance *Config
)

// Load reads .env and the process environment once per process.
func Load() *Config {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()

		v := viper.New()
		v.AutomaticEnv()
		instance = Read(v)

		ensureDir(instance.App.UploadDir)
	})

	return instance
}

// SetDefaults registers the default for every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("SERVER_MODE", "debug")
	v.SetDefault("SERVER_READ_TIMEOUT", 30)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 30)
	v.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "inventory")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("DB_MAX_CONCURRENT_TX", 10)
	v.SetDefault("APP_UPLOAD_DIR", "./data/uploads")
	v.SetDefault("APP_LOG_LEVEL", "info")
	v.SetDefault("IMPORT_WORKERS", 1)
	v.SetDefault("IMPORT_ARCHIVE", false)
	v.SetDefault("CACHE_ENABLED", false)
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("REDIS_HOST", "127.0.0.1")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("CACHE_RECOMMENDATION_TTL_SECONDS", 300)
	v.SetDefault("STORAGE_ENABLED", false)
	v.SetDefault("STORAGE_ENDPOINT", "")
	v.SetDefault("STORAGE_ACCESS_KEY", "")
	v.SetDefault("STORAGE_SECRET_KEY", "")
	v.SetDefault("STORAGE_BUCKET", "inventory-imports")
	v.SetDefault("STORAGE_REGION", "us-east-1")
	v.SetDefault("STORAGE_USE_SSL", true)
	v.SetDefault("GOOGLE_DRIVE_CREDENTIALS_JSON", "")
	v.SetDefault("GOOGLE_DRIVE_FOLDER_ID", "")
	v.SetDefault("JOBS_REDIS_ADDR", "127.0.0.1:6379")
	v.SetDefault("JOBS_SNAPSHOT_CRON", "5 0 * * *")
	v.SetDefault("JOBS_ALERTS_CRON", "0 * * * *")
	v.SetDefault("JOBS_CONCURRENCY", 5)
}

// Read builds a Config from v after applying defaults.
func Read(v *viper.Viper) *Config {
	SetDefaults(v)

	return &Config{
		Server: ServerConfig{
			Port:           v.GetString("SERVER_PORT"),
			Mode:           v.GetString("SERVER_MODE"),
			ReadTimeout:    v.GetInt("SERVER_READ_TIMEOUT"),
			WriteTimeout:   v.GetInt("SERVER_WRITE_TIMEOUT"),
			AllowedOrigins: v.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
		},
		Database: DatabaseConfig{
			URL:             v.GetString("DATABASE_URL"),
			Host:            v.GetString("DB_HOST"),
			Port:            v.GetString("DB_PORT"),
			User:            v.GetString("DB_USER"),
			Password:        v.GetString("DB_PASSWORD"),
			DBName:          v.GetString("DB_NAME"),
			SSLMode:         v.GetString("DB_SSLMODE"),
			MaxConcurrentTx: v.GetInt("DB_MAX_CONCURRENT_TX"),
		},
		App: AppConfig{
			UploadDir:     v.GetString("APP_UPLOAD_DIR"),
			LogLevel:      v.GetString("APP_LOG_LEVEL"),
			ImportWorkers: v.GetInt("IMPORT_WORKERS"),
			ImportArchive: v.GetBool("IMPORT_ARCHIVE"),
		},
		Cache: CacheConfig{
			Enabled:                  v.GetBool("CACHE_ENABLED"),
			RedisURL:                 v.GetString("REDIS_URL"),
			RedisHost:                v.GetString("REDIS_HOST"),
			RedisPort:                v.GetString("REDIS_PORT"),
			RedisPassword:            v.GetString("REDIS_PASSWORD"),
			RedisDB:                  v.GetInt("REDIS_DB"),
			RecommendationTTLSeconds: v.GetInt("CACHE_RECOMMENDATION_TTL_SECONDS"),
		},
		Storage: StorageConfig{
			Enabled:   v.GetBool("STORAGE_ENABLED"),
			Endpoint:  v.GetString("STORAGE_ENDPOINT"),
			AccessKey: v.GetString("STORAGE_ACCESS_KEY"),
			SecretKey: v.GetString("STORAGE_SECRET_KEY"),
			Bucket:    v.GetString("STORAGE_BUCKET"),
			Region:    v.GetString("STORAGE_REGION"),
			UseSSL:    v.GetBool("STORAGE_USE_SSL"),
		},
		Drive: DriveConfig{
			CredentialsJSON: v.GetString("GOOGLE_DRIVE_CREDENTIALS_JSON"),
			FolderID:        v.GetString("GOOGLE_DRIVE_FOLDER_ID"),
		},
		Jobs: JobsConfig{
			RedisAddr:    v.GetString("JOBS_REDIS_ADDR"),
			SnapshotCron: v.GetString("JOBS_SNAPSHOT_CRON"),
			AlertsCron:   v.GetString("JOBS_ALERTS_CRON"),
			Concurrency:  v.GetInt("JOBS_CONCURRENCY"),
		},
	}
}

func ensureDir(dir string) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("Failed to create directory %s: %v", dir, err)
		}
	}
}
