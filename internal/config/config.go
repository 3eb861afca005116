package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config содержит всю конфигурацию клиента
type Config struct {
	Console  ConsoleConfig
	Remote   RemoteConfig
	Storage  StorageConfig
	Database DatabaseConfig
	Session  SessionConfig
	Cache    CacheConfig
	Logging  LoggingConfig
}

// ConsoleConfig - настройки локального HTTP сервера консоли
type ConsoleConfig struct {
	Port           int
	Host           string
	AllowedOrigins []string // для WebSocket; пусто = dev режим (все origin)
}

// RemoteConfig - настройки подключения к удаленному сервису
type RemoteConfig struct {
	BaseURL string // аналог VITE_API_BASE

	ConnectTimeout time.Duration
	TotalTimeout   time.Duration // 0 = без общего таймаута, решает транспорт
	MaxIdleConns   int
}

// StorageConfig - долговременное хранилище клиента (токен)
type StorageConfig struct {
	Driver string // file, postgres, memory
	Dir    string // каталог для file драйвера
}

// DatabaseConfig - настройки подключения к БД для postgres драйвера хранилища
type DatabaseConfig struct {
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	SSLMode  string

	// Попытки первого подключения (ping) и пауза перед повтором
	ConnectAttempts int
	ConnectDelay    time.Duration
}

// SessionConfig - политика сессии
type SessionConfig struct {
	// AutoLogoutOnAuthRejection - очищать токен, если сервис отверг запрос с токеном (401/403).
	// По умолчанию выключено: исходное поведение сохраняет токен.
	AutoLogoutOnAuthRejection bool
}

// CacheConfig - настройки кэша запросов дашборда
type CacheConfig struct {
	TTL time.Duration
}

// LoggingConfig - настройки логирования
type LoggingConfig struct {
	Level  string
	Format string
	Output string
}

// Поддерживаемые драйверы хранилища
const (
	StorageDriverFile     = "file"
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

// Load загружает конфигурацию из переменных окружения
func Load() (*Config, error) {
	cfg := &Config{
		Console: ConsoleConfig{
			Port:           getEnvAsInt("CONSOLE_PORT", 5173),
			Host:           getEnv("CONSOLE_HOST", "127.0.0.1"),
			AllowedOrigins: getEnvAsList("ALLOWED_ORIGINS"),
		},
		Remote: RemoteConfig{
			BaseURL:        strings.TrimRight(getEnv("API_BASE", "http://127.0.0.1:8000"), "/"),
			ConnectTimeout: getEnvAsDuration("HTTP_CONNECT_TIMEOUT", 5*time.Second),
			TotalTimeout:   getEnvAsDuration("HTTP_TOTAL_TIMEOUT", 0),
			MaxIdleConns:   getEnvAsInt("HTTP_MAX_IDLE_CONNS", 10),
		},
		Storage: StorageConfig{
			Driver: strings.ToLower(getEnv("STORAGE_DRIVER", StorageDriverFile)),
			Dir:    getEnv("STORAGE_DIR", defaultStorageDir()),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			Name:     getEnv("DB_NAME", "tradeconsole"),
			User:     getEnv("DB_USER", "user"),
			Password: getEnv("DB_PASSWORD", "password"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),

			ConnectAttempts: getEnvAsInt("DB_CONNECT_ATTEMPTS", 3),
			ConnectDelay:    getEnvAsDuration("DB_CONNECT_DELAY", 500*time.Millisecond),
		},
		Session: SessionConfig{
			AutoLogoutOnAuthRejection: getEnvAsBool("AUTO_LOGOUT_ON_AUTH_REJECTION", false),
		},
		Cache: CacheConfig{
			TTL: getEnvAsDuration("QUERY_CACHE_TTL", 30*time.Second),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
			Output: getEnv("LOG_OUTPUT", ""),
		},
	}

	if err := cfg.validateRemote(); err != nil {
		return nil, err
	}

	if err := cfg.validateStorage(); err != nil {
		return nil, err
	}

	if err := cfg.validateRanges(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateRemote проверяет адрес удаленного сервиса
func (c *Config) validateRemote() error {
	u, err := url.Parse(c.Remote.BaseURL)
	if err != nil {
		return fmt.Errorf("API_BASE is not a valid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("API_BASE must use http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("API_BASE must include a host")
	}
	return nil
}

// validateStorage проверяет драйвер хранилища
func (c *Config) validateStorage() error {
	switch c.Storage.Driver {
	case StorageDriverFile:
		if c.Storage.Dir == "" {
			return fmt.Errorf("STORAGE_DIR is required for the file storage driver")
		}
	case StorageDriverPostgres, StorageDriverMemory:
	default:
		return fmt.Errorf("unsupported STORAGE_DRIVER %q", c.Storage.Driver)
	}
	return nil
}

// validateRanges проверяет числовые диапазоны параметров
func (c *Config) validateRanges() error {
	if c.Console.Port < 1 || c.Console.Port > 65535 {
		return fmt.Errorf("CONSOLE_PORT must be between 1 and 65535, got %d", c.Console.Port)
	}

	if c.Storage.Driver == StorageDriverPostgres && (c.Database.Port < 1 || c.Database.Port > 65535) {
		return fmt.Errorf("DB_PORT must be between 1 and 65535, got %d", c.Database.Port)
	}

	if c.Remote.ConnectTimeout <= 0 {
		return fmt.Errorf("HTTP_CONNECT_TIMEOUT must be positive, got %v", c.Remote.ConnectTimeout)
	}

	if c.Remote.TotalTimeout < 0 {
		return fmt.Errorf("HTTP_TOTAL_TIMEOUT cannot be negative, got %v", c.Remote.TotalTimeout)
	}

	if c.Remote.MaxIdleConns < 0 {
		return fmt.Errorf("HTTP_MAX_IDLE_CONNS cannot be negative, got %d", c.Remote.MaxIdleConns)
	}

	if c.Database.ConnectAttempts < 0 {
		return fmt.Errorf("DB_CONNECT_ATTEMPTS cannot be negative, got %d", c.Database.ConnectAttempts)
	}

	if c.Cache.TTL < 0 {
		return fmt.Errorf("QUERY_CACHE_TTL cannot be negative, got %v", c.Cache.TTL)
	}

	return nil
}

// Addr возвращает адрес для http.Server
func (c ConsoleConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DSN возвращает строку подключения к базе данных
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// DSNWithoutPassword возвращает строку подключения без пароля (для логирования)
func (d DatabaseConfig) DSNWithoutPassword() string {
	return fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Name, d.SSLMode)
}

// defaultStorageDir - ~/.tradeconsole, либо ./.tradeconsole если домашний каталог неизвестен
func defaultStorageDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".tradeconsole"
	}
	return filepath.Join(home, ".tradeconsole")
}

// Вспомогательные функции для чтения переменных окружения

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList читает список через запятую; "*" или пусто = nil
func getEnvAsList(key string) []string {
	valueStr := strings.TrimSpace(os.Getenv(key))
	if valueStr == "" || valueStr == "*" {
		return nil
	}
	var result []string
	for _, item := range strings.Split(valueStr, ",") {
		if item = strings.TrimSpace(item); item != "" {
			result = append(result, item)
		}
	}
	return result
}
