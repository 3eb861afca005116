package config

import (
	"fmt"
	"strings"

	"tradeconsole/pkg/crypto"
)

// StubConfig - конфигурация локальной заглушки удаленного сервиса
type StubConfig struct {
	Addr       string
	ValidKeys  map[string]string // apiKey → apiSecret
	SeedUser   string
	SeedPass   string
	BcryptCost int

	// EncryptionKey шифрует сохраненные API secret; пусто = случайный ключ на запуск
	EncryptionKey []byte

	// Ограничение попыток входа на имя пользователя; 0 = без ограничения
	LoginRatePerMinute int
	LoginBurst         int

	Logging LoggingConfig
}

// LoadStub загружает конфигурацию заглушки из переменных окружения
//
//	STUB_ADDR=127.0.0.1:8000
//	STUB_VALID_KEYS=key1:secret1,key2:secret2
//	STUB_SEED_USER=demo:demo
//	STUB_ENCRYPTION_KEY=<base64 32 bytes>
//	STUB_LOGIN_RATE_PER_MIN=20
func LoadStub() (*StubConfig, error) {
	cfg := &StubConfig{
		Addr:               getEnv("STUB_ADDR", "127.0.0.1:8000"),
		ValidKeys:          make(map[string]string),
		BcryptCost:         getEnvAsInt("STUB_BCRYPT_COST", 10),
		LoginRatePerMinute: getEnvAsInt("STUB_LOGIN_RATE_PER_MIN", 20),
		LoginBurst:         getEnvAsInt("STUB_LOGIN_BURST", 5),
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
			Output: getEnv("LOG_OUTPUT", ""),
		},
	}

	for _, pair := range getEnvAsList("STUB_VALID_KEYS") {
		key, secret, ok := strings.Cut(pair, ":")
		if !ok || key == "" || secret == "" {
			return nil, fmt.Errorf("STUB_VALID_KEYS entry must be key:secret, got %q", pair)
		}
		cfg.ValidKeys[key] = secret
	}

	if seed := getEnv("STUB_SEED_USER", ""); seed != "" {
		user, pass, ok := strings.Cut(seed, ":")
		if !ok || user == "" || pass == "" {
			return nil, fmt.Errorf("STUB_SEED_USER must be username:password")
		}
		cfg.SeedUser, cfg.SeedPass = user, pass
	}

	if raw := getEnv("STUB_ENCRYPTION_KEY", ""); raw != "" {
		key, err := crypto.ParseKey(raw)
		if err != nil {
			return nil, fmt.Errorf("STUB_ENCRYPTION_KEY: %w", err)
		}
		cfg.EncryptionKey = key
	}

	if cfg.LoginRatePerMinute < 0 || cfg.LoginBurst < 0 {
		return nil, fmt.Errorf("STUB_LOGIN_RATE_PER_MIN and STUB_LOGIN_BURST cannot be negative")
	}

	return cfg, nil
}
