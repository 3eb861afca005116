package gateway

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"time"

	"tradeconsole/internal/config"
)

// TransportConfig содержит настройки HTTP транспорта к удаленному сервису
//
// Собственной политики таймаутов у gateway нет: все ограничения задаются здесь.
type TransportConfig struct {
	ConnectTimeout time.Duration // таймаут установки TCP соединения (default: 5s)
	TotalTimeout   time.Duration // общий таймаут запроса, 0 = без ограничения

	MaxIdleConns        int           // максимум idle соединений (default: 10)
	MaxIdleConnsPerHost int           // максимум idle соединений на хост (default: 4)
	IdleConnTimeout     time.Duration // таймаут простоя соединения (default: 90s)

	TLSHandshakeTimeout time.Duration // таймаут TLS handshake (default: 5s)
	KeepAliveInterval   time.Duration // интервал Keep-Alive (default: 30s)
}

// DefaultTransportConfig возвращает конфигурацию по умолчанию
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		ConnectTimeout:      5 * time.Second,
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
		KeepAliveInterval:   30 * time.Second,
	}
}

// TransportConfigFrom переносит настройки из конфигурации клиента
func TransportConfigFrom(cfg config.RemoteConfig) TransportConfig {
	tc := DefaultTransportConfig()
	if cfg.ConnectTimeout > 0 {
		tc.ConnectTimeout = cfg.ConnectTimeout
	}
	tc.TotalTimeout = cfg.TotalTimeout
	if cfg.MaxIdleConns > 0 {
		tc.MaxIdleConns = cfg.MaxIdleConns
		if tc.MaxIdleConnsPerHost > cfg.MaxIdleConns {
			tc.MaxIdleConnsPerHost = cfg.MaxIdleConns
		}
	}
	return tc
}

// NewHTTPClient создаёт http.Client с connection pooling и таймаутами
func NewHTTPClient(tc TransportConfig) *http.Client {
	dialer := &net.Dialer{
		Timeout:   tc.ConnectTimeout,
		KeepAlive: tc.KeepAliveInterval,
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		// Deadline контекста короче таймаута соединения - уважаем его
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			if deadline, ok := ctx.Deadline(); ok {
				if timeout := time.Until(deadline); timeout < tc.ConnectTimeout {
					d := &net.Dialer{Timeout: timeout, KeepAlive: tc.KeepAliveInterval}
					return d.DialContext(ctx, network, addr)
				}
			}
			return dialer.DialContext(ctx, network, addr)
		},

		MaxIdleConns:        tc.MaxIdleConns,
		MaxIdleConnsPerHost: tc.MaxIdleConnsPerHost,
		IdleConnTimeout:     tc.IdleConnTimeout,

		TLSHandshakeTimeout: tc.TLSHandshakeTimeout,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},

		ForceAttemptHTTP2:     true,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   tc.TotalTimeout,
	}
}
