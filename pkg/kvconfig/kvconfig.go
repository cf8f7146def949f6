package kvconfig

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/flightctl/gitlab-auth/internal/config"
	"github.com/redis/go-redis/v9"
)

const (
	clientName   = "gitlab-auth"
	dialTimeout  = 5 * time.Second
	readTimeout  = 3 * time.Second
	writeTimeout = 3 * time.Second
)

// ConfigToRedisOptions builds go-redis options for the shared principal
// cache. TLS is enabled when a CA certificate is configured.
func ConfigToRedisOptions(cfg *config.RedisConfig) (*redis.Options, error) {
	if cfg == nil {
		return nil, errors.New("redis configuration is missing")
	}
	if cfg.Hostname == "" {
		return nil, errors.New("redis hostname is required")
	}

	options := &redis.Options{
		Addr:         net.JoinHostPort(cfg.Hostname, strconv.FormatUint(uint64(cfg.Port), 10)),
		ClientName:   clientName,
		Username:     cfg.Username,
		Password:     cfg.Password.Value(),
		DB:           cfg.DB,
		DialTimeout:  dialTimeout,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	if cfg.CaCertFile != "" {
		tlsConfig, err := loadTLSConfig(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to configure TLS for redis: %w", err)
		}
		options.TLSConfig = tlsConfig
	}

	return options, nil
}

func loadTLSConfig(cfg *config.RedisConfig) (*tls.Config, error) {
	caCert, err := os.ReadFile(cfg.CaCertFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA cert file: %w", err)
	}

	certPool := x509.NewCertPool()
	if ok := certPool.AppendCertsFromPEM(caCert); !ok {
		return nil, errors.New("failed to append CA cert")
	}

	tlsConfig := &tls.Config{
		RootCAs:    certPool,
		ServerName: cfg.Hostname,
		MinVersion: tls.VersionTLS12,
	}

	if cfg.CertFile != "" || cfg.KeyFile != "" {
		if cfg.CertFile == "" || cfg.KeyFile == "" {
			return nil, errors.New("client certificate and key must be configured together")
		}
		clientCert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read client cert/key: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{clientCert}
	}

	return tlsConfig, nil
}
