package kvconfig

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/flightctl/gitlab-auth/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeSelfSignedCert writes a throwaway certificate and key into dir.
func writeSelfSignedCert(t *testing.T, dir string) (string, string) {
	t.Helper()
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	template := x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "redis-test"},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &privateKey.PublicKey, privateKey)
	require.NoError(t, err)
	keyDER, err := x509.MarshalECPrivateKey(privateKey)
	require.NoError(t, err)

	certFile := filepath.Join(dir, "tls.crt")
	keyFile := filepath.Join(dir, "tls.key")
	require.NoError(t, os.WriteFile(certFile, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER}), 0o600))
	require.NoError(t, os.WriteFile(keyFile, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0o600))
	return certFile, keyFile
}

func TestConfigToRedisOptions(t *testing.T) {
	cfg := &config.RedisConfig{
		Hostname: "redis.internal",
		Port:     6380,
		Username: "auth",
		Password: "s3cret",
		DB:       2,
	}

	options, err := ConfigToRedisOptions(cfg)
	require.NoError(t, err)
	assert.Equal(t, "redis.internal:6380", options.Addr)
	assert.Equal(t, "auth", options.Username)
	assert.Equal(t, "s3cret", options.Password)
	assert.Equal(t, 2, options.DB)
	assert.Nil(t, options.TLSConfig)
}

func TestConfigToRedisOptionsErrors(t *testing.T) {
	_, err := ConfigToRedisOptions(nil)
	assert.Error(t, err)

	_, err = ConfigToRedisOptions(&config.RedisConfig{Port: 6379})
	assert.Error(t, err)

	_, err = ConfigToRedisOptions(&config.RedisConfig{Hostname: "redis", Port: 6379, CaCertFile: filepath.Join(t.TempDir(), "missing.crt")})
	assert.ErrorContains(t, err, "failed to configure TLS")
}

func TestConfigToRedisOptionsTLS(t *testing.T) {
	dir := t.TempDir()
	certFile, keyFile := writeSelfSignedCert(t, dir)

	options, err := ConfigToRedisOptions(&config.RedisConfig{
		Hostname:   "redis.internal",
		Port:       6379,
		CaCertFile: certFile,
		CertFile:   certFile,
		KeyFile:    keyFile,
	})
	require.NoError(t, err)
	require.NotNil(t, options.TLSConfig)
	assert.Equal(t, "redis.internal", options.TLSConfig.ServerName)
	assert.Len(t, options.TLSConfig.Certificates, 1)

	_, err = ConfigToRedisOptions(&config.RedisConfig{
		Hostname:   "redis.internal",
		Port:       6379,
		CaCertFile: certFile,
		CertFile:   certFile,
	})
	assert.ErrorContains(t, err, "together")
}
