package tlsutil

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/agentwire/errors"
	"github.com/c360/agentwire/pkg/security"
)

// generateTestCert creates a self-signed certificate with the given CN
func generateTestCert(t *testing.T, cn string, usage x509.ExtKeyUsage) (certPEM, keyPEM []byte) {
	t.Helper()

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	template := x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject: pkix.Name{
			Organization: []string{"Test Org"},
			CommonName:   cn,
		},
		NotBefore:             time.Now().Add(-time.Minute),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{usage},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &privateKey.PublicKey, privateKey)
	require.NoError(t, err)

	certPEM = pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})
	keyPEM = pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(privateKey)})
	return certPEM, keyPEM
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestLoadClientTLSConfig(t *testing.T) {
	dir := t.TempDir()
	certPEM, keyPEM := generateTestCert(t, "test-client", x509.ExtKeyUsageClientAuth)
	caFile := writeFile(t, dir, "ca.pem", certPEM)
	certFile := writeFile(t, dir, "cert.pem", certPEM)
	keyFile := writeFile(t, dir, "key.pem", keyPEM)
	garbage := writeFile(t, dir, "garbage.pem", []byte("not a certificate"))

	tests := []struct {
		name      string
		cfg       security.ClientTLSConfig
		wantClass func(error) bool
		checkFn   func(*testing.T, *tls.Config)
	}{
		{
			name: "defaults",
			cfg:  security.ClientTLSConfig{},
			checkFn: func(t *testing.T, c *tls.Config) {
				assert.NotNil(t, c.RootCAs)
				assert.Equal(t, uint16(tls.VersionTLS12), c.MinVersion)
				assert.False(t, c.InsecureSkipVerify)
				assert.Empty(t, c.Certificates)
			},
		},
		{
			name: "additional CA files",
			cfg:  security.ClientTLSConfig{CAFiles: []string{caFile, caFile}},
			checkFn: func(t *testing.T, c *tls.Config) {
				assert.NotNil(t, c.RootCAs)
			},
		},
		{
			name: "TLS 1.3 and server name",
			cfg:  security.ClientTLSConfig{MinVersion: "1.3", ServerName: "agents.internal"},
			checkFn: func(t *testing.T, c *tls.Config) {
				assert.Equal(t, uint16(tls.VersionTLS13), c.MinVersion)
				assert.Equal(t, "agents.internal", c.ServerName)
			},
		},
		{
			name: "insecure skip verify",
			cfg:  security.ClientTLSConfig{InsecureSkipVerify: true},
			checkFn: func(t *testing.T, c *tls.Config) {
				assert.True(t, c.InsecureSkipVerify)
			},
		},
		{
			name: "client certificate",
			cfg:  security.ClientTLSConfig{CertFile: certFile, KeyFile: keyFile},
			checkFn: func(t *testing.T, c *tls.Config) {
				assert.Len(t, c.Certificates, 1)
			},
		},
		{
			name:      "missing CA file",
			cfg:       security.ClientTLSConfig{CAFiles: []string{"/nonexistent/ca.pem"}},
			wantClass: errors.IsFatal,
		},
		{
			name:      "CA file without PEM",
			cfg:       security.ClientTLSConfig{CAFiles: []string{garbage}},
			wantClass: errors.IsFatal,
		},
		{
			name:      "missing key file",
			cfg:       security.ClientTLSConfig{CertFile: certFile, KeyFile: "/nonexistent/key.pem"},
			wantClass: errors.IsFatal,
		},
		{
			name:      "cert without key",
			cfg:       security.ClientTLSConfig{CertFile: certFile},
			wantClass: errors.IsInvalid,
		},
		{
			name:      "unsupported version",
			cfg:       security.ClientTLSConfig{MinVersion: "1.1"},
			wantClass: errors.IsInvalid,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := LoadClientTLSConfig(tt.cfg)
			if tt.wantClass != nil {
				require.Error(t, err)
				assert.True(t, tt.wantClass(err), "unexpected class for %v", err)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, got)
			tt.checkFn(t, got)
		})
	}
}

func TestParseTLSVersion(t *testing.T) {
	assert.Equal(t, uint16(tls.VersionTLS13), parseTLSVersion("1.3"))
	assert.Equal(t, uint16(tls.VersionTLS12), parseTLSVersion("1.2"))
	assert.Equal(t, uint16(tls.VersionTLS12), parseTLSVersion(""))
	assert.Equal(t, uint16(tls.VersionTLS12), parseTLSVersion("1.1"))
}

func newWSSServer(t *testing.T, configure func(*tls.Config)) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	server := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_ = conn.Close()
	}))
	server.TLS = &tls.Config{}
	if configure != nil {
		configure(server.TLS)
	}
	server.StartTLS()
	t.Cleanup(server.Close)
	return server
}

func wssURL(server *httptest.Server) string {
	return "wss" + strings.TrimPrefix(server.URL, "https")
}

func dial(tlsConfig *tls.Config, url string) error {
	dialer := websocket.Dialer{TLSClientConfig: tlsConfig, HandshakeTimeout: 5 * time.Second}
	conn, _, err := dialer.Dial(url, nil)
	if err == nil {
		_ = conn.Close()
	}
	return err
}

func TestHandshake_TrustsConfiguredCA(t *testing.T) {
	server := newWSSServer(t, nil)
	caFile := writeFile(t, t.TempDir(), "server-ca.pem",
		pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: server.Certificate().Raw}))

	untrusted, err := LoadClientTLSConfig(security.ClientTLSConfig{})
	require.NoError(t, err)
	assert.Error(t, dial(untrusted, wssURL(server)), "self-signed server must not be trusted by default")

	trusted, err := LoadClientTLSConfig(security.ClientTLSConfig{CAFiles: []string{caFile}})
	require.NoError(t, err)
	assert.NoError(t, dial(trusted, wssURL(server)))
}

func TestHandshake_MutualTLS(t *testing.T) {
	dir := t.TempDir()
	clientCertPEM, clientKeyPEM := generateTestCert(t, "agentwire", x509.ExtKeyUsageClientAuth)
	certFile := writeFile(t, dir, "client-cert.pem", clientCertPEM)
	keyFile := writeFile(t, dir, "client-key.pem", clientKeyPEM)

	clientCAs := x509.NewCertPool()
	require.True(t, clientCAs.AppendCertsFromPEM(clientCertPEM))
	server := newWSSServer(t, func(c *tls.Config) {
		c.ClientCAs = clientCAs
		c.ClientAuth = tls.RequireAndVerifyClientCert
	})

	withoutCert, err := LoadClientTLSConfig(security.ClientTLSConfig{InsecureSkipVerify: true})
	require.NoError(t, err)
	assert.Error(t, dial(withoutCert, wssURL(server)))

	withCert, err := LoadClientTLSConfig(security.ClientTLSConfig{
		InsecureSkipVerify: true,
		CertFile:           certFile,
		KeyFile:            keyFile,
	})
	require.NoError(t, err)
	assert.NoError(t, dial(withCert, wssURL(server)))
}
