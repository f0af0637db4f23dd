// Package tlsutil builds crypto/tls configurations from security settings
package tlsutil

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"github.com/c360/agentwire/errors"
	"github.com/c360/agentwire/pkg/security"
)

// LoadClientTLSConfig creates a tls.Config for the WebSocket dialer.
// It starts from the system CA pool and adds cfg.CAFiles. When a client
// certificate is configured it is presented for mTLS.
func LoadClientTLSConfig(cfg security.ClientTLSConfig) (*tls.Config, error) {
	if problems := cfg.Problems(); len(problems) > 0 {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %s", errors.ErrInvalidConfig, problems[0]),
			"tlsutil", "LoadClientTLSConfig", "validate settings")
	}

	tlsConfig := &tls.Config{
		MinVersion: parseTLSVersion(cfg.MinVersion),
		ServerName: cfg.ServerName,
	}

	rootCAs, err := x509.SystemCertPool()
	if err != nil {
		rootCAs = x509.NewCertPool()
	}
	for _, caFile := range cfg.CAFiles {
		caPEM, err := os.ReadFile(caFile)
		if err != nil {
			return nil, errors.WrapFatal(err, "tlsutil", "LoadClientTLSConfig", fmt.Sprintf("read CA file %s", caFile))
		}
		if !rootCAs.AppendCertsFromPEM(caPEM) {
			return nil, errors.WrapFatal(
				fmt.Errorf("invalid PEM data"),
				"tlsutil", "LoadClientTLSConfig",
				fmt.Sprintf("parse CA certificate from %s", caFile))
		}
	}
	tlsConfig.RootCAs = rootCAs

	// Set only from explicit configuration
	if cfg.InsecureSkipVerify {
		tlsConfig.InsecureSkipVerify = true
	}

	if cfg.MTLS() {
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, errors.WrapFatal(err, "tlsutil", "LoadClientTLSConfig", "load client certificate")
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	return tlsConfig, nil
}

// parseTLSVersion returns tls.VersionTLS12 for anything but "1.3"
func parseTLSVersion(version string) uint16 {
	if version == "1.3" {
		return tls.VersionTLS13
	}
	return tls.VersionTLS12
}
