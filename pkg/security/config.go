// Package security holds the TLS settings for outbound wss:// connections
package security

import (
	"fmt"
	"strings"
)

// ClientTLSConfig configures TLS for the WebSocket dial. The system CA bundle
// is always trusted; CAFiles are added to it.
type ClientTLSConfig struct {
	CAFiles            []string `json:"ca_files,omitempty" yaml:"ca_files,omitempty"`
	InsecureSkipVerify bool     `json:"insecure_skip_verify,omitempty" yaml:"insecure_skip_verify,omitempty"` // dev/test only
	MinVersion         string   `json:"min_version,omitempty" yaml:"min_version,omitempty"`                   // "1.2" or "1.3"
	ServerName         string   `json:"server_name,omitempty" yaml:"server_name,omitempty"`

	// Client certificate for mTLS; both or neither
	CertFile string `json:"cert_file,omitempty" yaml:"cert_file,omitempty"`
	KeyFile  string `json:"key_file,omitempty" yaml:"key_file,omitempty"`
}

// IsZero reports whether nothing is configured, in which case the dialer's
// default TLS settings apply
func (c ClientTLSConfig) IsZero() bool {
	return len(c.CAFiles) == 0 && !c.InsecureSkipVerify && c.MinVersion == "" &&
		c.ServerName == "" && c.CertFile == "" && c.KeyFile == ""
}

// MTLS reports whether a client certificate is configured
func (c ClientTLSConfig) MTLS() bool {
	return c.CertFile != "" || c.KeyFile != ""
}

// Problems lists every inconsistency in the settings
func (c ClientTLSConfig) Problems() []string {
	var problems []string
	switch c.MinVersion {
	case "", "1.2", "1.3":
	default:
		problems = append(problems, fmt.Sprintf("tls.min_version must be 1.2 or 1.3, got %q", c.MinVersion))
	}
	if (c.CertFile == "") != (c.KeyFile == "") {
		problems = append(problems, "tls.cert_file and tls.key_file must be set together")
	}
	for _, f := range c.CAFiles {
		if strings.TrimSpace(f) == "" {
			problems = append(problems, "tls.ca_files contains an empty path")
			break
		}
	}
	return problems
}
