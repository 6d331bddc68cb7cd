// Package tlsutil builds crypto/tls configurations for the NATS client and
// the metrics server from file-based settings.
package tlsutil

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"github.com/raceant/scull/errors"
)

// ClientConfig describes the TLS settings of an outgoing connection.
// The system CA bundle is always trusted; CAFiles are added to it.
type ClientConfig struct {
	Enabled            bool     `json:"enabled"`
	CAFiles            []string `json:"ca_files,omitempty"`
	CertFile           string   `json:"cert_file,omitempty"` // client certificate for mTLS
	KeyFile            string   `json:"key_file,omitempty"`
	InsecureSkipVerify bool     `json:"insecure_skip_verify,omitempty"` // DEV/TEST ONLY
	MinVersion         string   `json:"min_version,omitempty"`          // "1.2" or "1.3"
}

// ServerConfig describes the TLS settings of a listener.
type ServerConfig struct {
	Enabled    bool   `json:"enabled"`
	CertFile   string `json:"cert_file,omitempty"`
	KeyFile    string `json:"key_file,omitempty"`
	MinVersion string `json:"min_version,omitempty"`

	// ClientCAFiles turns on client certificate verification.
	ClientCAFiles     []string `json:"client_ca_files,omitempty"`
	RequireClientCert bool     `json:"require_client_cert,omitempty"`
}

// Clone returns a copy that shares no slices with c.
func (c ClientConfig) Clone() ClientConfig {
	c.CAFiles = append([]string(nil), c.CAFiles...)
	return c
}

// Clone returns a copy that shares no slices with c.
func (c ServerConfig) Clone() ServerConfig {
	c.ClientCAFiles = append([]string(nil), c.ClientCAFiles...)
	return c
}

// Validate checks that the referenced files are named consistently.
func (c ClientConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if (c.CertFile == "") != (c.KeyFile == "") {
		return invalid("client certificate needs both cert_file and key_file")
	}
	return validateVersion(c.MinVersion)
}

// Validate checks that the referenced files are named consistently.
func (c ServerConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.CertFile == "" || c.KeyFile == "" {
		return invalid("server TLS needs cert_file and key_file")
	}
	if c.RequireClientCert && len(c.ClientCAFiles) == 0 {
		return invalid("require_client_cert without client_ca_files")
	}
	return validateVersion(c.MinVersion)
}

// LoadClientConfig returns nil when TLS is disabled.
func LoadClientConfig(cfg ClientConfig) (*tls.Config, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	rootCAs, err := x509.SystemCertPool()
	if err != nil {
		rootCAs = x509.NewCertPool()
	}
	if err := appendCAFiles(rootCAs, cfg.CAFiles, "LoadClientConfig"); err != nil {
		return nil, err
	}

	tlsConfig := &tls.Config{
		RootCAs:            rootCAs,
		MinVersion:         parseTLSVersion(cfg.MinVersion),
		InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec // operator opt-in
	}

	if cfg.CertFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, errors.WrapFatal(err, "tlsutil", "LoadClientConfig", "load client certificate")
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}
	return tlsConfig, nil
}

// LoadServerConfig returns nil when TLS is disabled.
func LoadServerConfig(cfg ServerConfig) (*tls.Config, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, errors.WrapFatal(err, "tlsutil", "LoadServerConfig", "load certificate")
	}

	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   parseTLSVersion(cfg.MinVersion),
	}

	if len(cfg.ClientCAFiles) > 0 {
		clientCAs := x509.NewCertPool()
		if err := appendCAFiles(clientCAs, cfg.ClientCAFiles, "LoadServerConfig"); err != nil {
			return nil, err
		}
		tlsConfig.ClientCAs = clientCAs
		tlsConfig.ClientAuth = tls.VerifyClientCertIfGiven
		if cfg.RequireClientCert {
			tlsConfig.ClientAuth = tls.RequireAndVerifyClientCert
		}
	}
	return tlsConfig, nil
}

func appendCAFiles(pool *x509.CertPool, files []string, method string) error {
	for _, caFile := range files {
		caPEM, err := os.ReadFile(caFile)
		if err != nil {
			return errors.WrapFatal(err, "tlsutil", method, fmt.Sprintf("read CA file %s", caFile))
		}
		if !pool.AppendCertsFromPEM(caPEM) {
			return errors.WrapFatal(fmt.Errorf("invalid PEM data"),
				"tlsutil", method, fmt.Sprintf("parse CA certificate from %s", caFile))
		}
	}
	return nil
}

// parseTLSVersion defaults to TLS 1.2.
func parseTLSVersion(version string) uint16 {
	if version == "1.3" {
		return tls.VersionTLS13
	}
	return tls.VersionTLS12
}

func validateVersion(version string) error {
	switch version {
	case "", "1.2", "1.3":
		return nil
	default:
		return invalid(fmt.Sprintf("unsupported TLS version %q", version))
	}
}

func invalid(msg string) error {
	return errors.WrapInvalid(fmt.Errorf("%w: %s", errors.ErrInvalidConfig, msg),
		"tlsutil", "Validate", "check TLS settings")
}
