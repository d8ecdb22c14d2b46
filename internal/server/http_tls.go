package server

import (
	"crypto/tls"
	"fmt"
	"net/http"

	"cvmatch/internal/config"
)

func (s *Server) tlsMode() string {
	if s.TLSConfig.Mode == "" {
		return config.TLSModeDisabled
	}
	return s.TLSConfig.Mode
}

// configureTLS attaches a certificate to httpServer in server mode. PEM
// content from Vault takes precedence over file paths.
func (s *Server) configureTLS(httpServer *http.Server) error {
	mode := s.tlsMode()
	switch mode {
	case config.TLSModeDisabled:
		s.Logger.Info("TLS disabled, serving plain HTTP", "url", "http://"+httpServer.Addr)
		return nil
	case config.TLSModeServer:
	default:
		return fmt.Errorf("invalid TLS mode: %s (must be 'disabled' or 'server')", mode)
	}

	cert, err := loadCertificate(s.TLSConfig)
	if err != nil {
		return fmt.Errorf("failed to set up TLS: %w", err)
	}

	minVersion := uint16(tls.VersionTLS12)
	if s.TLSConfig.MinVersion == "1.3" {
		minVersion = tls.VersionTLS13
	}
	httpServer.TLSConfig = &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   minVersion,
	}

	s.Logger.Info("TLS enabled", "url", "https://"+httpServer.Addr, "min_version", s.TLSConfig.MinVersion)
	return nil
}

func loadCertificate(cfg config.TLSConfig) (tls.Certificate, error) {
	switch {
	case cfg.CertContent != "" && cfg.KeyContent != "":
		cert, err := tls.X509KeyPair([]byte(cfg.CertContent), []byte(cfg.KeyContent))
		if err != nil {
			return tls.Certificate{}, fmt.Errorf("failed to load server cert/key from content: %w", err)
		}
		return cert, nil
	case cfg.CertFile != "" && cfg.KeyFile != "":
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return tls.Certificate{}, fmt.Errorf("failed to load server cert/key from files: %w", err)
		}
		return cert, nil
	default:
		return tls.Certificate{}, fmt.Errorf("TLS certificate and key are required (provide either files or content)")
	}
}
