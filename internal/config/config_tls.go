package config

import "fmt"

const (
	TLSModeDisabled = "disabled"
	TLSModeServer   = "server"
)

// ValidateTLSConfig checks the server TLS settings. In server mode exactly
// one source, file or inline PEM, must be given for each of cert and key.
func (c *Config) ValidateTLSConfig() error {
	t := c.Server.TLS
	if t.Mode == "" || t.Mode == TLSModeDisabled {
		return nil
	}
	if t.Mode != TLSModeServer {
		return fmt.Errorf("invalid TLS mode: %s (must be 'disabled' or 'server')", t.Mode)
	}

	if err := oneSource("cert", t.CertFile, t.CertContent); err != nil {
		return err
	}
	if err := oneSource("key", t.KeyFile, t.KeyContent); err != nil {
		return err
	}

	if t.MinVersion != "" && t.MinVersion != "1.2" && t.MinVersion != "1.3" {
		return fmt.Errorf("invalid TLS minVersion: %s (must be '1.2' or '1.3')", t.MinVersion)
	}
	return nil
}

func oneSource(name, file, content string) error {
	switch {
	case file == "" && content == "":
		return fmt.Errorf("TLS %s is required for server mode (set %sFile or %sContent)", name, name, name)
	case file != "" && content != "":
		return fmt.Errorf("cannot specify both %sFile and %sContent", name, name)
	}
	return nil
}
