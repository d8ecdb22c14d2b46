package cli

import (
	"fmt"

	"cvmatch/internal/config"
	"cvmatch/internal/server"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for résumé and job description matching",
	Long: `Start an HTTP server that exposes the pipeline as REST endpoints.

Available endpoints:
- POST /process: Run the full pipeline for a résumé and a job description
- POST /extract: Extract (and optionally enrich) one document
- POST /gaps: Analyze gaps between a résumé record and a job record
- POST /questionnaire: Draft interview questions for gap points
- GET /health: Health check endpoint
- GET /stats: Server statistics and rate limiting info

TLS Configuration:
- Use --tls-mode to set TLS mode: disabled, server
- Use --cert-file and --key-file for TLS certificates`,
	RunE: runServe,
}

// serveFlagKeys maps serve flags to their config keys
var serveFlagKeys = map[string]string{
	"port":      "server.port",
	"host":      "server.host",
	"tls-mode":  "server.tls.mode",
	"cert-file": "server.tls.certFile",
	"key-file":  "server.tls.keyFile",
}

func init() {
	serveCmd.Flags().StringP("port", "p", "", "Port to listen on (default from config)")
	serveCmd.Flags().String("host", "", "Host to bind to (default from config)")
	serveCmd.Flags().String("tls-mode", "", "TLS mode: disabled, server (overrides config)")
	serveCmd.Flags().String("cert-file", "", "Server certificate file (PEM, overrides config)")
	serveCmd.Flags().String("key-file", "", "Server private key file (PEM, overrides config)")
}

// applyServeOverrides copies the flags the user set onto the server config
func applyServeOverrides(flags *pflag.FlagSet, cfg *config.Config) error {
	v := viper.New()
	for flagName, key := range serveFlagKeys {
		if err := v.BindPFlag(key, flags.Lookup(flagName)); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", flagName, err)
		}
	}

	override := func(key string, target *string) {
		if v.IsSet(key) {
			*target = v.GetString(key)
		}
	}
	override("server.port", &cfg.Server.Port)
	override("server.host", &cfg.Server.Host)
	override("server.tls.mode", &cfg.Server.TLS.Mode)
	override("server.tls.certFile", &cfg.Server.TLS.CertFile)
	override("server.tls.keyFile", &cfg.Server.TLS.KeyFile)
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := getConfigFromContext(cmd.Context())
	logger := getLoggerFromContext(cmd.Context())

	if err := applyServeOverrides(cmd.Flags(), cfg); err != nil {
		return err
	}

	// Validate TLS configuration after applying overrides
	if err := cfg.ValidateTLSConfig(); err != nil {
		return fmt.Errorf("invalid TLS configuration: %w", err)
	}

	serverCfg := server.ServerConfig{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		Version:        Version,
		TLSConfig:      cfg.Server.TLS,
		APIKeys:        cfg.Server.APIKeys,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxRequestSize: cfg.App.MaxFileSize,
		RateLimit:      &cfg.Server.RateLimit,
	}
	return server.NewServer(cfg, serverCfg, logger).Start(cmd.Context())
}
