package config

import "time"

// Config holds runtime settings for the GophTube CLI.
//
// Fields:
//   - ServerURL: base URL of the HTTP API.
//   - GRPCAddr: host:port of the gRPC endpoint.
//   - SessionFile: where the credential pair is kept between runs.
//   - RequestTimeout: per-request timeout of the HTTP client.
type Config struct {
	ServerURL      string
	GRPCAddr       string
	SessionFile    string
	RequestTimeout time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8000"
	c.GRPCAddr = "127.0.0.1:50051"
	c.SessionFile = ".gophtube-session.json"
	c.RequestTimeout = 30 * time.Second
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
