package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/gophtube/internal/flagx"
	"github.com/dmitrijs2005/gophtube/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. The timeout
// accepts "30s" as well as integer nanoseconds.
type JsonConfig struct {
	ServerURL      string         `json:"server_url"`
	GRPCAddr       string         `json:"grpc_addr"`
	SessionFile    string         `json:"session_file"`
	RequestTimeout timex.Duration `json:"request_timeout"`
}

// parseJson overlays Config with values loaded from the JSON file named by
// -c / -config. Absent fields keep their current value. Read and unmarshal
// errors panic.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.ServerURL != "" {
		cfg.ServerURL = jc.ServerURL
	}
	if jc.GRPCAddr != "" {
		cfg.GRPCAddr = jc.GRPCAddr
	}
	if jc.SessionFile != "" {
		cfg.SessionFile = jc.SessionFile
	}
	if jc.RequestTimeout.Duration != 0 {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
}
