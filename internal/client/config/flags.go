package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/gophtube/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   base URL of the HTTP API
//	-g string   address of the gRPC endpoint
//	-f string   session file
//	-t int      request timeout in seconds
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-g", "-f", "-t"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerURL, "a", cfg.ServerURL, "base URL of the HTTP API")
	fs.StringVar(&cfg.GRPCAddr, "g", cfg.GRPCAddr, "address and port of the gRPC endpoint")
	fs.StringVar(&cfg.SessionFile, "f", cfg.SessionFile, "session file")
	requestTimeout := fs.Int("t", int(cfg.RequestTimeout.Seconds()), "request timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.RequestTimeout = time.Duration(*requestTimeout) * time.Second
}
