// Package config loads settings for the GophTube CLI.
//
// Sources are applied in order, later ones winning:
//  1. Defaults (LoadDefaults)
//  2. A JSON file given with -c / -config
//  3. Command-line flags
//
// Example JSON:
//
//	{
//	  "server_url": "http://127.0.0.1:8000",
//	  "grpc_addr": "127.0.0.1:50051",
//	  "session_file": ".gophtube-session.json",
//	  "request_timeout": "30s"
//	}
package config
