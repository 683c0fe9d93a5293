package config

import (
	"flag"
	"os"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophtube/internal/flagx"
)

// parseFlags populates server Config fields from command-line flags.
//
// Supported flags:
//
//	-a string      HTTP bind address (e.g., ":8000")
//	-grpc string   gRPC bind address (e.g., ":50051")
//	-d string      PostgreSQL DSN
//	-s string      access token HMAC secret
//	-rs string     refresh token HMAC secret
//	-t int         access token validity, minutes
//	-r int         refresh token validity, minutes
//	-u string      S3 root user
//	-p string      S3 root password
//	-b string      S3 bucket name
//	-g string      S3 region
//	-e string      S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-pub string    public base URL of uploaded assets
//	-redis string  Redis address
//	-store string  session store backend: postgres | redis
//	-lock string   rotation lock: none | local | redis
//	-secure        set Secure on credential cookies
//	-upload string staging directory for multipart uploads
//	-sweep int     orphan sweep interval, minutes (0 disables)
//	-proxies string comma-separated trusted proxy IPs or CIDRs
//	-l string      log level
//
// Duration flags are accepted as integers in minutes.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{
		"-a", "-grpc", "-d", "-s", "-rs", "-t", "-r", "-u", "-p", "-b", "-g", "-e",
		"-pub", "-redis", "-store", "-lock", "-upload", "-sweep", "-proxies", "-l",
	}, "-secure")

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run HTTP server")
	fs.StringVar(&config.EndpointAddrGRPC, "grpc", config.EndpointAddrGRPC, "address and port to run gRPC server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.AccessTokenSecret, "s", config.AccessTokenSecret, "access token secret")
	fs.StringVar(&config.RefreshTokenSecret, "rs", config.RefreshTokenSecret, "refresh token secret")

	accessTokenValidityDuration := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access_token_validity_duration (in minutes)")
	refreshTokenValidityDuration := fs.Int("r", int(config.RefreshTokenValidityDuration.Minutes()), "refresh_token_validity_duration (in minutes)")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.S3PublicBaseURL, "pub", config.S3PublicBaseURL, "public base URL of stored assets")

	fs.StringVar(&config.RedisAddr, "redis", config.RedisAddr, "redis address")
	fs.StringVar(&config.SessionStore, "store", config.SessionStore, "session store backend (postgres|redis)")
	fs.StringVar(&config.RotationLock, "lock", config.RotationLock, "rotation lock (none|local|redis)")
	fs.BoolVar(&config.SecureCookies, "secure", config.SecureCookies, "secure cookies")
	fs.StringVar(&config.UploadDir, "upload", config.UploadDir, "upload staging directory")

	sweepInterval := fs.Int("sweep", int(config.SweepInterval.Minutes()), "orphan sweep interval (in minutes, 0 disables)")

	proxies := fs.String("proxies", strings.Join(config.TrustedProxies, ","), "trusted proxies (comma-separated IPs or CIDRs)")

	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AccessTokenValidityDuration = time.Duration(*accessTokenValidityDuration) * time.Minute
	config.RefreshTokenValidityDuration = time.Duration(*refreshTokenValidityDuration) * time.Minute
	config.SweepInterval = time.Duration(*sweepInterval) * time.Minute
	if *proxies != "" {
		config.TrustedProxies = strings.Split(*proxies, ",")
	}
}
