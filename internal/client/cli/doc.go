// Package cli provides the interactive GophTube command-line client.
//
// It wires configuration, the HTTP and gRPC clients and a small REPL:
//   - register / login / logout / refresh
//   - me, whoami (over gRPC)
//   - account, passwd, avatar, cover
//
// The credential pair survives restarts in the session file, so a second
// run starts logged in. The REPL is started via App.Run(ctx), which blocks
// until the user exits.
package cli
