// Package client talks to the GophTube server on behalf of the CLI.
//
// APIClient wraps the HTTP API: it keeps the credential pair in a
// SessionFile, sends the access credential as a Bearer header and, when a
// request is rejected with 401, rotates the pair once and retries.
// GRPCClient calls the gRPC Session service with the same access
// credential in request metadata.
//
// Transport failures match ErrUnavailable and rejected credentials match
// ErrUnauthorized with errors.Is. Other API failures are *APIError.
package client
