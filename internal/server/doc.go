// Package server exposes the camera loop skill over HTTP.
//
// # Endpoints
//
//   - POST /skill - Request envelope in, response envelope out
//   - GET /health - Liveness probe reporting the number of targets
//
// # Authentication
//
// When a token hash is configured, /skill requires an
// "Authorization: Bearer <token>" header. The token is checked against an
// argon2id hash and cached for 24 hours once verified. Clients that keep
// failing are rate limited per IP and eventually blocked with an
// exponentially growing block.
//
// The voice platform itself does not send bearer tokens. Enable auth only
// when a fronting proxy injects the header; otherwise every request from the
// device is rejected.
package server
