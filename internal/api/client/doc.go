// Package client implements the HTTP client of the remote monitoring API.
//
// It handles login, token refresh and batched event submission with bearer
// authentication. A 401 on submission triggers exactly one transparent
// re-login and one retry of the same batch; every other failure is surfaced
// as a typed error, leaving the retry policy to the sync loop. Offline mode
// short-circuits all network I/O behind the same call paths.
package client
