// Package google provides OAuth2 authentication and token storage for the
// Gmail API.
//
// The client secret is read from an installed-app credentials file
// (credentials.json). Authorize runs the consent flow once through a
// loopback redirect; the resulting token is stored as JSON (token.json) and
// refreshed tokens are written back on use by FileTokenProvider.
package google
