// Package security builds TLS client settings for outbound connections,
// such as the remote transcription API.
//
//	cfg := security.TLSConfig{CAFile: "/etc/mediascribe/ca.pem"}
//	client, err := cfg.HTTPClient(30 * time.Second)
package security
