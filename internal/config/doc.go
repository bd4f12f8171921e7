// Package config loads the wayfinder TOML configuration.
//
// # Configuration Discovery
//
// The Load function follows this resolution order:
//
//  1. If a path is explicitly provided, use it
//  2. Otherwise, use ~/.config/wayfinder/config.toml (default)
//  3. If the config file doesn't exist, fall back to Default()
//  4. If the file exists but fields are missing or empty, use defaults
//
// # TOML Format
//
//	server_url     = "http://127.0.0.1:7878"   # wayfinder client
//	listen         = "127.0.0.1:7878"          # wayfinderd
//	manifest       = "~/.config/wayfinder/routes.yaml"
//	log_file       = "~/.local/share/wayfinder/wayfinder.log"
//	log_level      = "info"
//	prefetch_ttl   = "30s"
//	prefetch_rate  = 5
//	watch_manifest = false
//
// Every field is optional. Tilde expansion is performed on paths. Values
// that are present but malformed (an unparseable duration, a non-positive
// rate, an unknown level) are errors rather than silently defaulted.
//
// The client and the server read the same file; each ignores the keys that
// only concern the other.
package config
