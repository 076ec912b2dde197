// Package config loads the LuminYield runtime configuration from a single
// JSON file, applies defaults for anything omitted, and resolves the file
// path from the LUMINYIELD_CONFIG environment variable when no explicit path
// is given. API credentials may be provided indirectly through api_key_env.
package config
