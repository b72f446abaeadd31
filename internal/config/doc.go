// Package config loads the bot configuration from JSON or YAML, overlays
// the TELEGRAM_TOKEN, CATALOG_URL and CHANNEL_ID environment variables and
// validates it. Unknown keys are rejected. Watch publishes validated
// reloads; an invalid edit is logged and the previous config stays active.
package config
