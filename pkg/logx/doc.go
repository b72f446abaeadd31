// Package logx configures gamewatch's structured logging.
//
// It wraps zerolog with a small value-type Logger so that:
//   - console output stays readable (short timestamp + file:line caller)
//   - the optional file sink is JSON, one event per line
//   - warnings and errors can be mirrored to a Telegram chat (min level + rate limit)
package logx
