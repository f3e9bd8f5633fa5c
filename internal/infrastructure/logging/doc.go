// Package logging provides the structured logger for BotLink Core.
//
// It wraps the standard library's log/slog with configuration-driven
// format/level selection and service-wide default fields. Components that
// should stay decoupled from this package declare their own narrow Logger
// interface (Debug/Info/Warn/Error) which *logging.Logger satisfies.
package logging
