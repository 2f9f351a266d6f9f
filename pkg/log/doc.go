/*
Package log provides structured logging for ReMUD using zerolog.

The log package wraps zerolog to give every subsystem a JSON- or
console-formatted logger scoped to its component, with a handful of
context helpers for the identities ReMUD logs against most often: entity
ids, connection ids, and script names.

# Usage

	log.Init(log.Config{Level: log.InfoLevel, JSONOutput: true})

	engineLog := log.WithComponent("engine")
	engineLog.Info().Int("tick", n).Msg("tick completed")

	scriptLog := log.WithScript("greeter")
	scriptLog.Error().Err(err).Msg("script run failed")

JSON format (production):

	{"level":"info","component":"engine","tick":482,"time":"...","message":"tick completed"}

Console format (development):

	2006-01-02T15:04:05Z INF tick completed component=engine tick=482
*/
package log
