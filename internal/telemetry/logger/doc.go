// Package logger builds the process *slog.Logger.
//
// Every logger returned by New shares one slog.LevelVar, so SetLevel
// changes the level of all of them at once. The server calls it when its
// config file changes.
//
// Records logged with a context (InfoContext and friends) pick up the
// request id and user stored by WithRequestID and WithUser. Session
// tokens and attributes under secret-sounding keys are masked before
// they reach the output.
package logger
