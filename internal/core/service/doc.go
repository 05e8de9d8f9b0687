// Package service provides the caller-facing operations of chathub.
//
//   - AccountService: register, login, logout and session lookups
//   - ChatService: posting and polling messages, image uploads
//   - BackupService: snapshot capture, publish, restore and summaries
//   - Scheduler: the periodic publish and session sweep tasks
//
// Services return explicit errors. Validation and authentication failures
// are domain errors carrying a user-facing message; external store
// failures are logged here and surface as ErrStorage.
package service
