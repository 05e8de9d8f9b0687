// Package confloader fills a tagged config struct from a YAML file,
// CHATHUB_* environment variables and an override map, and watches the
// file for edits.
//
// Later sources win:
//
//	struct defaults < file < environment < overrides
//
// Environment names are matched against the target's koanf tags, so
// CHATHUB_SNAPSHOT_MESSAGE_LIMIT sets snapshot.message_limit rather than
// snapshot.message.limit.
package confloader
