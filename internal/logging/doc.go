// Package logging provides file-based structured logging with rotation for
// kbsync. Runs log JSON to ~/.kbsync/logs/ and, by default, to stderr as
// well, so cron and container logs stay useful without extra flags.
package logging
