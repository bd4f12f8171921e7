// Package logtail reads the tail of the client log file for display in the
// TUI.
//
// # Reading
//
// Read keeps a ring buffer of maxLines while scanning the file once, so
// memory stays bounded by the number of lines requested rather than the
// size of the file. A missing file yields no lines and no error; the log
// is created lazily by the first write.
//
// # Formatting
//
// The client logs through slog's JSON handler. Parse turns one such line
// into a Record and Format renders it compactly:
//
//	{"time":"...","level":"WARN","msg":"prefetch failed","href":"/a"}
//	10:20:30 WARN prefetch failed href=/a
//
// Lines that are not JSON objects (a panic trace, for instance) pass
// through FormatLines unchanged.
package logtail
