package logging

// Logger is the minimal logging capability used across the node.
type Logger interface {
	Printf(format string, v ...any)
}
