package workflow

import "log/slog"

// AmbiguousMatch describes a single-node lookup that matched more than one node.
type AmbiguousMatch struct {
	Query   string
	NodeIDs []string // every match, in prompt order
	Chosen  string
}

// Observer receives the non-fatal diagnostics a Workflow emits.
type Observer interface {
	AmbiguousMatch(AmbiguousMatch)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(AmbiguousMatch)

func (f ObserverFunc) AmbiguousMatch(m AmbiguousMatch) { f(m) }

// LogObserver writes diagnostics to a slog.Logger, slog.Default() when Logger is nil.
type LogObserver struct {
	Logger *slog.Logger
}

func (o LogObserver) AmbiguousMatch(m AmbiguousMatch) {
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("More than one node matches name, returning first occurrence",
		"name", m.Query,
		"matches", m.NodeIDs,
		"node_id", m.Chosen,
	)
}
