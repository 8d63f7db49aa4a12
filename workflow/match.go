package workflow

import "strings"

type matchOptions struct {
	exact         bool
	caseSensitive bool
}

// MatchOption adjusts how a name query is compared against node titles.
// Queries match exactly and ignore case unless told otherwise.
type MatchOption func(*matchOptions)

// MatchContains matches titles that contain the query.
func MatchContains() MatchOption {
	return func(o *matchOptions) { o.exact = false }
}

// MatchExact sets whether the whole title must equal the query.
func MatchExact(exact bool) MatchOption {
	return func(o *matchOptions) { o.exact = exact }
}

// MatchCase compares titles case-sensitively.
func MatchCase() MatchOption {
	return func(o *matchOptions) { o.caseSensitive = true }
}

func newMatchOptions(opts []MatchOption) matchOptions {
	o := matchOptions{exact: true}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// MatchesQuery reports whether a node title matches query. An empty title
// never matches.
func MatchesQuery(title, query string, exact, caseSensitive bool) bool {
	if title == "" {
		return false
	}
	if !caseSensitive {
		title = strings.ToLower(title)
		query = strings.ToLower(query)
	}
	if exact {
		return title == query
	}
	return strings.Contains(title, query)
}

// stripPrefix removes the first occurrence of prefix from title. Unlike
// classification this is case-sensitive, so "input_seed" keeps its name
// under the default "INPUT_" prefix.
func stripPrefix(title, prefix string) string {
	return strings.Replace(title, prefix, "", 1)
}
