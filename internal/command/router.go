// Package command routes operator chat commands and parses their arguments.
package command

import "regexp"

type ArgParser interface {
	ParseArg(s string) error
}

type ArgConstructor func() ArgParser

type Router struct {
	prefix   string
	handlers map[*regexp.Regexp]ArgConstructor
}

// NewRouter builds a router for messages starting with the given command
// prefix, e.g. "!".
func NewRouter(prefix string) *Router {
	r := Router{
		prefix:   prefix,
		handlers: make(map[*regexp.Regexp]ArgConstructor),
	}

	handlers := map[string]ArgConstructor{
		"leaderboard": func() ArgParser { return new(LeaderboardArgs) },
		"karma":       func() ArgParser { return new(CheckKarmaArgs) },
		"config":      func() ArgParser { return new(SetConfigArgs) },
		"rescan":      func() ArgParser { return new(RescanArgs) },
	}

	// install handlers
	head := `^` + regexp.QuoteMeta(r.prefix)
	for cmd, ctor := range handlers {
		r.handlers[regexp.MustCompile(head+cmd+`\b\s*`)] = ctor
	}

	return &r
}

// Route matches s against the installed commands. A nil ArgParser means the
// message is not a command and should be ignored.
func (r *Router) Route(s string) (args ArgParser, remainder string) {
	for matcher, action := range r.handlers {
		if matched := matcher.ReplaceAllString(s, ""); matched != s {
			return action(), matched
		}
	}

	return nil, s
}
