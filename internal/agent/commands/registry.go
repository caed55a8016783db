package commands

import (
	"sort"
	"strings"
	"sync"
)

// Registry manages command handlers and provides lookup functionality.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	entries  []Entry // cached for help
}

// NewRegistry creates a new empty command registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
	}
}

// NewDefaultRegistry returns a registry with the built-in chat commands.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&HelpHandler{})
	r.Register(&QuitHandler{})
	r.Register(&ExitHandler{})
	r.Register(&StateHandler{})
	r.Register(&NewSessionHandler{})
	r.Register(&SessionHandler{})
	r.Register(&ResumeHandler{})
	return r
}

// Register adds a handler to the registry.
// The handler's Entry().Name is used as the command name.
func (r *Registry) Register(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry := h.Entry()
	r.handlers[entry.Name] = h
	r.entries = nil // invalidate cache
}

// Execute runs the command with the given context. Unknown commands get an
// error result, with a suggestion when one is close.
func (r *Registry) Execute(ctx *Context, cmd *Command) Result {
	r.mu.RLock()
	handler, ok := r.handlers[cmd.Name]
	r.mu.RUnlock()

	if !ok {
		msg := "Unknown command: /" + cmd.Name
		if matches := r.FuzzyMatch(cmd.Name); len(matches) > 0 {
			msg += " (did you mean /" + matches[0].Name + "?)"
		} else {
			msg += " (type /help for available commands)"
		}
		return Result{Success: false, Message: msg, IsInfo: true}
	}

	if ctx.Registry == nil {
		ctx.Registry = r
	}
	return handler.Execute(ctx, cmd.Args)
}

// AllEntries returns all registered command entries, sorted by name.
func (r *Registry) AllEntries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.entries != nil {
		return r.entries
	}

	entries := make([]Entry, 0, len(r.handlers))
	for _, h := range r.handlers {
		entries = append(entries, h.Entry())
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name < entries[j].Name
	})

	r.entries = entries
	return r.entries
}

// FuzzyMatch returns entries matching query, best first. Ties are broken by
// name. An empty query returns every entry.
func (r *Registry) FuzzyMatch(query string) []Entry {
	entries := r.AllEntries()
	if query == "" {
		return entries
	}
	query = strings.ToLower(query)

	scores := make(map[string]int, len(entries))
	var matches []Entry
	for _, e := range entries {
		if score := matchScore(e, query); score > 0 {
			scores[e.Name] = score
			matches = append(matches, e)
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return scores[matches[i].Name] > scores[matches[j].Name]
	})
	return matches
}

// matchScore ranks a name prefix highest (shorter names first), then a name
// substring, then the query's letters in order within the name, then a hit
// in the description. Zero means no match.
func matchScore(e Entry, query string) int {
	name := strings.ToLower(e.Name)
	switch {
	case strings.HasPrefix(name, query):
		return 100 - (len(name) - len(query))
	case strings.Contains(name, query):
		return 50
	case isSubsequence(query, name):
		return 25
	case strings.Contains(strings.ToLower(e.Description), query):
		return 10
	}
	return 0
}

// isSubsequence reports whether every byte of sub appears in s in order.
func isSubsequence(sub, s string) bool {
	i := 0
	for j := 0; j < len(s) && i < len(sub); j++ {
		if s[j] == sub[i] {
			i++
		}
	}
	return i == len(sub)
}

// ParseCommand splits "/name arg..." into a Command. Input that does not
// start with a slash, or has nothing after it, is not a command and yields nil.
func ParseCommand(input string) *Command {
	rest, ok := strings.CutPrefix(input, "/")
	if !ok {
		return nil
	}
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return nil
	}
	return &Command{Name: strings.ToLower(fields[0]), Args: fields[1:]}
}
