package modlog

import (
	"regexp"
	"strings"
)

// Directive maps a hierarchical, dot-separated module path to a level
// threshold. A directive applies to the module itself and to every module
// below it. An empty Module denotes the specification default.
type Directive struct {
	Module string
	Level  Level
}

// LogSpecification is a complete, immutable filtering policy: a default
// level, an ordered directive list, an optional message filter and an
// optional duplication threshold.
//
// Construction is all-or-nothing: a malformed token anywhere rejects the
// whole specification with a ConfigError, so a partially valid instance can
// never become active.
type LogSpecification struct {
	directives   []Directive
	defaultLevel Level
	filter       *regexp.Regexp
	duplicate    Level
}

// ParseSpec parses directive text of the form
//
//	modulePath[=level](,modulePath[=level])*[/messagePattern]
//
// Level names are case-insensitive. A bare level token sets the default
// level. A module token without a level enables everything below it
// (threshold trace). The optional trailing /pattern installs a message
// filter: only records whose message matches the pattern are written.
func ParseSpec(text string) (*LogSpecification, error) {
	spec := &LogSpecification{defaultLevel: LevelOff, duplicate: LevelOff}

	parts := strings.Split(text, "/")
	if len(parts) > 2 {
		return nil, &ConfigError{Token: text, Reason: "at most one '/' filter separator allowed"}
	}
	if len(parts) == 2 && strings.TrimSpace(parts[1]) != emptyString {
		re, err := regexp.Compile(strings.TrimSpace(parts[1]))
		if err != nil {
			return nil, &ConfigError{Token: parts[1], Reason: "invalid message filter: " + err.Error()}
		}
		spec.filter = re
	}

	for _, raw := range strings.Split(parts[0], ",") {
		token := strings.TrimSpace(raw)
		if token == emptyString {
			continue
		}
		eq := strings.Count(token, "=")
		switch eq {
		case 0:
			// Either a bare level (sets the default) or a module
			// name enabled at maximum verbosity.
			if lvl, err := ParseLevel(token); err == nil {
				spec.defaultLevel = lvl
				continue
			}
			spec.directives = append(spec.directives, Directive{Module: token, Level: LevelTrace})
		case 1:
			name, levelText, _ := strings.Cut(token, "=")
			name = strings.TrimSpace(name)
			levelText = strings.TrimSpace(levelText)
			if name == emptyString {
				return nil, &ConfigError{Token: token, Reason: "missing module path before '='"}
			}
			if levelText == emptyString {
				spec.directives = append(spec.directives, Directive{Module: name, Level: LevelTrace})
				continue
			}
			lvl, err := ParseLevel(levelText)
			if err != nil {
				return nil, &ConfigError{Token: token, Reason: "unknown level " + levelText}
			}
			spec.directives = append(spec.directives, Directive{Module: name, Level: lvl})
		default:
			return nil, &ConfigError{Token: token, Reason: "too many '=' in directive"}
		}
	}

	return spec, nil
}

// NewSpecification builds a specification from already-structured parts.
// Used by the specfile loader; ParseSpec is the text entry point.
func NewSpecification(defaultLevel Level, directives []Directive, filter *regexp.Regexp, duplicate Level) (*LogSpecification, error) {
	if !defaultLevel.valid() {
		return nil, &ConfigError{Reason: "default level out of range"}
	}
	if !duplicate.valid() {
		return nil, &ConfigError{Reason: "duplication threshold out of range"}
	}
	spec := &LogSpecification{
		defaultLevel: defaultLevel,
		filter:       filter,
		duplicate:    duplicate,
	}
	for _, d := range directives {
		if d.Module == emptyString {
			return nil, &ConfigError{Reason: "directive with empty module path"}
		}
		if !d.Level.valid() {
			return nil, &ConfigError{Token: d.Module, Reason: "directive level out of range"}
		}
		spec.directives = append(spec.directives, d)
	}
	return spec, nil
}

// Enabled reports whether a record from the given module at the given level
// passes this specification. Among all directives whose module equals the
// path or is a proper dot-separated ancestor of it, the longest (most
// specific) match wins; at equal specificity the later directive wins. With
// no matching directive the default level applies.
func (s *LogSpecification) Enabled(module string, level Level) bool {
	if level == LevelOff {
		return false
	}
	threshold := s.defaultLevel
	bestLen := -1
	for _, d := range s.directives {
		if moduleMatches(d.Module, module) && len(d.Module) >= bestLen {
			bestLen = len(d.Module)
			threshold = d.Level
		}
	}
	return level <= threshold
}

// MessageAllowed applies the optional message filter. With no filter
// configured every message is allowed.
func (s *LogSpecification) MessageAllowed(msg string) bool {
	return s.filter == nil || s.filter.MatchString(msg)
}

// DefaultLevel returns the level applied when no directive matches.
func (s *LogSpecification) DefaultLevel() Level { return s.defaultLevel }

// Directives returns a copy of the directive list in source order.
func (s *LogSpecification) Directives() []Directive {
	out := make([]Directive, len(s.directives))
	copy(out, s.directives)
	return out
}

// DuplicateLevel returns the duplication threshold; LevelOff means no
// record is mirrored to the duplication sink.
func (s *LogSpecification) DuplicateLevel() Level { return s.duplicate }

// FilterPattern returns the message filter pattern, or "" if none is set.
func (s *LogSpecification) FilterPattern() string {
	if s.filter == nil {
		return emptyString
	}
	return s.filter.String()
}

// withDuplicate returns a copy of the specification carrying the given
// duplication threshold. The receiver is not modified.
func (s *LogSpecification) withDuplicate(level Level) *LogSpecification {
	out := *s
	out.duplicate = level
	return &out
}

// Text serializes the specification back into directive text. Parsing the
// result yields a specification with identical matching behavior.
func (s *LogSpecification) Text() string {
	var b strings.Builder
	b.WriteString(s.defaultLevel.String())
	for _, d := range s.directives {
		b.WriteByte(',')
		b.WriteString(d.Module)
		b.WriteByte('=')
		b.WriteString(d.Level.String())
	}
	if s.filter != nil {
		b.WriteByte('/')
		b.WriteString(s.filter.String())
	}
	return b.String()
}

// moduleMatches reports whether pattern is path itself or a proper
// dot-separated ancestor of it. "a.b" matches "a.b" and "a.b.c" but not
// "a.bc".
func moduleMatches(pattern, path string) bool {
	if pattern == path {
		return true
	}
	return len(path) > len(pattern) &&
		strings.HasPrefix(path, pattern) &&
		path[len(pattern)] == '.'
}
