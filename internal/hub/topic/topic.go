package topic

import "strings"

// Wildcard and separator constants for pattern matching.
const (
	// WildcardSingle matches exactly one segment.
	WildcardSingle = "*"

	// WildcardMulti matches the remaining segments when it ends a pattern.
	WildcardMulti = "**"

	// Separator is the character used to separate segments.
	Separator = "/"
)

// Split returns the segments of a channel or pattern.
// A single leading empty segment is removed, so "/a/b" yields ["a", "b"].
// The empty string has no segments.
func Split(s string) []string {
	if s == "" {
		return nil
	}
	segments := strings.Split(s, Separator)
	if segments[0] == "" {
		segments = segments[1:]
	}
	return segments
}

// IsRooted reports whether s starts with the separator.
// Only rooted patterns can be produced by wildcard resolution.
func IsRooted(s string) bool {
	return strings.HasPrefix(s, Separator)
}

// Kind classifies a pattern segment.
type Kind uint8

const (
	// KindLiteral is a segment matched by exact text.
	KindLiteral Kind = iota

	// KindSingle is a "*" segment.
	KindSingle

	// KindMulti is a trailing "**" segment.
	KindMulti
)

// String returns a human-readable kind name.
func (k Kind) String() string {
	switch k {
	case KindLiteral:
		return "literal"
	case KindSingle:
		return "single"
	case KindMulti:
		return "multi"
	default:
		return "unknown"
	}
}

// Segment is one parsed pattern segment.
type Segment struct {
	Text string
	Kind Kind
}

// Pattern is a subscription key parsed into segments.
type Pattern struct {
	// Key is the pattern exactly as registered.
	Key string

	// Rooted is true when Key starts with the separator.
	Rooted bool

	// Segments holds the parsed segments with the leading empty one removed.
	Segments []Segment
}

// ParsePattern parses a pattern key.
// A "**" segment is only a wildcard in the final position; elsewhere it is
// literal text.
func ParsePattern(key string) Pattern {
	parts := Split(key)
	p := Pattern{
		Key:      key,
		Rooted:   IsRooted(key),
		Segments: make([]Segment, len(parts)),
	}
	for i, part := range parts {
		kind := KindLiteral
		switch {
		case part == WildcardSingle:
			kind = KindSingle
		case part == WildcardMulti && i == len(parts)-1:
			kind = KindMulti
		}
		p.Segments[i] = Segment{Text: part, Kind: kind}
	}
	return p
}

// IsWildcard returns true if the pattern has a wildcard segment.
func (p Pattern) IsWildcard() bool {
	for _, seg := range p.Segments {
		if seg.Kind != KindLiteral {
			return true
		}
	}
	return false
}

// String returns the pattern key.
func (p Pattern) String() string {
	return p.Key
}

// join builds a rooted key from segments, optionally followed by one more segment.
func join(segments []string, last ...string) string {
	var b strings.Builder
	for _, seg := range segments {
		b.WriteString(Separator)
		b.WriteString(seg)
	}
	for _, seg := range last {
		b.WriteString(Separator)
		b.WriteString(seg)
	}
	if b.Len() == 0 {
		return Separator
	}
	return b.String()
}

// Candidates returns every key that would match channel, in resolution order.
// Keys may repeat when the channel itself contains wildcard text.
func Candidates(channel string) []string {
	segments := Split(channel)
	out := make([]string, 0, 2*len(segments)+2)

	for k := 0; k <= len(segments); k++ {
		out = append(out, join(segments[:k], WildcardMulti))
	}

	replaced := make([]string, len(segments))
	for i := range segments {
		copy(replaced, segments)
		replaced[i] = WildcardSingle
		out = append(out, join(replaced))
	}

	return append(out, channel)
}

// MatchCount returns how many times pattern is among the candidates for channel.
// Zero means the pattern does not match.
func MatchCount(pattern, channel string) int {
	n := 0
	for _, c := range Candidates(channel) {
		if c == pattern {
			n++
		}
	}
	return n
}

// Matches returns true if pattern matches channel.
func Matches(pattern, channel string) bool {
	return MatchCount(pattern, channel) > 0
}
