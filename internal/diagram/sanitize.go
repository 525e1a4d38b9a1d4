package diagram

import (
	"strconv"
	"strings"
)

// reservedIDs are flowchart keywords that break parsing when used as node ids.
var reservedIDs = map[string]bool{
	"end":       true,
	"subgraph":  true,
	"flowchart": true,
	"graph":     true,
	"direction": true,
	"class":     true,
	"classdef":  true,
	"click":     true,
	"style":     true,
	"linkstyle": true,
}

// Sanitizer maps raw node ids to unique, grammar-safe identifiers. A
// Sanitizer belongs to one render call and is not safe for concurrent use.
type Sanitizer struct {
	used  map[string]bool
	cache map[string]string
}

// NewSanitizer returns an empty Sanitizer.
func NewSanitizer() *Sanitizer {
	return &Sanitizer{
		used:  make(map[string]bool),
		cache: make(map[string]string),
	}
}

// ID returns the safe identifier for raw, assigning one on first use.
func (s *Sanitizer) ID(raw string) string {
	if id, ok := s.cache[raw]; ok {
		return id
	}
	id := s.assign(raw)
	s.cache[raw] = id
	return id
}

// Known reports whether raw already has an identifier.
func (s *Sanitizer) Known(raw string) bool {
	_, ok := s.cache[raw]
	return ok
}

func (s *Sanitizer) assign(raw string) string {
	base := SafeID(raw)

	candidate := base
	for i := 2; s.used[candidate]; i++ {
		candidate = base + "_" + strconv.Itoa(i)
	}
	s.used[candidate] = true
	return candidate
}

// SafeID applies the character, digit and keyword rules to raw without any
// uniqueness suffix.
func SafeID(raw string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		if isIDChar(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}

	id := b.String()
	if id == "" {
		id = "node"
	}
	if id[0] >= '0' && id[0] <= '9' {
		id = "n_" + id
	}
	if reservedIDs[strings.ToLower(id)] {
		id = "n_" + id
	}
	return id
}

func isIDChar(r rune) bool {
	return r == '_' ||
		(r >= '0' && r <= '9') ||
		(r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z')
}
