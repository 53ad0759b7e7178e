package httpreq

import "strings"

// headerField is one (display-cased name, value) pair in arrival order.
type headerField struct {
	name  string
	value string
}

// Header is an ordered, case-insensitive multimap of HTTP header fields.
//
// net/http.Header is case-preserving but canonicalizes names and loses the
// distinction between "two values folded under one name" and "insertion
// order across different names" needed when folding repeated headers; a
// small hand-rolled type keeps both.
type Header struct {
	fields []headerField
}

// Add appends a value for name, preserving insertion order.
func (h *Header) Add(name, value string) {
	h.fields = append(h.fields, headerField{name: name, value: value})
}

// Get returns the first value for name, or "" if absent.
func (h *Header) Get(name string) string {
	key := strings.ToLower(name)
	for _, f := range h.fields {
		if strings.ToLower(f.name) == key {
			return f.value
		}
	}
	return ""
}

// Values returns all values for name in insertion order.
func (h *Header) Values(name string) []string {
	key := strings.ToLower(name)
	var out []string
	for _, f := range h.fields {
		if strings.ToLower(f.name) == key {
			out = append(out, f.value)
		}
	}
	return out
}

// Count returns how many fields are stored under name.
func (h *Header) Count(name string) int {
	return len(h.Values(name))
}

// Set replaces all existing values for name with a single value, appending
// at the position of the first existing occurrence (or at the end if the
// name is not yet present).
func (h *Header) Set(name, value string) {
	key := strings.ToLower(name)
	for i := range h.fields {
		if strings.ToLower(h.fields[i].name) == key {
			h.fields[i].value = value
			h.fields = append(h.fields[:i+1], removeName(h.fields[i+1:], key)...)
			return
		}
	}
	h.Add(name, value)
}

func removeName(fields []headerField, key string) []headerField {
	out := fields[:0]
	for _, f := range fields {
		if strings.ToLower(f.name) != key {
			out = append(out, f)
		}
	}
	return out
}

// ContainsToken reports whether the comma-separated value of name contains
// token, case-insensitively, tolerating surrounding whitespace around each
// comma-separated item (RFC 6455 Section 4.2.1: Connection/Upgrade tokens).
func (h *Header) ContainsToken(name, token string) bool {
	token = strings.ToLower(token)
	for _, v := range h.Values(name) {
		for _, part := range strings.Split(v, ",") {
			if strings.ToLower(strings.TrimSpace(part)) == token {
				return true
			}
		}
	}
	return false
}
