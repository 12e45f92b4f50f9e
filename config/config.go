// Package config provides a layered, hierarchical configuration source and
// lenient binding of configuration sections into Go values.
//
// Keys are hierarchical paths whose segments are separated by ":". The
// separators "." and "__" are accepted as well, and lookups ignore case, so
// "Mail:Host", "mail.host" and "MAIL__HOST" name the same key.
package config

import (
	"slices"
	"strings"
)

// Configuration is a read-only view of configuration values.
type Configuration interface {
	// Lookup returns the value stored at key.
	Lookup(key string) (string, bool)

	// Get returns the value stored at key, or "" when it is not set.
	Get(key string) string

	// Section returns the view rooted at key. A missing section is empty.
	Section(key string) Configuration

	// Keys returns the names of the immediate children, sorted.
	Keys() []string

	// Bind decodes the section at key into target, which must be a non-nil
	// pointer. An empty key binds the whole view. Binding is lenient: keys
	// missing from the configuration leave the target's fields untouched,
	// and values that cannot be converted are reported while the remaining
	// fields are still populated.
	Bind(key string, target any) error
}

var _ Configuration = (*Config)(nil)

// entry is a stored value together with the spelling of its path as last
// written by a source.
type entry struct {
	path  string
	value string
}

// Config is an immutable set of configuration values. Create one with a
// Builder or FromMap.
type Config struct {
	values map[string]entry // normalized full path -> entry
	prefix string           // normalized, ends with ":" unless empty
}

func newConfig(values map[string]entry) *Config {
	return &Config{values: values}
}

// FromMap creates a Config from nested maps, slices and scalar values.
func FromMap(values map[string]any) *Config {
	cfg, _ := NewBuilder().AddMap(values).Build()
	return cfg
}

// Lookup returns the value stored at key.
func (c *Config) Lookup(key string) (string, bool) {
	if c == nil {
		return "", false
	}

	e, ok := c.values[c.prefix+normalizeKey(key)]
	return e.value, ok
}

// Get returns the value stored at key, or "" when it is not set.
func (c *Config) Get(key string) string {
	v, _ := c.Lookup(key)
	return v
}

// Section returns the view rooted at key.
func (c *Config) Section(key string) Configuration {
	if c == nil {
		return (*Config)(nil)
	}

	norm := normalizeKey(key)
	if norm == "" {
		return c
	}

	return &Config{values: c.values, prefix: c.prefix + norm + ":"}
}

// Keys returns the names of the immediate children, sorted.
func (c *Config) Keys() []string {
	if c == nil {
		return nil
	}

	seen := make(map[string]string)
	for norm, e := range c.values {
		rel, ok := strings.CutPrefix(norm, c.prefix)
		if !ok || rel == "" {
			continue
		}

		child, _, _ := strings.Cut(rel, ":")
		if _, exists := seen[child]; !exists {
			seen[child] = segment(e.path, strings.Count(c.prefix, ":"))
		}
	}

	keys := make([]string, 0, len(seen))
	for _, name := range seen {
		keys = append(keys, name)
	}
	slices.SortFunc(keys, func(a, b string) int {
		return strings.Compare(strings.ToLower(a), strings.ToLower(b))
	})
	return keys
}

// Len returns the number of values visible in the view.
func (c *Config) Len() int {
	if c == nil {
		return 0
	}

	n := 0
	for norm := range c.values {
		if strings.HasPrefix(norm, c.prefix) {
			n++
		}
	}
	return n
}

// normalizeKey lowercases key and rewrites every supported separator to ":".
func normalizeKey(key string) string {
	return strings.ToLower(canonicalKey(key))
}

// canonicalKey rewrites every supported separator to ":" and keeps the
// original case.
func canonicalKey(key string) string {
	key = strings.ReplaceAll(key, "__", ":")
	key = strings.ReplaceAll(key, ".", ":")
	return strings.Trim(key, ":")
}

// segment returns the i-th ":" separated segment of path.
func segment(path string, i int) string {
	parts := strings.Split(path, ":")
	if i < len(parts) {
		return parts[i]
	}
	return ""
}
