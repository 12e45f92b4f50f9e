package config

import (
	"errors"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-viper/mapstructure/v2"
)

// TagName is the struct tag consulted for field names during binding.
// Fields without the tag match keys by name, ignoring case.
const TagName = "config"

// Bind decodes the section at key into target.
//
//	var mail MailSettings
//	err := cfg.Bind("Mail", &mail)
//
// Strings are converted to the field types (numbers, booleans,
// time.Duration, comma separated slices, encoding.TextUnmarshaler).
func (c *Config) Bind(key string, target any) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return errors.New("config: bind target must be a non-nil pointer")
	}

	if c == nil {
		return nil
	}

	prefix := c.prefix
	if norm := normalizeKey(key); norm != "" {
		prefix += norm + ":"
	}

	input, ok := c.tree(prefix)
	if !ok {
		return nil
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          TagName,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			mapstructure.TextUnmarshallerHookFunc(),
		),
	})
	if err != nil {
		return err
	}

	return dec.Decode(input)
}

// node is one level of the key hierarchy during binding.
type node struct {
	name     string
	value    string
	children map[string]*node // lowercased segment -> child
}

func (n *node) child(segment string) *node {
	if n.children == nil {
		n.children = make(map[string]*node)
	}

	lower := strings.ToLower(segment)
	c, ok := n.children[lower]
	if !ok {
		c = &node{name: segment}
		n.children[lower] = c
	}
	return c
}

// tree returns the values below prefix as nested maps and slices. A prefix
// naming a single value returns that value.
func (c *Config) tree(prefix string) (any, bool) {
	depth := strings.Count(prefix, ":")
	root := &node{}
	found := false

	for norm, e := range c.values {
		if !strings.HasPrefix(norm, prefix) {
			continue
		}

		parts := strings.Split(e.path, ":")
		if len(parts) <= depth {
			continue
		}

		n := root
		for _, part := range parts[depth:] {
			n = n.child(part)
		}
		n.value = e.value
		found = true
	}

	if found {
		return root.build(), true
	}

	if e, ok := c.values[strings.TrimSuffix(prefix, ":")]; ok && prefix != "" {
		return e.value, true
	}

	return nil, false
}

// build converts n into the shape mapstructure decodes from. Children win
// over a value stored at the same path; children keyed 0..n-1 become a
// slice.
func (n *node) build() any {
	if len(n.children) == 0 {
		return n.value
	}

	if items, ok := n.indexed(); ok {
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = item.build()
		}
		return out
	}

	out := make(map[string]any, len(n.children))
	for _, c := range n.children {
		out[c.name] = c.build()
	}
	return out
}

func (n *node) indexed() ([]*node, bool) {
	items := make([]*node, len(n.children))
	for key, c := range n.children {
		i, err := strconv.Atoi(key)
		if err != nil || i < 0 || i >= len(items) || items[i] != nil {
			return nil, false
		}
		items[i] = c
	}
	return items, true
}
