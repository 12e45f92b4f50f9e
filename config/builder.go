package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Builder layers configuration sources. Sources are applied in the order
// they were added; a later source overrides keys set by an earlier one.
//
// Example:
//
//	cfg, err := config.NewBuilder().
//	    AddJSONFile("appsettings.json", false).
//	    AddDotEnvFile(".env", true).
//	    AddEnvironment("APP_").
//	    Build()
type Builder struct {
	sources []source
}

// source writes its values into the shared set.
type source struct {
	name string
	load func(set func(key, value string)) error
}

// NewBuilder creates an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// AddJSONFile adds a JSON document read from path. Objects nest keys, and
// array elements are addressed by their index. When optional is true a
// missing file is skipped.
func (b *Builder) AddJSONFile(path string, optional bool) *Builder {
	return b.add("json file "+path, func(set func(key, value string)) error {
		data, err := os.ReadFile(path)
		if err != nil {
			if optional && errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		return loadJSON(data, set)
	})
}

// AddJSON adds a JSON document held in memory.
func (b *Builder) AddJSON(data []byte) *Builder {
	return b.add("json", func(set func(key, value string)) error {
		return loadJSON(data, set)
	})
}

// AddDotEnvFile adds the variables of a .env file. Variable names use "__"
// to separate sections, for example MAIL__HOST. When optional is true a
// missing file is skipped.
func (b *Builder) AddDotEnvFile(path string, optional bool) *Builder {
	return b.add("dotenv file "+path, func(set func(key, value string)) error {
		values, err := godotenv.Read(path)
		if err != nil {
			if optional && errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}

		for k, v := range values {
			set(k, v)
		}
		return nil
	})
}

// AddEnvironment adds the process environment. When prefix is not empty,
// only variables starting with it are used and the prefix is removed from
// their names.
func (b *Builder) AddEnvironment(prefix string) *Builder {
	return b.add("environment", func(set func(key, value string)) error {
		for _, kv := range os.Environ() {
			k, v, ok := strings.Cut(kv, "=")
			if !ok {
				continue
			}

			if prefix != "" {
				if k, ok = strings.CutPrefix(k, prefix); !ok {
					continue
				}
			}

			set(k, v)
		}
		return nil
	})
}

// AddMap adds values from nested maps, slices and scalars.
func (b *Builder) AddMap(values map[string]any) *Builder {
	return b.add("map", func(set func(key, value string)) error {
		flatten("", values, set)
		return nil
	})
}

func (b *Builder) add(name string, load func(set func(key, value string)) error) *Builder {
	b.sources = append(b.sources, source{name: name, load: load})
	return b
}

// Build loads every source and returns the resulting Config. It fails on
// the first source that cannot be loaded.
func (b *Builder) Build() (*Config, error) {
	values := make(map[string]entry)

	// The first spelling of a path segment wins so that sections keep a
	// stable name across sources.
	spelling := make(map[string]string)

	set := func(key, value string) {
		path := canonicalKey(key)
		if path == "" {
			return
		}

		parts := strings.Split(path, ":")
		for i := range parts {
			prefix := strings.ToLower(strings.Join(parts[:i+1], ":"))
			if spelled, ok := spelling[prefix]; ok {
				parts[i] = spelled
			} else {
				spelling[prefix] = parts[i]
			}
		}

		path = strings.Join(parts, ":")
		values[strings.ToLower(path)] = entry{path: path, value: value}
	}

	for _, src := range b.sources {
		if err := src.load(set); err != nil {
			return nil, fmt.Errorf("config: loading %s: %w", src.name, err)
		}
	}

	return newConfig(values), nil
}

func loadJSON(data []byte, set func(key, value string)) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return err
	}

	root, ok := doc.(map[string]any)
	if !ok {
		return fmt.Errorf("top-level JSON value must be an object, got %T", doc)
	}

	flatten("", root, set)
	return nil
}

// flatten walks value and reports every scalar under its ":" joined path.
func flatten(path string, value any, set func(key, value string)) {
	join := func(child string) string {
		if path == "" {
			return child
		}
		return path + ":" + child
	}

	switch v := value.(type) {
	case map[string]any:
		for k, child := range v {
			flatten(join(k), child, set)
		}
	case map[string]string:
		for k, child := range v {
			set(join(k), child)
		}
	case []any:
		for i, child := range v {
			flatten(join(strconv.Itoa(i)), child, set)
		}
	case nil:
		set(path, "")
	case string:
		set(path, v)
	case json.Number:
		set(path, v.String())
	case fmt.Stringer:
		set(path, v.String())
	default:
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
			for i := range rv.Len() {
				flatten(join(strconv.Itoa(i)), rv.Index(i).Interface(), set)
			}
			return
		}
		set(path, fmt.Sprint(v))
	}
}
