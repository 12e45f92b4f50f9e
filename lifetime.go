package activator

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Lifetime specifies how long an instance produced by a registration lives
// and how it is shared between resolutions.
type Lifetime int

const (
	// Singleton registrations produce one instance for the whole provider.
	// The instance is created on first request, owned by the root scope and
	// disposed when the provider is closed.
	Singleton Lifetime = iota

	// Scoped registrations produce one instance per scope. In web
	// applications a scope usually maps to a single request.
	Scoped

	// Transient registrations produce a new instance on every request.
	// Disposable transients are owned by the scope that resolved them.
	Transient
)

// String returns the string representation of the Lifetime.
func (l Lifetime) String() string {
	switch l {
	case Singleton:
		return "Singleton"
	case Scoped:
		return "Scoped"
	case Transient:
		return "Transient"
	default:
		return fmt.Sprintf("Unknown(%d)", int(l))
	}
}

// IsValid reports whether l is one of the defined lifetimes.
func (l Lifetime) IsValid() bool {
	return l >= Singleton && l <= Transient
}

// MarshalText implements encoding.TextMarshaler.
func (l Lifetime) MarshalText() ([]byte, error) {
	if !l.IsValid() {
		return nil, LifetimeError{Value: int(l)}
	}

	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Lifetime) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "singleton":
		*l = Singleton
	case "scoped":
		*l = Scoped
	case "transient":
		*l = Transient
	default:
		return LifetimeError{Value: string(text)}
	}

	return nil
}

// MarshalJSON implements json.Marshaler.
func (l Lifetime) MarshalJSON() ([]byte, error) {
	text, err := l.MarshalText()
	if err != nil {
		return nil, err
	}

	return json.Marshal(string(text))
}

// UnmarshalJSON implements json.Unmarshaler.
func (l *Lifetime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	return l.UnmarshalText([]byte(s))
}
