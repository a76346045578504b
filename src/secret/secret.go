// Package secret resolves named credentials from process configuration
// and keeps their values out of logs, artifacts, and serialized output.
package secret

import "fmt"

// Secret is a resolved credential. The value is reachable only through
// Value(); every printing path renders a redacted form.
type Secret struct {
	name  string
	value string
}

// Name returns the credential name.
func (s Secret) Name() string { return s.name }

// Value returns the raw credential value. Callers must scope the
// returned string to the minimal lifetime needed.
func (s Secret) Value() string { return s.value }

// String renders a redacted form so accidental %v/%s formatting never
// exposes the value.
func (s Secret) String() string { return s.name + "=***" }

// GoString keeps %#v output redacted as well.
func (s Secret) GoString() string { return "secret.Secret{" + s.name + "=***}" }

// MarshalText makes any serializer that honors encoding.TextMarshaler
// emit the redacted form.
func (s Secret) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnknownSecretError indicates a credential name absent from the
// resolver's configuration store.
type UnknownSecretError struct {
	Name string
}

func (e *UnknownSecretError) Error() string {
	return fmt.Sprintf("secret: unknown credential %q", e.Name)
}
