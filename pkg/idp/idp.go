package idp

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Idp identifies a supported external identity provider.
// The set is closed: unknown strings never parse into a zero-value default.
type Idp string

const (
	Github Idp = "github"
)

// ErrUnsupportedIdp is returned when a string does not name a supported provider.
var ErrUnsupportedIdp = fmt.Errorf("unsupported identity provider")

// Parse converts a wire string into an Idp. Matching is case-insensitive.
func Parse(value string) (Idp, error) {
	switch strings.ToLower(value) {
	case string(Github):
		return Github, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedIdp, value)
	}
}

// String returns the lowercase wire form.
func (i Idp) String() string {
	return string(i)
}

// Valid reports whether the value is one of the supported providers.
func (i Idp) Valid() bool {
	_, err := Parse(string(i))
	return err == nil
}

// MarshalJSON encodes the provider as its wire string.
func (i Idp) MarshalJSON() ([]byte, error) {
	if !i.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedIdp, string(i))
	}
	return json.Marshal(string(i))
}

// UnmarshalJSON decodes and validates the provider wire string.
func (i *Idp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := Parse(s)
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}
