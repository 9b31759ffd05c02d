package interfaces

import (
	"context"
	"fmt"
	"net/url"
)

// StoreLocation represents URI for a key-value store backend.
type StoreLocation struct {
	Raw    string     // Original URI
	Scheme string     // Protocol
	Host   string     // Hostname
	Path   string     // Resource path
	Query  url.Values // Query parameters
	Auth   string     // Authentication info
}

// NewStoreLocation creates a new store location from a URI string with validation.
func NewStoreLocation(uri string) (StoreLocation, error) {
	parsed, err := url.Parse(uri)
	if err != nil {
		return StoreLocation{}, fmt.Errorf("%w: %v", ErrInvalidLocationURI, err)
	}

	scheme := parsed.Scheme
	switch scheme {
	case "memory", "file", "s3", "vault":
	default:
		return StoreLocation{}, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidLocationURI, scheme)
	}

	var auth string
	if parsed.User != nil {
		auth = parsed.User.String()
	}

	return StoreLocation{
		Raw:    uri,
		Scheme: scheme,
		Host:   parsed.Host,
		Path:   parsed.Path,
		Query:  parsed.Query(),
		Auth:   auth,
	}, nil
}

// String returns the original URI string.
func (loc StoreLocation) String() string {
	return loc.Raw
}

// GetParam returns a query parameter value.
func (loc StoreLocation) GetParam(name string) string {
	return loc.Query.Get(name)
}

// GetParamBool returns a boolean query parameter value.
func (loc StoreLocation) GetParamBool(name string) bool {
	value := loc.Query.Get(name)
	return value == "true" || value == "1" || value == "yes"
}

// KeyValueStore is a durable string-keyed byte store. One namespace of it is
// reserved for encrypted key records through a fixed key prefix.
type KeyValueStore interface {
	// Get returns the value for key or ErrKeyNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Keys lists all keys starting with prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)

	// Available reports whether the backend is reachable.
	Available(ctx context.Context) bool

	// Name returns identifier for logging.
	Name() string
}
