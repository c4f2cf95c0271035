package config

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"

	"github.com/rollkit/multida/types"
)

// ErrConfig is wrapped by every configuration error.
var ErrConfig = errors.New("invalid configuration")

// BackendKind is the closed set of supported backend drivers.
type BackendKind string

const (
	// KindLedger posts segments to a ledger node REST gateway.
	KindLedger BackendKind = "ledger"
	// KindObjectStore writes segments to an object store bucket.
	KindObjectStore BackendKind = "object-store"
)

const (
	SchemeGCS        = "gcs"
	SchemeS3         = "s3"
	SchemeFilesystem = "filesystem"
)

// DAConfig configures the backend set and how a round is judged.
type DAConfig struct {
	SubmitStrategy types.SubmitStrategy `mapstructure:"submit_strategy"`
	Servers        []BackendConfig      `mapstructure:"servers"`
	// SubmitTimeout bounds one backend's submission within a round.
	SubmitTimeout time.Duration `mapstructure:"submit_timeout"`
}

// BackendConfig is a tagged variant; exactly one of Ledger and ObjectStore is set.
type BackendConfig struct {
	Kind        BackendKind
	Ledger      *LedgerConfig
	ObjectStore *ObjectStoreConfig
}

// LedgerConfig configures a ledger backend.
type LedgerConfig struct {
	// Namespace is 8 bytes, hex encoded.
	Namespace      string  `json:"namespace"`
	Conn           string  `json:"conn"`
	AuthToken      string  `json:"auth_token,omitempty"`
	MaxSegmentSize *uint64 `json:"max_segment_size,omitempty"`
	GasLimit       uint64  `json:"gas_limit,omitempty"`
	// Timeout bounds every gateway request, e.g. "30s". Empty means no bound.
	Timeout string `json:"timeout,omitempty"`
}

// ObjectStoreConfig configures an object store backend.
type ObjectStoreConfig struct {
	Scheme         string            `json:"scheme"`
	Params         map[string]string `json:"config"`
	MaxSegmentSize *uint64           `json:"max_segment_size,omitempty"`
}

// RequestTimeout returns the parsed Timeout, zero when unset or invalid.
func (c LedgerConfig) RequestTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0
	}
	return d
}

// WithDefaults returns a copy with unset values replaced by defaults.
func (c LedgerConfig) WithDefaults() LedgerConfig {
	if c.MaxSegmentSize == nil {
		c.MaxSegmentSize = uint64Ptr(DefaultLedgerMaxSegmentSize)
	}
	return c
}

// WithDefaults returns a copy with unset values replaced by defaults.
func (c ObjectStoreConfig) WithDefaults() ObjectStoreConfig {
	if c.MaxSegmentSize == nil {
		c.MaxSegmentSize = uint64Ptr(DefaultObjectStoreMaxSegmentSize)
	}
	if c.Scheme == "" {
		c.Scheme = SchemeGCS
	}
	c.Scheme = strings.ToLower(c.Scheme)
	return c
}

// MaxSegmentSize returns the configured segment limit, or zero if unset.
func (c BackendConfig) MaxSegmentSize() uint64 {
	var size *uint64
	switch {
	case c.Ledger != nil:
		size = c.Ledger.MaxSegmentSize
	case c.ObjectStore != nil:
		size = c.ObjectStore.MaxSegmentSize
	}
	if size == nil {
		return 0
	}
	return *size
}

// ParseBackendConfig parses the JSON form {"ledger": {...}} or {"object-store": {...}}.
func ParseBackendConfig(s string) (BackendConfig, error) {
	var c BackendConfig
	if err := json.Unmarshal([]byte(s), &c); err != nil {
		return BackendConfig{}, err
	}
	return c, nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *BackendConfig) UnmarshalJSON(data []byte) error {
	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(data, &tagged); err != nil {
		return fmt.Errorf("%w: parse backend config: %w", ErrConfig, err)
	}
	if len(tagged) != 1 {
		return fmt.Errorf("%w: backend config must have exactly one of %q or %q: %s", ErrConfig, KindLedger, KindObjectStore, data)
	}

	for kind, raw := range tagged {
		switch BackendKind(kind) {
		case KindLedger:
			var lc LedgerConfig
			if err := decodeStrict(raw, &lc); err != nil {
				return fmt.Errorf("%w: invalid %s config: %w", ErrConfig, kind, err)
			}
			*c = BackendConfig{Kind: KindLedger, Ledger: &lc}
		case KindObjectStore:
			var oc ObjectStoreConfig
			if err := decodeStrict(raw, &oc); err != nil {
				return fmt.Errorf("%w: invalid %s config: %w", ErrConfig, kind, err)
			}
			*c = BackendConfig{Kind: KindObjectStore, ObjectStore: &oc}
		default:
			return fmt.Errorf("%w: unknown backend kind %q", ErrConfig, kind)
		}
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (c BackendConfig) MarshalJSON() ([]byte, error) {
	switch c.Kind {
	case KindLedger:
		return json.Marshal(map[BackendKind]*LedgerConfig{KindLedger: c.Ledger})
	case KindObjectStore:
		return json.Marshal(map[BackendKind]*ObjectStoreConfig{KindObjectStore: c.ObjectStore})
	default:
		return nil, fmt.Errorf("%w: unknown backend kind %q", ErrConfig, c.Kind)
	}
}

func decodeStrict(data []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// ParseParams parses "key1=value1,key2=value2". Empty pairs are skipped and
// values may be empty, but every pair needs a key and an '='.
func ParseParams(s string) (map[string]string, error) {
	params := make(map[string]string)
	for _, kv := range strings.Split(s, ",") {
		if kv == "" {
			continue
		}
		key, value, found := strings.Cut(kv, "=")
		switch {
		case !found:
			return nil, fmt.Errorf("%w: each key=value pair must be separated by a comma and contain a key: %q", ErrConfig, kv)
		case strings.TrimSpace(key) == "":
			return nil, fmt.Errorf("%w: key is missing before '=': %q", ErrConfig, kv)
		}
		params[key] = value
	}
	return params, nil
}

// Normalize applies defaults, clamps the submit strategy to the backend count
// and validates the result. All problems found are reported together.
func (c *DAConfig) Normalize() error {
	var errs error
	if len(c.Servers) == 0 {
		errs = multierr.Append(errs, errors.New("at least one DA server is required"))
	}
	if c.SubmitTimeout < 0 {
		errs = multierr.Append(errs, fmt.Errorf("submit timeout must not be negative: %s", c.SubmitTimeout))
	}
	if c.SubmitTimeout == 0 {
		c.SubmitTimeout = DefaultSubmitTimeout
	}

	for i := range c.Servers {
		if err := c.Servers[i].normalize(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("server %d: %w", i, err))
		}
	}
	c.SubmitStrategy = c.SubmitStrategy.Clamp(len(c.Servers))

	if errs != nil {
		return fmt.Errorf("%w: %w", ErrConfig, errs)
	}
	return nil
}

// Threshold returns the number of acknowledgements a round needs.
func (c DAConfig) Threshold() int {
	return c.SubmitStrategy.Threshold(len(c.Servers))
}

func (c *BackendConfig) normalize() error {
	switch c.Kind {
	case KindLedger:
		if c.Ledger == nil {
			return errors.New("missing ledger config")
		}
		lc := c.Ledger.WithDefaults()
		c.Ledger = &lc
		return validateLedger(lc)
	case KindObjectStore:
		if c.ObjectStore == nil {
			return errors.New("missing object-store config")
		}
		oc := c.ObjectStore.WithDefaults()
		c.ObjectStore = &oc
		return validateObjectStore(oc)
	default:
		return fmt.Errorf("unknown backend kind %q", c.Kind)
	}
}

func validateLedger(c LedgerConfig) error {
	var errs error
	if ns, err := hex.DecodeString(c.Namespace); err != nil || len(ns) != 8 {
		errs = multierr.Append(errs, fmt.Errorf("namespace must be 8 hex encoded bytes: %q", c.Namespace))
	}
	if c.Conn == "" {
		errs = multierr.Append(errs, errors.New("missing conn"))
	}
	if c.Timeout != "" {
		if d, err := time.ParseDuration(c.Timeout); err != nil || d < 0 {
			errs = multierr.Append(errs, fmt.Errorf("invalid timeout %q", c.Timeout))
		}
	}
	if *c.MaxSegmentSize == 0 {
		errs = multierr.Append(errs, fmt.Errorf("max segment size must be positive: %w", types.ErrInvalidSegmentSize))
	}
	return errs
}

func validateObjectStore(c ObjectStoreConfig) error {
	var errs error
	switch c.Scheme {
	case SchemeGCS, SchemeS3:
		if c.Params["bucket"] == "" {
			errs = multierr.Append(errs, fmt.Errorf("%s: missing bucket param", c.Scheme))
		}
	case SchemeFilesystem:
		if c.Params["dir"] == "" {
			errs = multierr.Append(errs, fmt.Errorf("%s: missing dir param", c.Scheme))
		}
	default:
		errs = multierr.Append(errs, fmt.Errorf("unknown object store scheme %q", c.Scheme))
	}
	if *c.MaxSegmentSize == 0 {
		errs = multierr.Append(errs, fmt.Errorf("max segment size must be positive: %w", types.ErrInvalidSegmentSize))
	}
	return errs
}

func uint64Ptr(v uint64) *uint64 {
	return &v
}
