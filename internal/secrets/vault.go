// Package secrets holds runtime credentials (bot token, license API key) in
// a thread-safe vault with hot reload and log-safe redaction.
package secrets

import (
	"fmt"
	"strings"
	"sync"
)

// Loader retrieves secrets from a source (env vars, file, remote vault, etc.).
type Loader func() (map[string]string, error)

// Vault holds secret values in memory and supports atomic reloading, so a
// rotated bot token or license key can be picked up without a restart.
type Vault struct {
	mu     sync.RWMutex
	values map[string]string
	loader Loader
}

// NewVault creates a Vault, calling the loader once to populate initial values.
func NewVault(loader Loader) (*Vault, error) {
	vals, err := loader()
	if err != nil {
		return nil, fmt.Errorf("initial secret load: %w", err)
	}
	return &Vault{
		values: vals,
		loader: loader,
	}, nil
}

// Get returns the secret for key, or an empty string if not found.
func (v *Vault) Get(key string) string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.values[key]
}

// Keys returns the names of every loaded secret. Values are never exposed.
func (v *Vault) Keys() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()

	keys := make([]string, 0, len(v.values))
	for k := range v.values {
		keys = append(keys, k)
	}
	return keys
}

// Reload calls the loader and swaps in the new values atomically.
// If the loader returns an error, existing values are preserved.
func (v *Vault) Reload() error {
	newVals, err := v.loader()
	if err != nil {
		return fmt.Errorf("reload secrets: %w", err)
	}
	v.mu.Lock()
	v.values = newVals
	v.mu.Unlock()
	return nil
}

// Redacted returns a masked form of the secret for key, suitable for log
// output. Missing keys yield an empty string.
func (v *Vault) Redacted(key string) string {
	val := v.Get(key)
	if val == "" {
		return ""
	}
	return mask(val)
}

// RedactString replaces every vault value that appears in s with its masked
// form. Values shorter than four characters are left alone so trivial
// substrings do not get mangled.
func (v *Vault) RedactString(s string) string {
	v.mu.RLock()
	defer v.mu.RUnlock()

	for _, val := range v.values {
		if len(val) < 4 {
			continue
		}
		s = strings.ReplaceAll(s, val, mask(val))
	}
	return s
}

// mask keeps the first two characters of long values as a recognition aid.
// Short values (<= 4 chars) are fully masked.
func mask(val string) string {
	if len(val) <= 4 {
		return "****"
	}
	return val[:2] + "****"
}
