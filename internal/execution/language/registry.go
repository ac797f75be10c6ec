// Package language maps logical language keys to judging backend ids.
package language

import (
	"sort"
	"strings"

	pkgerrors "judgegate/pkg/errors"
)

// Binding ties a language key to the backend's numeric compiler id.
type Binding struct {
	Key       string `json:"key"`
	BackendID int    `json:"backendId"`
}

// Bindings is the full table known to the backend.
var Bindings = []Binding{
	{Key: "javascript", BackendID: 63},
	{Key: "python", BackendID: 71},
	{Key: "java", BackendID: 62},
	{Key: "cpp", BackendID: 54},
	{Key: "c", BackendID: 50},
	{Key: "typescript", BackendID: 74},
	{Key: "go", BackendID: 60},
	{Key: "rust", BackendID: 73},
	{Key: "ruby", BackendID: 72},
	{Key: "csharp", BackendID: 51},
	{Key: "kotlin", BackendID: 78},
	{Key: "php", BackendID: 68},
}

// DefaultAllowList is the subset accepted for execution.
var DefaultAllowList = []string{"javascript", "python", "java", "cpp", "c", "typescript"}

// Registry is immutable after construction and safe for concurrent use.
type Registry struct {
	byKey   map[string]int
	byID    map[int]string
	allowed map[string]struct{}
}

// NewRegistry builds a registry from the table and allow-list.
// Allow-list entries missing from the table are ignored.
func NewRegistry(bindings []Binding, allowList []string) *Registry {
	r := &Registry{
		byKey:   make(map[string]int, len(bindings)),
		byID:    make(map[int]string, len(bindings)),
		allowed: make(map[string]struct{}, len(allowList)),
	}
	for _, b := range bindings {
		key := normalize(b.Key)
		r.byKey[key] = b.BackendID
		r.byID[b.BackendID] = key
	}
	for _, key := range allowList {
		key = normalize(key)
		if _, ok := r.byKey[key]; ok {
			r.allowed[key] = struct{}{}
		}
	}
	return r
}

// Default returns the registry with the built-in table and allow-list.
func Default() *Registry {
	return NewRegistry(Bindings, DefaultAllowList)
}

// IDFor resolves a language key case-insensitively.
func (r *Registry) IDFor(lang string) (int, error) {
	if id, ok := r.byKey[normalize(lang)]; ok {
		return id, nil
	}
	return 0, pkgerrors.Newf(pkgerrors.LanguageNotSupported, "Language %q is not supported", lang)
}

// Name is the reverse lookup of IDFor; unknown ids yield "unknown".
func (r *Registry) Name(id int) string {
	if key, ok := r.byID[id]; ok {
		return key
	}
	return "unknown"
}

// IsAllowed reports whether the language may be dispatched.
func (r *Registry) IsAllowed(lang string) bool {
	_, ok := r.allowed[normalize(lang)]
	return ok
}

// Supported lists the allow-listed languages in sorted order.
func (r *Registry) Supported() []string {
	out := make([]string, 0, len(r.allowed))
	for key := range r.allowed {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}

// AllowedBindings lists allow-listed languages with their backend ids.
func (r *Registry) AllowedBindings() []Binding {
	keys := r.Supported()
	out := make([]Binding, 0, len(keys))
	for _, key := range keys {
		out = append(out, Binding{Key: key, BackendID: r.byKey[key]})
	}
	return out
}

// Normalize canonicalises a language key.
func Normalize(lang string) string {
	return normalize(lang)
}

func normalize(lang string) string {
	return strings.ToLower(strings.TrimSpace(lang))
}
