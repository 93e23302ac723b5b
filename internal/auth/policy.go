package auth

import (
	"net/http"
	"strings"
)

// Policy maps requests to the permission they need.
type Policy struct {
	ExemptPaths    map[string]struct{}
	ExemptPrefixes []string
}

// NewDefaultPolicy builds a default policy with exemptions.
func NewDefaultPolicy(exemptPaths []string, exemptPrefixes []string) Policy {
	set := make(map[string]struct{}, len(exemptPaths))
	for _, path := range exemptPaths {
		set[path] = struct{}{}
	}
	return Policy{ExemptPaths: set, ExemptPrefixes: exemptPrefixes}
}

// IsExempt reports whether a request skips authentication.
func (p Policy) IsExempt(r *http.Request) bool {
	if r == nil {
		return true
	}
	if _, ok := p.ExemptPaths[r.URL.Path]; ok {
		return true
	}
	for _, prefix := range p.ExemptPrefixes {
		if strings.HasPrefix(r.URL.Path, prefix) {
			return true
		}
	}
	return false
}

// Required resolves the permission a request needs. The second result is
// false for routes outside the API.
func (p Policy) Required(r *http.Request) (Permission, bool) {
	if r == nil {
		return "", false
	}
	path := r.URL.Path
	read := r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions

	switch {
	case path == "/api/v1/schema/fields", strings.HasPrefix(path, "/api/v1/datasets/"):
		return PermRead, true
	case strings.HasPrefix(path, "/api/v1/mappings/") && (strings.HasSuffix(path, "/export.xlsx") || strings.HasSuffix(path, "/export.pdf")):
		return PermExport, true
	case strings.HasPrefix(path, "/api/"):
		if read {
			return PermRead, true
		}
		return PermEdit, true
	}
	return "", false
}
