package auth

import (
	"encoding/json"
	"net/http"
	"strings"
)

// Middleware validates bearer tokens and checks the permission a route needs.
type Middleware struct {
	Secret []byte
	Policy Policy
}

// NewMiddleware constructs an auth middleware.
func NewMiddleware(secret []byte, policy Policy) *Middleware {
	return &Middleware{Secret: secret, Policy: policy}
}

type deniedBody struct {
	Error    string     `json:"error"`
	Kind     string     `json:"kind"`
	Required Permission `json:"required,omitempty"`
}

// Wrap applies authentication and permission checks to the handler.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.Policy.IsExempt(r) {
			next.ServeHTTP(w, r)
			return
		}
		required, ok := m.Policy.Required(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := ParseJWT(extractBearer(r), m.Secret)
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="datamap"`)
			deny(w, http.StatusUnauthorized, deniedBody{Error: "a valid bearer token is required", Kind: "unauthenticated"})
			return
		}
		editor := claims.Editor()
		if !editor.Role.Can(required) {
			deny(w, http.StatusForbidden, deniedBody{
				Error:    "role " + string(editor.Role) + " may not perform this action",
				Kind:     "forbidden",
				Required: required,
			})
			return
		}
		next.ServeHTTP(w, r.WithContext(WithEditor(r.Context(), editor)))
	})
}

func deny(w http.ResponseWriter, status int, body deniedBody) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func extractBearer(r *http.Request) string {
	if r == nil {
		return ""
	}
	parts := strings.Fields(r.Header.Get("Authorization"))
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
