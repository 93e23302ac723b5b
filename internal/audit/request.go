package audit

import (
	"context"
	"net"
	"net/http"
	"strings"
)

type requestInfoKey struct{}

// RequestInfo carries client details of the request that caused an action.
type RequestInfo struct {
	IP        string
	UserAgent string
}

// WithRequest stores client details from r in ctx.
func WithRequest(ctx context.Context, r *http.Request) context.Context {
	if r == nil {
		return ctx
	}
	return context.WithValue(ctx, requestInfoKey{}, RequestInfo{
		IP:        ClientIP(r),
		UserAgent: r.UserAgent(),
	})
}

// RequestFromContext returns the client details stored by WithRequest.
func RequestFromContext(ctx context.Context) RequestInfo {
	if ctx == nil {
		return RequestInfo{}
	}
	info, _ := ctx.Value(requestInfoKey{}).(RequestInfo)
	return info
}

// ClientIP returns the originating client address of r.
func ClientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
