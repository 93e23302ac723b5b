package auth

import "context"

// Editor is the authenticated person behind a request.
type Editor struct {
	Subject string
	Name    string
	Role    Role
	TokenID string
}

// Label is the display name, falling back to the subject.
func (e Editor) Label() string {
	if e.Name != "" {
		return e.Name
	}
	return e.Subject
}

type editorKey struct{}

// WithEditor stores the editor in ctx.
func WithEditor(ctx context.Context, editor Editor) context.Context {
	return context.WithValue(ctx, editorKey{}, editor)
}

// EditorFromContext returns the editor stored by the middleware.
func EditorFromContext(ctx context.Context) (Editor, bool) {
	if ctx == nil {
		return Editor{}, false
	}
	editor, ok := ctx.Value(editorKey{}).(Editor)
	return editor, ok
}
