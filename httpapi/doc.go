// Package httpapi is a reference JSON-over-HTTP façade for authcore.Engine
// built on github.com/go-chi/chi/v5.
//
// It translates requests into Engine calls and Engine errors into status
// codes via [StatusFor]. It makes no authentication decisions of its own;
// bearer tokens are checked by [RequireBearer] against a [TokenParser].
package httpapi
