// Package guard decides page navigation based on session presence.
package guard

const (
	LoginPath = "/login"
	HomePath  = "/"
)

// pwaFiles are served regardless of session state
var pwaFiles = map[string]bool{
	"/manifest.webmanifest": true,
	"/sw.js":                true,
}

// Decision is the outcome for one navigation. An empty Redirect allows it.
type Decision struct {
	Redirect string
}

// Allowed reports whether navigation proceeds without a redirect
func (d Decision) Allowed() bool {
	return d.Redirect == ""
}

// Decide routes anonymous users to the login page and keeps signed-in users
// off it. PWA support files always pass.
func Decide(hasToken bool, path string) Decision {
	if pwaFiles[path] {
		return Decision{}
	}

	if !hasToken && path != LoginPath {
		return Decision{Redirect: LoginPath}
	}

	if hasToken && path == LoginPath {
		return Decision{Redirect: HomePath}
	}

	return Decision{}
}
