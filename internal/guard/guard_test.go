package guard

import "testing"

func TestDecide(t *testing.T) {
	tests := []struct {
		name     string
		hasToken bool
		path     string
		redirect string
	}{
		{"anonymous on dashboard", false, "/dashboard", "/login"},
		{"anonymous on home", false, "/", "/login"},
		{"anonymous on login", false, "/login", ""},
		{"signed in on login", true, "/login", "/"},
		{"signed in on dashboard", true, "/dashboard", ""},
		{"anonymous manifest", false, "/manifest.webmanifest", ""},
		{"anonymous service worker", false, "/sw.js", ""},
		{"signed in service worker", true, "/sw.js", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decide(tt.hasToken, tt.path)
			if got.Redirect != tt.redirect {
				t.Errorf("Decide(%v, %q).Redirect = %q, want %q", tt.hasToken, tt.path, got.Redirect, tt.redirect)
			}
			if got.Allowed() != (tt.redirect == "") {
				t.Errorf("Allowed() = %v, want %v", got.Allowed(), tt.redirect == "")
			}
		})
	}
}
