// SPDX-License-Identifier: MIT
package capture

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHostFromURL(t *testing.T) {
	tests := []struct {
		rawURL string
		want   string
	}{
		{"https://www.example.com/path?q=1", "example.com"},
		{"https://github.com/owner/repo", "github.com"},
		{"http://localhost:8080/app", "localhost:8080"},
		{"https://www.www-archive.org", "www-archive.org"},
		{"not a url at all\x7f://", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HostFromURL(tt.rawURL), "url %q", tt.rawURL)
	}
}

func TestIsBrowserAliases(t *testing.T) {
	r := NewHistoryResolverAt(t.TempDir())

	for _, app := range []string{"firefox", "Firefox", "Navigator", "librewolf", "brave", "chromium-browser", "google-chrome"} {
		assert.True(t, r.IsBrowser(app), "app %q", app)
	}
	for _, app := range []string{"konsole", "codium", "", "firefox-nightly"} {
		assert.False(t, r.IsBrowser(app), "app %q", app)
	}
}

func TestDomainNoHistory(t *testing.T) {
	r := NewHistoryResolverAt(t.TempDir())
	assert.Empty(t, r.Domain("firefox"))
	assert.Empty(t, r.Domain("konsole"))
}
