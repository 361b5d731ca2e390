// SPDX-License-Identifier: MIT

// Package activity derives sessions, breaks and day metrics from raw window
// events and produces the AI day narrative.
package activity

import "strings"

// categoryOrder fixes the fallback scan order so an app class matching
// keywords from two categories always resolves to the same one.
var categoryOrder = []string{
	"coding", "terminal", "browser", "communication", "media", "files", "office",
}

var categoryKeywords = map[string][]string{
	"coding": {
		"code", "codium", "vscodium", "neovim", "nvim", "vim", "kate", "zed",
		"jetbrains", "pycharm", "webstorm", "intellij", "clion", "goland",
		"rider", "phpstorm", "rustrover", "sublime", "atom", "gedit",
	},
	"terminal": {
		"konsole", "alacritty", "kitty", "wezterm", "foot", "gnome-terminal",
		"xterm", "terminator", "tilix", "yakuake",
	},
	"browser": {
		"firefox", "librewolf", "chromium", "google-chrome", "brave",
		"vivaldi", "opera", "epiphany", "midori", "zen",
	},
	"communication": {
		"thunderbird", "discord", "telegram", "signal", "slack", "element",
		"teams", "zoom", "skype", "matrix", "nheko",
	},
	"media": {
		"mpv", "vlc", "spotify", "gwenview", "elisa", "audacious",
		"celluloid", "totem", "rhythmbox", "eog", "loupe",
	},
	"files": {
		"dolphin", "nautilus", "thunar", "nemo", "pcmanfm", "ranger",
	},
	"office": {
		"libreoffice", "okular", "evince", "zathura", "calibre", "xournalpp",
	},
}

var categoryByKeyword = func() map[string]string {
	m := make(map[string]string)
	for cat, keywords := range categoryKeywords {
		for _, kw := range keywords {
			m[kw] = cat
		}
	}
	return m
}()

// Categorize maps an app class to its activity category; "other" when no
// keyword matches. An exact keyword match wins over a substring match.
func Categorize(appClass string) string {
	lower := strings.ToLower(appClass)
	if cat, ok := categoryByKeyword[lower]; ok {
		return cat
	}
	for _, cat := range categoryOrder {
		for _, kw := range categoryKeywords[cat] {
			if strings.Contains(lower, kw) {
				return cat
			}
		}
	}
	return "other"
}
