package core

import (
	"regexp"
	"strings"
)

var (
	playlistURIRegex = regexp.MustCompile(`spotify:playlist:([a-zA-Z0-9]+)`)
	albumURIRegex    = regexp.MustCompile(`spotify:album:([a-zA-Z0-9]+)`)
	playlistURLRegex = regexp.MustCompile(`(?:https?://)?open\.spotify\.com/playlist/([a-zA-Z0-9]+)`)
	albumURLRegex    = regexp.MustCompile(`(?:https?://)?open\.spotify\.com/album/([a-zA-Z0-9]+)`)
)

// ParseContextRef resolves a context reference (Spotify URI, open.spotify.com
// URL, or bare ID) to its kind and bare ID. Bare IDs are assumed to be
// playlists.
func ParseContextRef(ref string) (kind, id string) {
	ref = strings.TrimSpace(ref)

	if m := albumURIRegex.FindStringSubmatch(ref); len(m) > 1 {
		return "album", m[1]
	}
	if m := albumURLRegex.FindStringSubmatch(ref); len(m) > 1 {
		return "album", m[1]
	}
	if m := playlistURIRegex.FindStringSubmatch(ref); len(m) > 1 {
		return "playlist", m[1]
	}
	if m := playlistURLRegex.FindStringSubmatch(ref); len(m) > 1 {
		return "playlist", m[1]
	}

	return "playlist", ref
}

// CanonicalContextID reduces any supported reference form to the canonical
// spotify:<kind>:<id> URI. Store rows and session identity are keyed by this
// form, so a bare ID, a URI, and a share URL for the same playlist never
// fragment into separate play-count histories.
func CanonicalContextID(ref string) string {
	kind, id := ParseContextRef(ref)
	return "spotify:" + kind + ":" + id
}
