package core

import "testing"

func TestParseContextRef(t *testing.T) {
	cases := []struct {
		name     string
		ref      string
		wantKind string
		wantID   string
	}{
		{"playlist URI", "spotify:playlist:37i9dQZF1DXcBWIGoYBM5M", "playlist", "37i9dQZF1DXcBWIGoYBM5M"},
		{"album URI", "spotify:album:4aawyAB9vmqN3uQ7FjRGTy", "album", "4aawyAB9vmqN3uQ7FjRGTy"},
		{"playlist URL", "https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M", "playlist", "37i9dQZF1DXcBWIGoYBM5M"},
		{"playlist URL no scheme", "open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M", "playlist", "37i9dQZF1DXcBWIGoYBM5M"},
		{"album URL", "https://open.spotify.com/album/4aawyAB9vmqN3uQ7FjRGTy", "album", "4aawyAB9vmqN3uQ7FjRGTy"},
		{"bare ID defaults to playlist", "37i9dQZF1DXcBWIGoYBM5M", "playlist", "37i9dQZF1DXcBWIGoYBM5M"},
		{"whitespace trimmed", "  spotify:playlist:abc123  ", "playlist", "abc123"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			kind, id := ParseContextRef(tc.ref)
			if kind != tc.wantKind {
				t.Errorf("Expected kind %s, got %s", tc.wantKind, kind)
			}
			if id != tc.wantID {
				t.Errorf("Expected ID %s, got %s", tc.wantID, id)
			}
		})
	}
}

func TestCanonicalContextID(t *testing.T) {
	// Every way of naming the same playlist maps to one canonical form,
	// so play counts never split across reference styles.
	want := "spotify:playlist:abc"
	for _, ref := range []string{
		"abc",
		"spotify:playlist:abc",
		"https://open.spotify.com/playlist/abc",
		"open.spotify.com/playlist/abc",
	} {
		if got := CanonicalContextID(ref); got != want {
			t.Errorf("CanonicalContextID(%q) = %q, expected %q", ref, got, want)
		}
	}

	if got := CanonicalContextID("spotify:album:xyz"); got != "spotify:album:xyz" {
		t.Errorf("Expected spotify:album:xyz, got %s", got)
	}
}
