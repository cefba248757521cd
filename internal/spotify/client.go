// Package spotify wraps the Spotify Web API for playback, queue, and
// playlist operations used by the shuffle daemon.
package spotify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"shufflerd/internal/core"
)

const (
	// FilePermission is the permission for token files
	FilePermission = 0600
	// pageLimit is the page size for paginated track enumeration
	pageLimit = 100
)

type Client struct {
	config *core.SpotifyConfig
	logger *zap.Logger
	client *spotify.Client
	auth   *spotifyauth.Authenticator
	userID string
}

type TokenData struct {
	Token *oauth2.Token `json:"token"`
}

func NewClient(config *core.SpotifyConfig, logger *zap.Logger) *Client {
	auth := spotifyauth.New(
		spotifyauth.WithRedirectURL(config.RedirectURL),
		spotifyauth.WithScopes(
			spotifyauth.ScopePlaylistModifyPublic,
			spotifyauth.ScopePlaylistModifyPrivate,
			spotifyauth.ScopePlaylistReadPrivate,
			spotifyauth.ScopeUserModifyPlaybackState,
			spotifyauth.ScopeUserReadCurrentlyPlaying,
			spotifyauth.ScopeUserReadPlaybackState,
		),
		spotifyauth.WithClientID(config.ClientID),
		spotifyauth.WithClientSecret(config.ClientSecret),
	)

	return &Client{
		config: config,
		logger: logger,
		auth:   auth,
	}
}

func (c *Client) Authenticate(ctx context.Context) error {
	token, err := c.loadToken()
	if err != nil {
		c.logger.Info("No saved token found, starting OAuth flow")
		return c.startOAuthFlow(ctx)
	}

	client := spotify.New(c.auth.Client(ctx, token))

	user, err := client.CurrentUser(ctx)
	if err != nil {
		c.logger.Warn("Saved token invalid, starting OAuth flow", zap.Error(err))
		return c.startOAuthFlow(ctx)
	}

	c.client = client
	c.userID = user.ID

	c.logger.Info("Authenticated successfully", zap.String("user", user.DisplayName))
	return nil
}

// Authenticated reports whether a usable Spotify client is available.
func (c *Client) Authenticated() bool {
	return c.client != nil
}

// ContextTracks enumerates the full, paginated track list of a playlist or
// album context. A playlist whose items cannot be listed (Spotify's generated
// playlists respond 404) is reported as core.ContextUnavailableError.
func (c *Client) ContextTracks(ctx context.Context, contextID string) ([]core.Track, error) {
	if c.client == nil {
		return nil, core.ErrAuthRequired
	}

	kind, id := core.ParseContextRef(contextID)
	switch kind {
	case "album":
		return c.albumTracks(ctx, spotify.ID(id))
	default:
		return c.playlistTracks(ctx, contextID, spotify.ID(id))
	}
}

func (c *Client) playlistTracks(ctx context.Context, contextID string, id spotify.ID) ([]core.Track, error) {
	var tracks []core.Track
	offset := 0

	for {
		items, err := c.client.GetPlaylistItems(ctx, id,
			spotify.Limit(pageLimit), spotify.Offset(offset))
		if err != nil {
			if isNotFound(err) {
				return nil, &core.ContextUnavailableError{
					ContextID: contextID,
					Reason:    "playlist tracks cannot be enumerated (generated or inaccessible playlist)",
					Err:       err,
				}
			}
			return nil, fmt.Errorf("failed to get playlist items: %w", err)
		}

		for i := range items.Items {
			// Only tracks, not episodes or null items.
			if full := items.Items[i].Track.Track; full != nil {
				tracks = append(tracks, convertFullTrack(full))
			}
		}

		if len(items.Items) < pageLimit {
			break
		}
		offset += pageLimit
	}

	c.logger.Debug("Enumerated playlist tracks",
		zap.String("playlistID", string(id)),
		zap.Int("count", len(tracks)))

	return tracks, nil
}

func (c *Client) albumTracks(ctx context.Context, id spotify.ID) ([]core.Track, error) {
	var tracks []core.Track
	offset := 0

	for {
		page, err := c.client.GetAlbumTracks(ctx, id,
			spotify.Limit(pageLimit), spotify.Offset(offset))
		if err != nil {
			return nil, fmt.Errorf("failed to get album tracks: %w", err)
		}

		for i := range page.Tracks {
			tracks = append(tracks, convertSimpleTrack(&page.Tracks[i]))
		}

		if len(page.Tracks) < pageLimit {
			break
		}
		offset += pageLimit
	}

	c.logger.Debug("Enumerated album tracks",
		zap.String("albumID", string(id)),
		zap.Int("count", len(tracks)))

	return tracks, nil
}

// CurrentPlayback returns a snapshot of the player: whether it is playing,
// the context URI it plays from, and the current track ID.
func (c *Client) CurrentPlayback(ctx context.Context) (*core.Playback, error) {
	if c.client == nil {
		return nil, core.ErrAuthRequired
	}

	state, err := c.client.PlayerState(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get player state: %w", err)
	}

	playback := &core.Playback{}
	if state == nil {
		return playback, nil
	}

	playback.Playing = state.Playing
	playback.ContextURI = string(state.PlaybackContext.URI)
	if state.Item != nil {
		playback.TrackID = string(state.Item.ID)
	}

	return playback, nil
}

// QueueTrackIDs returns all track IDs currently in the device queue.
func (c *Client) QueueTrackIDs(ctx context.Context) ([]string, error) {
	if c.client == nil {
		return nil, core.ErrAuthRequired
	}

	queue, err := c.client.GetQueue(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get user queue: %w", err)
	}

	trackIDs := make([]string, 0, len(queue.Items))
	for i := range queue.Items {
		if queue.Items[i].ID != "" {
			trackIDs = append(trackIDs, string(queue.Items[i].ID))
		}
	}

	return trackIDs, nil
}

func (c *Client) AddToQueue(ctx context.Context, trackID string) error {
	if c.client == nil {
		return core.ErrAuthRequired
	}

	if err := c.client.QueueSong(ctx, spotify.ID(trackID)); err != nil {
		return fmt.Errorf("failed to add track to queue: %w", err)
	}

	c.logger.Info("Track added to queue", zap.String("trackID", trackID))
	return nil
}

// HasActiveDevice checks if any Spotify device is available for playback.
func (c *Client) HasActiveDevice(ctx context.Context) (bool, error) {
	if c.client == nil {
		return false, core.ErrAuthRequired
	}

	devices, err := c.client.PlayerDevices(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to get player devices: %w", err)
	}

	for _, device := range devices {
		if device.Active {
			c.logger.Debug("Found active device",
				zap.String("deviceName", device.Name),
				zap.String("deviceID", device.ID.String()))
			return true, nil
		}
	}

	c.logger.Debug("No active devices found", zap.Int("totalDevices", len(devices)))
	return false, nil
}

// PlayContext starts playback of the given playlist on the active device.
func (c *Client) PlayContext(ctx context.Context, playlistID string) error {
	if c.client == nil {
		return core.ErrAuthRequired
	}

	uri := spotify.URI("spotify:playlist:" + playlistID)
	if err := c.client.PlayOpt(ctx, &spotify.PlayOptions{PlaybackContext: &uri}); err != nil {
		return fmt.Errorf("failed to start playback: %w", err)
	}

	c.logger.Info("Playback started", zap.String("playlistID", playlistID))
	return nil
}

// CreatePlaylist creates a private playlist owned by the current user.
func (c *Client) CreatePlaylist(ctx context.Context, name string) (string, error) {
	if c.client == nil {
		return "", core.ErrAuthRequired
	}

	playlist, err := c.client.CreatePlaylistForUser(ctx, c.userID, name,
		"Managed by shufflerd", false, false)
	if err != nil {
		return "", fmt.Errorf("failed to create playlist: %w", err)
	}

	c.logger.Info("Playlist created",
		zap.String("playlistID", string(playlist.ID)),
		zap.String("name", name))

	return string(playlist.ID), nil
}

// UserPlaylists lists the current user's playlists.
func (c *Client) UserPlaylists(ctx context.Context) ([]core.PlaylistInfo, error) {
	if c.client == nil {
		return nil, core.ErrAuthRequired
	}

	var playlists []core.PlaylistInfo
	offset := 0

	for {
		page, err := c.client.CurrentUsersPlaylists(ctx,
			spotify.Limit(pageLimit/2), spotify.Offset(offset))
		if err != nil {
			return nil, fmt.Errorf("failed to list playlists: %w", err)
		}

		for i := range page.Playlists {
			playlists = append(playlists, core.PlaylistInfo{
				ID:   string(page.Playlists[i].ID),
				Name: page.Playlists[i].Name,
			})
		}

		if len(page.Playlists) < pageLimit/2 {
			break
		}
		offset += pageLimit / 2
	}

	return playlists, nil
}

func (c *Client) UnfollowPlaylist(ctx context.Context, playlistID string) error {
	if c.client == nil {
		return core.ErrAuthRequired
	}

	if err := c.client.UnfollowPlaylist(ctx, spotify.ID(playlistID)); err != nil {
		return fmt.Errorf("failed to unfollow playlist: %w", err)
	}

	c.logger.Info("Playlist removed", zap.String("playlistID", playlistID))
	return nil
}

func (c *Client) PlaylistTrackIDs(ctx context.Context, playlistID string) ([]string, error) {
	tracks, err := c.playlistTracks(ctx, playlistID, spotify.ID(playlistID))
	if err != nil {
		return nil, err
	}

	trackIDs := make([]string, 0, len(tracks))
	for _, track := range tracks {
		trackIDs = append(trackIDs, track.ID)
	}
	return trackIDs, nil
}

func (c *Client) AddToPlaylist(ctx context.Context, playlistID string, trackIDs ...string) error {
	if c.client == nil {
		return core.ErrAuthRequired
	}

	_, err := c.client.AddTracksToPlaylist(ctx, spotify.ID(playlistID), toSpotifyIDs(trackIDs)...)
	if err != nil {
		return fmt.Errorf("failed to add tracks to playlist: %w", err)
	}

	c.logger.Info("Tracks added to playlist",
		zap.String("playlistID", playlistID),
		zap.Int("count", len(trackIDs)))

	return nil
}

func (c *Client) RemoveFromPlaylist(ctx context.Context, playlistID string, trackIDs ...string) error {
	if c.client == nil {
		return core.ErrAuthRequired
	}

	_, err := c.client.RemoveTracksFromPlaylist(ctx, spotify.ID(playlistID), toSpotifyIDs(trackIDs)...)
	if err != nil {
		return fmt.Errorf("failed to remove tracks from playlist: %w", err)
	}

	return nil
}

func isNotFound(err error) bool {
	var spErr spotify.Error
	return errors.As(err, &spErr) && spErr.Status == http.StatusNotFound
}

func convertFullTrack(track *spotify.FullTrack) core.Track {
	var artists []string
	for _, artist := range track.Artists {
		artists = append(artists, artist.Name)
	}

	return core.Track{
		ID:       string(track.ID),
		URI:      string(track.URI),
		Title:    track.Name,
		Artists:  artists,
		Duration: time.Duration(track.Duration) * time.Millisecond,
	}
}

func convertSimpleTrack(track *spotify.SimpleTrack) core.Track {
	var artists []string
	for _, artist := range track.Artists {
		artists = append(artists, artist.Name)
	}

	return core.Track{
		ID:       string(track.ID),
		URI:      string(track.URI),
		Title:    track.Name,
		Artists:  artists,
		Duration: time.Duration(track.Duration) * time.Millisecond,
	}
}

func toSpotifyIDs(trackIDs []string) []spotify.ID {
	ids := make([]spotify.ID, 0, len(trackIDs))
	for _, trackID := range trackIDs {
		ids = append(ids, spotify.ID(trackID))
	}
	return ids
}

func (c *Client) startOAuthFlow(ctx context.Context) error {
	state := "shufflerd-auth-state"
	authURL := c.auth.AuthURL(state)

	fmt.Printf("Please visit the following URL to authorize the application:\n%s\n", authURL)
	fmt.Print("Enter the authorization code: ")

	var code string
	if _, err := fmt.Scanln(&code); err != nil {
		return fmt.Errorf("failed to read authorization code: %w", err)
	}

	token, err := c.auth.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to exchange code for token: %w", err)
	}

	if saveErr := c.saveToken(token); saveErr != nil {
		c.logger.Warn("Failed to save token", zap.Error(saveErr))
	}

	client := spotify.New(c.auth.Client(ctx, token))

	user, err := client.CurrentUser(ctx)
	if err != nil {
		return fmt.Errorf("failed to get current user: %w", err)
	}

	c.client = client
	c.userID = user.ID

	c.logger.Info("OAuth flow completed successfully", zap.String("user", user.DisplayName))
	return nil
}

func (c *Client) loadToken() (*oauth2.Token, error) {
	file, err := os.Open(c.config.TokenPath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}

	var tokenData TokenData
	if err := json.Unmarshal(data, &tokenData); err != nil {
		return nil, err
	}

	return tokenData.Token, nil
}

func (c *Client) saveToken(token *oauth2.Token) error {
	tokenData := TokenData{Token: token}

	data, err := json.MarshalIndent(tokenData, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(c.config.TokenPath, data, FilePermission)
}
