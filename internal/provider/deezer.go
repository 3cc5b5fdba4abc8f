package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"golang.org/x/time/rate"

	"github.com/michaljagosz/omnimusle/internal/game"
)

// DefaultDeezerURL is the public Deezer API.
const DefaultDeezerURL = "https://api.deezer.com"

const searchLimit = 5

// Deezer is a client for the public (keyless) Deezer API.
type Deezer struct {
	c client
}

func NewDeezer(baseURL string, hc *http.Client, lim *rate.Limiter) *Deezer {
	if baseURL == "" {
		baseURL = DefaultDeezerURL
	}
	return &Deezer{c: newClient("deezer", baseURL, hc, lim)}
}

// Deezer reports failures inside a 200 body.
type deezerError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

type deezerArtist struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	PictureSmall  string `json:"picture_small"`
	PictureMedium string `json:"picture_medium"`
	PictureXL     string `json:"picture_xl"`
}

type deezerAlbum struct {
	ID          int64        `json:"id"`
	Title       string       `json:"title"`
	CoverSmall  string       `json:"cover_small"`
	CoverMedium string       `json:"cover_medium"`
	CoverXL     string       `json:"cover_xl"`
	ReleaseDate string       `json:"release_date"`
	Artist      deezerArtist `json:"artist"`
}

type deezerTrack struct {
	ID      int64        `json:"id"`
	Title   string       `json:"title"`
	Preview string       `json:"preview"`
	Artist  deezerArtist `json:"artist"`
	Album   deezerAlbum  `json:"album"`
	Error   *deezerError `json:"error"`
}

type deezerList[T any] struct {
	Data  []T          `json:"data"`
	Error *deezerError `json:"error"`
}

// Track fetches a track by id.
func (d *Deezer) Track(ctx context.Context, id string) (deezerTrack, error) {
	var t deezerTrack
	if err := d.c.getJSON(ctx, "/track/"+url.PathEscape(id), nil, &t); err != nil {
		return deezerTrack{}, err
	}
	if err := validTrack(t, id); err != nil {
		return deezerTrack{}, err
	}
	return t, nil
}

func validTrack(t deezerTrack, id string) error {
	if t.Error != nil {
		return fmt.Errorf("%w: deezer track %s: %s", game.ErrTransientFetch, id, t.Error.Message)
	}
	if t.ID == 0 || t.Title == "" {
		return fmt.Errorf("%w: deezer track %s: incomplete payload", game.ErrTransientFetch, id)
	}
	return nil
}

// requirePreview rejects tracks without a playable preview.
func requirePreview(t deezerTrack) error {
	if t.Preview == "" {
		return fmt.Errorf("%w: deezer track %d has no preview", game.ErrTransientFetch, t.ID)
	}
	return nil
}

func search[T any](ctx context.Context, d *Deezer, path, q string, limit int) ([]T, error) {
	var res deezerList[T]
	v := url.Values{"q": {q}, "limit": {strconv.Itoa(limit)}}
	if err := d.c.getJSON(ctx, path, v, &res); err != nil {
		return nil, err
	}
	if res.Error != nil {
		return nil, fmt.Errorf("%w: deezer %s: %s", game.ErrTransientFetch, path, res.Error.Message)
	}
	return res.Data, nil
}

// SearchTracks searches tracks by free text.
func (d *Deezer) SearchTracks(ctx context.Context, q string) ([]game.Candidate, error) {
	ts, err := search[deezerTrack](ctx, d, "/search", q, searchLimit)
	if err != nil {
		return nil, err
	}
	out := make([]game.Candidate, 0, len(ts))
	for _, t := range ts {
		if t.ID == 0 {
			continue
		}
		out = append(out, trackCandidate(t))
	}
	return out, nil
}

// SearchArtists searches artists by name.
func (d *Deezer) SearchArtists(ctx context.Context, q string) ([]game.Candidate, error) {
	as, err := search[deezerArtist](ctx, d, "/search/artist", q, searchLimit)
	if err != nil {
		return nil, err
	}
	out := make([]game.Candidate, 0, len(as))
	for _, a := range as {
		if a.ID == 0 {
			continue
		}
		out = append(out, game.Candidate{ID: itoa(a.ID), Title: a.Name, Image: a.PictureSmall})
	}
	return out, nil
}

// SearchAlbums searches albums by free text.
func (d *Deezer) SearchAlbums(ctx context.Context, q string) ([]game.Candidate, error) {
	as, err := search[deezerAlbum](ctx, d, "/search/album", q, searchLimit)
	if err != nil {
		return nil, err
	}
	out := make([]game.Candidate, 0, len(as))
	for _, a := range as {
		if a.ID == 0 {
			continue
		}
		out = append(out, albumCandidate(a))
	}
	return out, nil
}

// FirstArtist returns the best match for q.
func (d *Deezer) FirstArtist(ctx context.Context, q string) (deezerArtist, error) {
	as, err := search[deezerArtist](ctx, d, "/search/artist", q, 1)
	if err != nil {
		return deezerArtist{}, err
	}
	if len(as) == 0 || as[0].ID == 0 || as[0].Name == "" {
		return deezerArtist{}, fmt.Errorf("%w: no artist for %q", game.ErrTransientFetch, q)
	}
	return as[0], nil
}

// FirstAlbum returns the best match for q.
func (d *Deezer) FirstAlbum(ctx context.Context, q string) (deezerAlbum, error) {
	as, err := search[deezerAlbum](ctx, d, "/search/album", q, 1)
	if err != nil {
		return deezerAlbum{}, err
	}
	if len(as) == 0 || as[0].ID == 0 || as[0].Title == "" {
		return deezerAlbum{}, fmt.Errorf("%w: no album for %q", game.ErrTransientFetch, q)
	}
	return as[0], nil
}

// FirstTrack returns the best match for q.
func (d *Deezer) FirstTrack(ctx context.Context, q string) (deezerTrack, error) {
	ts, err := search[deezerTrack](ctx, d, "/search", q, 1)
	if err != nil {
		return deezerTrack{}, err
	}
	if len(ts) == 0 || ts[0].ID == 0 {
		return deezerTrack{}, fmt.Errorf("%w: no track for %q", game.ErrTransientFetch, q)
	}
	return ts[0], nil
}

func trackCandidate(t deezerTrack) game.Candidate {
	return game.Candidate{
		ID:      itoa(t.ID),
		Title:   t.Title,
		Creator: t.Artist.Name,
		Image:   t.Album.CoverSmall,
	}
}

func albumCandidate(a deezerAlbum) game.Candidate {
	return game.Candidate{
		ID:      itoa(a.ID),
		Title:   a.Title,
		Creator: a.Artist.Name,
		Image:   a.CoverSmall,
		Year:    year(a.ReleaseDate),
	}
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }

// year returns the leading YYYY of a date string, or "".
func year(date string) string {
	if len(date) < 4 {
		return ""
	}
	return date[:4]
}
