package provider

import (
	"context"
	"net/http"
	"net/url"

	"golang.org/x/time/rate"

	"github.com/michaljagosz/omnimusle/internal/game"
)

const (
	DefaultTMDBURL = "https://api.themoviedb.org"
	tmdbImageBase  = "https://image.tmdb.org/t/p/"
)

// TMDB is a client for The Movie Database v3 API. Without an API key every call is a
// no-op: searches return nothing and posters are empty.
type TMDB struct {
	c      client
	apiKey string
}

func NewTMDB(baseURL, apiKey string, hc *http.Client, lim *rate.Limiter) *TMDB {
	if baseURL == "" {
		baseURL = DefaultTMDBURL
	}
	return &TMDB{c: newClient("tmdb", baseURL, hc, lim), apiKey: apiKey}
}

// Enabled reports whether an API key is configured.
func (t *TMDB) Enabled() bool { return t.apiKey != "" }

type tmdbResult struct {
	ID           int64  `json:"id"`
	MediaType    string `json:"media_type"`
	Title        string `json:"title"`
	Name         string `json:"name"`
	PosterPath   string `json:"poster_path"`
	ReleaseDate  string `json:"release_date"`
	FirstAirDate string `json:"first_air_date"`
}

type tmdbSearch struct {
	Results []tmdbResult `json:"results"`
}

type tmdbMovie struct {
	ID         int64  `json:"id"`
	Title      string `json:"title"`
	PosterPath string `json:"poster_path"`
}

// SearchFilms searches movies and TV shows.
func (t *TMDB) SearchFilms(ctx context.Context, q string) ([]game.Candidate, error) {
	if !t.Enabled() {
		return []game.Candidate{}, nil
	}
	var res tmdbSearch
	v := url.Values{"api_key": {t.apiKey}, "query": {q}, "include_adult": {"false"}}
	if err := t.c.getJSON(ctx, "/3/search/multi", v, &res); err != nil {
		return nil, err
	}
	return parseFilmResults(res.Results), nil
}

// parseFilmResults keeps movies and TV shows; TV shows carry their title in name.
func parseFilmResults(rs []tmdbResult) []game.Candidate {
	out := make([]game.Candidate, 0, len(rs))
	for _, r := range rs {
		if r.MediaType != "movie" && r.MediaType != "tv" {
			continue
		}
		title := r.Title
		if title == "" {
			title = r.Name
		}
		if r.ID == 0 || title == "" {
			continue
		}
		date := r.ReleaseDate
		if date == "" {
			date = r.FirstAirDate
		}
		c := game.Candidate{ID: itoa(r.ID), Title: title, Year: year(date)}
		if r.PosterPath != "" {
			c.Image = tmdbImageBase + "w92" + r.PosterPath
		}
		out = append(out, c)
	}
	return out
}

// Poster returns the w500 poster URL of a movie, or "" when it has none.
func (t *TMDB) Poster(ctx context.Context, movieID string) (string, error) {
	if !t.Enabled() {
		return "", nil
	}
	var m tmdbMovie
	v := url.Values{"api_key": {t.apiKey}}
	if err := t.c.getJSON(ctx, "/3/movie/"+url.PathEscape(movieID), v, &m); err != nil {
		return "", err
	}
	if m.PosterPath == "" {
		return "", nil
	}
	return tmdbImageBase + "w500" + m.PosterPath, nil
}
