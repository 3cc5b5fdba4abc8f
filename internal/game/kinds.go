package game

import "fmt"

// RevealShape selects how a kind discloses its answer round by round.
type RevealShape string

const (
	RevealPixelate RevealShape = "pixelate" // cover/photo rendered at a pixel factor
	RevealAudio    RevealShape = "audio"    // preview played for N milliseconds
	RevealLines    RevealShape = "lines"    // lyric lines shown one more per round
	RevealVideo    RevealShape = "video"    // video looped at a timestamp
)

// Exact-match strategies beyond identifier equality.
type TitleMatch int

const (
	TitleMatchNone     TitleMatch = iota // identifier only
	TitleMatchEqual                      // case-insensitive title equality also counts
	TitleMatchContains                   // candidate title contains the target's key phrase
)

// KindConfig parameterizes the single engine for one variant.
type KindConfig struct {
	Kind       Kind
	Label      string // share header, e.g. "Song of the Day"
	StorageKey string // persistence key
	SearchType string // provider search type: track|artist|album|film
	Shape      RevealShape
	Partial    bool // creator match yields VerdictPartial
	TitleMatch TitleMatch
	Slots      int // >0 for per-slot (mashup) scoring

	// Defaults used by the catalog when an entry carries no schedule of its own.
	PixelFactors []int
	DurationsMs  []int

	// Max-clarity values.
	FullDurationMs int
	LoopSec        int
}

var (
	defaultPixelFactors = []int{60, 40, 25, 15, 8, 1}
	songDurationsMs     = []int{500, 1000, 4000, 8000, 16000, 30000}
	mashupDurationsMs   = []int{1000, 2000, 4000, 8000, 16000, 30000}
)

const (
	fullPreviewMs = 30000
	clipLoopSec   = 3
	mashupSlots   = 3
)

// Kinds is the registry of every supported variant.
var Kinds = map[Kind]KindConfig{
	KindSong: {
		Kind: KindSong, Label: "Song of the Day", StorageKey: "musicGameProgress", SearchType: "track",
		Shape: RevealAudio, Partial: true, TitleMatch: TitleMatchEqual,
		DurationsMs: songDurationsMs, FullDurationMs: fullPreviewMs,
	},
	KindArtist: {
		Kind: KindArtist, Label: "Artist of the Day", StorageKey: "artistGameProgress", SearchType: "artist",
		Shape: RevealPixelate, PixelFactors: defaultPixelFactors,
	},
	KindAlbum: {
		Kind: KindAlbum, Label: "Album of the Day", StorageKey: "albumGameProgress", SearchType: "album",
		Shape: RevealPixelate, Partial: true, PixelFactors: defaultPixelFactors,
	},
	KindLyrics: {
		Kind: KindLyrics, Label: "Lyrics of the Day", StorageKey: "lyricsGameProgress", SearchType: "track",
		Shape: RevealLines, Partial: true, TitleMatch: TitleMatchEqual,
	},
	KindFilm: {
		Kind: KindFilm, Label: "Film of the Day", StorageKey: "filmGameProgress", SearchType: "film",
		Shape: RevealAudio, DurationsMs: songDurationsMs, FullDurationMs: fullPreviewMs,
	},
	KindClip: {
		Kind: KindClip, Label: "Clip of the Day", StorageKey: "clipGameProgress", SearchType: "track",
		Shape: RevealVideo, TitleMatch: TitleMatchContains, LoopSec: clipLoopSec,
	},
	KindMashup: {
		Kind: KindMashup, Label: "Mashup of the Day", StorageKey: "mashupGameProgress", SearchType: "track",
		Shape: RevealAudio, TitleMatch: TitleMatchEqual, Slots: mashupSlots,
		DurationsMs: mashupDurationsMs, FullDurationMs: fullPreviewMs,
	},
}

// AllKinds lists kinds in display order.
var AllKinds = []Kind{KindSong, KindArtist, KindAlbum, KindLyrics, KindFilm, KindClip, KindMashup}

// ConfigFor looks up the configuration of a kind.
func ConfigFor(k Kind) (KindConfig, error) {
	cfg, ok := Kinds[k]
	if !ok {
		return KindConfig{}, fmt.Errorf("%w: %q", ErrUnknownKind, k)
	}
	return cfg, nil
}

// ParseKind converts a path/query value into a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if _, err := ConfigFor(k); err != nil {
		return "", err
	}
	return k, nil
}
