package playback

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/bluenviron/gohlslib/v2/pkg/playlist"
	"github.com/jmylchreest/openwtv/pkg/extend"
)

// PlaylistKind distinguishes the two HLS playlist types.
type PlaylistKind string

const (
	PlaylistMultivariant PlaylistKind = "multivariant"
	PlaylistMedia        PlaylistKind = "media"
)

// ErrEmptyPlaylist is returned when a playlist parses but carries nothing playable.
var ErrEmptyPlaylist = errors.New("playlist has no variants or segments")

// PlaylistInfo summarises a verified playlist.
type PlaylistInfo struct {
	Kind           PlaylistKind `json:"kind"`
	Variants       int          `json:"variants,omitempty"`
	Segments       int          `json:"segments,omitempty"`
	TargetDuration int          `json:"target_duration,omitempty"`
	// VariantURL is the first variant, resolved against the playlist URL.
	VariantURL string `json:"variant_url,omitempty"`
}

// Verifier fetches a playback URL and checks that it is a well-formed HLS playlist.
type Verifier struct {
	transport extend.Transport
}

// NewVerifier creates a verifier that fetches playlists through transport.
func NewVerifier(transport extend.Transport) *Verifier {
	return &Verifier{transport: transport}
}

// Verify fetches playlistURL and parses it with gohlslib.
func (v *Verifier) Verify(ctx context.Context, playlistURL string) (*PlaylistInfo, error) {
	data, err := v.transport.Fetch(ctx, playlistURL)
	if err != nil {
		return nil, err
	}

	pl, err := playlist.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("parsing playlist: %w", err)
	}

	switch p := pl.(type) {
	case *playlist.Multivariant:
		if len(p.Variants) == 0 {
			return nil, ErrEmptyPlaylist
		}
		info := &PlaylistInfo{
			Kind:       PlaylistMultivariant,
			Variants:   len(p.Variants),
			VariantURL: resolveReference(playlistURL, p.Variants[0].URI),
		}
		return info, nil
	case *playlist.Media:
		if len(p.Segments) == 0 && !p.Endlist {
			return nil, ErrEmptyPlaylist
		}
		return &PlaylistInfo{
			Kind:           PlaylistMedia,
			Segments:       len(p.Segments),
			TargetDuration: p.TargetDuration,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported playlist type %T", pl)
	}
}

// resolveReference resolves a playlist entry URI against the playlist URL.
func resolveReference(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}
