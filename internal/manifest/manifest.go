package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"

	"github.com/grafov/m3u8"

	"vlget/internal/domain"
)

// ErrNotManifest indicates the content is not a recognizable playlist.
var ErrNotManifest = errors.New("not a recognizable playlist")

// ErrNoSegments indicates a media playlist that declares zero segments.
var ErrNoSegments = errors.New("playlist declares no segments")

// Variant is one rendition offered by a master playlist.
type Variant struct {
	Bandwidth  uint32
	Resolution string
	FrameRate  float64
	Codecs     string
	URI        string
}

// Height parses the vertical resolution out of "1920x1080". Returns 0 when
// the resolution is absent or malformed.
func (v Variant) Height() int {
	var w, h int
	if _, err := fmt.Sscanf(v.Resolution, "%dx%d", &w, &h); err != nil {
		return 0
	}
	return h
}

// Playlist is the tagged result of decoding manifest content: either a
// master listing of variants, or a single-rendition segment listing.
type Playlist struct {
	Master   bool
	Variants []Variant
	Segments []domain.SegmentDescriptor
}

// Decode parses manifest content and resolves every URI against base.
// Segment indices are assigned densely in declared play order; correctness
// of reassembly depends on that ordering.
func Decode(content []byte, base *url.URL) (*Playlist, error) {
	p, listType, err := m3u8.DecodeFrom(bytes.NewReader(content), true)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotManifest, err)
	}

	switch listType {
	case m3u8.MASTER:
		master := p.(*m3u8.MasterPlaylist)
		out := &Playlist{Master: true}
		for _, v := range master.Variants {
			if v == nil || v.URI == "" {
				continue
			}
			out.Variants = append(out.Variants, Variant{
				Bandwidth:  v.Bandwidth,
				Resolution: v.Resolution,
				FrameRate:  v.FrameRate,
				Codecs:     v.Codecs,
				URI:        resolveURL(base, v.URI),
			})
		}
		if len(out.Variants) == 0 {
			return nil, fmt.Errorf("%w: master playlist has no variants", ErrNoSegments)
		}
		return out, nil

	case m3u8.MEDIA:
		media := p.(*m3u8.MediaPlaylist)
		out := &Playlist{}
		for _, seg := range media.Segments {
			if seg == nil || seg.URI == "" {
				continue
			}
			out.Segments = append(out.Segments, domain.SegmentDescriptor{
				Index:    len(out.Segments),
				URL:      resolveURL(base, seg.URI),
				Duration: seg.Duration,
			})
		}
		if len(out.Segments) == 0 {
			return nil, ErrNoSegments
		}
		return out, nil

	default:
		return nil, ErrNotManifest
	}
}

// resolveURL resolves a possibly-relative reference against a base URL.
func resolveURL(base *url.URL, ref string) string {
	refURL, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	if base == nil {
		return ref
	}
	return base.ResolveReference(refURL).String()
}
