// Package viewlift resolves ViewLift-hosted content pages into stream
// descriptors. It scrapes the Next.js flight payload off the content page
// for identity metadata, then talks to the platform video/content APIs for
// manifests, captions, audio languages and series listings.
package viewlift

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"

	"vlget/internal/domain"
	"vlget/internal/fetch"
	"vlget/internal/infra/config"
	"vlget/internal/infra/logger"
)

var (
	ErrInvalidURL  = errors.New("not a recognized content URL")
	ErrNoMetadata  = errors.New("no metadata payload on page")
	ErrNoRendition = errors.New("no renditions for content")
)

var (
	pathRe      = regexp.MustCompile(`(?i)^(?:https?://(?:www\.)?[^/]+)?(/(?:movies|films|shows|webseries)/[a-z0-9\-/]+)`)
	pushRe      = regexp.MustCompile(`(?s)self\.__next_f\.push\(\[1,"(.*?)"\]\)`)
	renditionRe = regexp.MustCompile(`/Renditions/(\d{8})/`)
)

type Client struct {
	cfg   config.APIConfig
	fetch *fetch.Client
	log   *logger.Logger
}

func New(cfg config.APIConfig, fc *fetch.Client, log *logger.Logger) *Client {
	return &Client{cfg: cfg, fetch: fc, log: log}
}

// ExtractPath reduces a pasted page URL to the site-relative content path.
// Share links carry the path in a permalink query parameter instead.
func ExtractPath(rawURL string) (string, error) {
	if m := pathRe.FindStringSubmatch(rawURL); m != nil {
		return m[1], nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidURL, rawURL)
	}
	if p := u.Query().Get("permalink"); p != "" {
		return p, nil
	}
	return "", fmt.Errorf("%w: %s", ErrInvalidURL, rawURL)
}

// ExtractPath on the client just forwards to the package function so the
// client satisfies the pipeline's resolver interface.
func (c *Client) ExtractPath(rawURL string) (string, error) {
	return ExtractPath(rawURL)
}

// FetchMetadata scrapes title, content type, content id and release year
// from the content page. The page embeds its data as a series of flight
// pushes; the longest one holds the details blob.
func (c *Client) FetchMetadata(ctx context.Context, contentPath string) (domain.ContentMetadata, error) {
	var meta domain.ContentMetadata

	page, err := c.fetch.FetchText(ctx, c.cfg.SiteURL+contentPath)
	if err != nil {
		return meta, err
	}

	matches := pushRe.FindAllStringSubmatch(page, -1)
	if len(matches) == 0 {
		return meta, ErrNoMetadata
	}
	blob := ""
	for _, m := range matches {
		if len(m[1]) > len(blob) {
			blob = m[1]
		}
	}

	// The payload is "<id>:<json>" inside a JS string literal.
	parts := strings.SplitN(blob, ":", 2)
	if len(parts) != 2 {
		return meta, ErrNoMetadata
	}
	decoded, err := unescapeJS(parts[1])
	if err != nil {
		return meta, fmt.Errorf("metadata payload unescape: %w", err)
	}

	var frame []json.RawMessage
	if err := json.Unmarshal([]byte(decoded), &frame); err != nil {
		return meta, fmt.Errorf("metadata payload parse: %w", err)
	}
	if len(frame) < 4 {
		return meta, ErrNoMetadata
	}
	var details struct {
		DetailsData domain.ContentMetadata `json:"detailsData"`
	}
	if err := json.Unmarshal(frame[3], &details); err != nil {
		return meta, fmt.Errorf("metadata payload parse: %w", err)
	}
	if details.DetailsData.ContentID == "" {
		return meta, ErrNoMetadata
	}
	return details.DetailsData, nil
}

// videoAsset is the shape shared by the video API's platform responses.
type videoAsset struct {
	Renditions []struct {
		MainManifestURL string `json:"mainManifestUrl"`
	} `json:"renditions"`
	ClosedCaptions []domain.Caption `json:"closedCaptions"`
	AudioLanguages []string         `json:"audioLanguages"`
}

// ManifestURL returns the master playlist URL for one content id, with the
// API's CDN host rewritten to the host that actually serves playlists.
func (c *Client) ManifestURL(ctx context.Context, contentID string) (string, error) {
	asset, err := c.videoAsset(ctx, contentID, "ROKU")
	if err != nil {
		return "", err
	}
	if len(asset.Renditions) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNoRendition, contentID)
	}
	u := asset.Renditions[0].MainManifestURL
	if c.cfg.CDNHostFrom != "" && c.cfg.CDNHostTo != "" {
		u = strings.Replace(u, c.cfg.CDNHostFrom, c.cfg.CDNHostTo, 1)
	}
	return u, nil
}

// Captions lists the subtitle sidecars offered for one content id.
func (c *Client) Captions(ctx context.Context, contentID string) ([]domain.Caption, error) {
	asset, err := c.videoAsset(ctx, contentID, "LG")
	if err != nil {
		return nil, err
	}
	return asset.ClosedCaptions, nil
}

// AudioLanguages lists the audio tracks offered for one content id.
func (c *Client) AudioLanguages(ctx context.Context, contentID string) ([]string, error) {
	asset, err := c.videoAsset(ctx, contentID, "LG")
	if err != nil {
		return nil, err
	}
	return asset.AudioLanguages, nil
}

// Seasons lists every season of a series with each episode's manifest URL
// resolved.
func (c *Client) Seasons(ctx context.Context, seriesID string) ([]domain.Season, error) {
	var payload struct {
		Seasons []domain.Season `json:"seasons"`
	}
	if err := c.apiGet(ctx, c.cfg.ContentURL, seriesID, "LG", &payload); err != nil {
		return nil, err
	}

	for si := range payload.Seasons {
		for ei := range payload.Seasons[si].Episodes {
			ep := &payload.Seasons[si].Episodes[ei]
			u, err := c.ManifestURL(ctx, ep.ContentID)
			if err != nil {
				c.log.Warn("no manifest for episode %q: %v", ep.Title, err)
				continue
			}
			ep.ManifestURL = u
		}
	}
	return payload.Seasons, nil
}

// DirectURL derives the mezzanine MP4 URL from a rendition manifest URL and
// probes it. An empty return means no direct file is available.
func (c *Client) DirectURL(ctx context.Context, manifestURL string) string {
	if c.cfg.MezzURL == "" {
		return ""
	}
	m := renditionRe.FindStringSubmatch(manifestURL)
	if m == nil {
		return ""
	}
	ymd := m[1]
	stem := strings.TrimSuffix(path.Base(manifestURL), path.Ext(manifestURL))
	raw := fmt.Sprintf("%s/%s/%s/%s.mp4", strings.TrimSuffix(c.cfg.MezzURL, "/"), ymd[:4], ymd[4:6], stem)

	if _, _, err := c.fetch.Probe(ctx, raw); err != nil {
		c.log.Debug("no mezzanine file at %s: %v", raw, err)
		return ""
	}
	return raw
}

// videoAsset queries the video API for one content id. The API answers
// with either a bare object or a one-element array depending on platform.
func (c *Client) videoAsset(ctx context.Context, contentID, platform string) (videoAsset, error) {
	var asset videoAsset
	err := c.apiGet(ctx, c.cfg.VideoURL, contentID, platform, &asset)
	return asset, err
}

func (c *Client) apiGet(ctx context.Context, endpoint, contentID, platform string, v any) error {
	q := url.Values{}
	q.Set("platform", platform)
	q.Set("language", "english")
	q.Set("contentIds", contentID)

	var raw json.RawMessage
	header := map[string]string{"x-api-key": c.cfg.SiteID}
	if err := c.fetch.FetchJSON(ctx, endpoint+"?"+q.Encode(), header, &raw); err != nil {
		return err
	}

	body := []byte(strings.TrimSpace(string(raw)))
	if len(body) > 0 && body[0] == '[' {
		var arr []json.RawMessage
		if err := json.Unmarshal(body, &arr); err != nil {
			return err
		}
		if len(arr) == 0 {
			return fmt.Errorf("empty response for content %s", contentID)
		}
		body = arr[0]
	}
	return json.Unmarshal(body, v)
}

// unescapeJS decodes the backslash escapes of a JS string literal body,
// including \uXXXX sequences.
func unescapeJS(s string) (string, error) {
	// Forward slashes may arrive pre-escaped, which strconv rejects.
	s = strings.ReplaceAll(s, `\/`, `/`)
	out, err := strconv.Unquote(`"` + s + `"`)
	if err != nil {
		return "", err
	}
	return out, nil
}
