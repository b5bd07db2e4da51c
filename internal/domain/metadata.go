package domain

// ContentMetadata identifies one piece of content on the source site.
type ContentMetadata struct {
	Title       string `json:"title"`
	ContentType string `json:"contentType"`
	ContentID   string `json:"contentId"`
	ReleaseYear string `json:"releaseYear"`
}

// Caption is a subtitle sidecar offered alongside a stream.
type Caption struct {
	Language string `json:"language"`
	URL      string `json:"srtFile"`
}

// Episode is one entry of a season's episode list.
type Episode struct {
	Title       string `json:"title"`
	ContentID   string `json:"contentId"`
	ManifestURL string `json:"manifest,omitempty"`
}

// Season groups the episodes of one series season in declared order.
type Season struct {
	Episodes []Episode `json:"episodes"`
}
