package domain

// SelectOptions narrows what gets queued from a resolved content page.
type SelectOptions struct {
	Seasons  string // "1", "1,3" or "all"; empty selects everything
	Episodes string // "2", "1-3" or "all"; empty selects everything
	Height   int    // preferred rendition height, 0 picks highest bandwidth
	Raw      bool   // prefer the mezzanine MP4 when one exists
	Tag      string // release tag override for output names
}
