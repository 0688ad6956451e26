package models

// UnknownDuration marks entries whose runtime has not been probed.
const UnknownDuration = -1

// VideoEntry is one item of the remote playlist document. Entries are
// ordered (playback order) and duplicates are allowed.
type VideoEntry struct {
	Title    string `json:"title"`
	URL      string `json:"url"`
	Duration int    `json:"duration"`
}
