package entity

// Segment is one entry of a media playlist. Index is the segment's position
// in the playlist; output bytes must be concatenated in Index order.
type Segment struct {
	Index    int
	URL      string
	Duration float64
}

// MediaPlaylist is the result of playlist resolution: the resolved media
// playlist URL and its ordered segments with absolute URLs.
type MediaPlaylist struct {
	URL      string
	Segments []Segment
}
