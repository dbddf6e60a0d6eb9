package room

import "fmt"

// TrackKind names the media category of a room track. The transport's
// raw codec type is translated into this type at the client boundary.
type TrackKind int

const (
	TrackAudio TrackKind = iota
	TrackVideo
)

// String returns the string representation of the kind.
func (k TrackKind) String() string {
	switch k {
	case TrackAudio:
		return "AUDIO"
	case TrackVideo:
		return "VIDEO"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(k))
	}
}
