package ws

// Session is the per-connection state of the protocol. It is only touched by
// the goroutine reading the connection, so it carries no lock.
type Session struct {
	UserID    string
	Latitude  float64
	Longitude float64
	Radius    int
	PeerID    string
}

// Bound reports whether the connection has joined.
func (s *Session) Bound() bool {
	return s.UserID != ""
}

// Private reports whether the connection is focused on a direct chat.
func (s *Session) Private() bool {
	return s.PeerID != ""
}

func (s *Session) setLocation(lat, lon float64) {
	s.Latitude = lat
	s.Longitude = lon
}

// AllowedRadii lists the proximity radii, in kilometres, a client may select.
var AllowedRadii = []int{1, 5, 10}

func maxRadius() int {
	widest := 0
	for _, r := range AllowedRadii {
		if r > widest {
			widest = r
		}
	}
	return widest
}

// ValidRadius reports whether km is one of AllowedRadii.
func ValidRadius(km int) bool {
	for _, r := range AllowedRadii {
		if r == km {
			return true
		}
	}
	return false
}
