package domain

import "fmt"

// A Location is a fulfillment source holding its own stock of a size.
type Location string

const (
	LocationOnline Location = "online"
	LocationClub   Location = "club"
)

// Locations lists every location in consumption precedence order.
var Locations = [...]Location{LocationOnline, LocationClub}

func (l Location) Valid() bool {
	return l == LocationOnline || l == LocationClub
}

func (l Location) String() string {
	return string(l)
}

// ParseLocation returns [ErrInvalidLocation] for anything
// except "online" and "club".
func ParseLocation(s string) (Location, error) {
	l := Location(s)
	if !l.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidLocation, s)
	}
	return l, nil
}
