// Package station holds the radio station list the player resolves
// station_request events against, and the HTTP helpers that retrieve it.
package station

// Station is a playable stream. Name is unique within a List.
type Station struct {
	Name  string `json:"name"`
	URL   string `json:"url"`
	Color string `json:"color,omitempty"`
}

// Summary is the url-stripped form sent to the control surface.
type Summary struct {
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// List is an ordered station list.
type List []Station

// Find returns the station whose name matches exactly.
func (l List) Find(name string) (Station, bool) {
	for _, s := range l {
		if s.Name == name {
			return s, true
		}
	}
	return Station{}, false
}

// Names returns the station names in list order.
func (l List) Names() []string {
	names := make([]string, len(l))
	for i, s := range l {
		names[i] = s.Name
	}
	return names
}

// Summaries returns the list without stream URLs.
func (l List) Summaries() []Summary {
	out := make([]Summary, len(l))
	for i, s := range l {
		out[i] = Summary{Name: s.Name, Color: s.Color}
	}
	return out
}
