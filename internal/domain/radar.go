package domain

import "strings"

// Site is a radar location.
type Site struct {
	ID string `json:"id"`
	Point
}

// RadarSelection is the set of radars a session replays, plus the optional
// radar every feature is relocated to.
type RadarSelection struct {
	Radars   []Site
	NewRadar *Site
}

// Transposition builds the spatial transform for the selection. Relocation
// is only defined relative to a single origin radar, so a destination
// without exactly one origin is a configuration error.
func (s RadarSelection) Transposition() (Transposition, error) {
	if s.NewRadar == nil {
		var origin Point
		if len(s.Radars) > 0 {
			origin = s.Radars[0].Point
		}
		return Transposition{Origin: origin}, nil
	}
	if len(s.Radars) != 1 {
		return Transposition{}, &ConfigError{Field: "origin radar", Reason: "transposition needs exactly one origin radar"}
	}
	dest := s.NewRadar.Point
	return Transposition{Origin: s.Radars[0].Point, Dest: &dest}, nil
}

// TargetRadars are the radar IDs whose polling listings follow the playback
// clock: the destination radar when transposing, otherwise every selected radar.
func (s RadarSelection) TargetRadars() []string {
	if s.NewRadar != nil {
		return []string{strings.ToUpper(s.NewRadar.ID)}
	}
	ids := make([]string, 0, len(s.Radars))
	for _, r := range s.Radars {
		ids = append(ids, strings.ToUpper(r.ID))
	}
	return ids
}
