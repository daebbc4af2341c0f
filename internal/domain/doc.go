// Package domain models the replay of a historical radar event as a
// simulated live feed.
//
// # Simulation Window
//
// A replay maps an event start (the historical time the storm began) onto a
// playback start two hours behind wall-clock time, snapped down to the half
// hour:
//
//	now 15:10Z  ->  playback start 13:00Z
//	now 15:45Z  ->  playback start 13:30Z
//
// Display clients only poll data that looks recent, which is why playback
// runs two hours behind. Every overlay timestamp is moved by the same
// SecondsShift (playback start minus event start), so the event plays back
// with its original cadence. The simulated clock begins ten minutes into the
// window and jump targets are offered every five minutes.
//
// # Placefile Conventions
//
// Placefiles are line-oriented UTF-8 overlays for radar display clients.
// Three constructs carry time or space:
//
//	Title: Surface Obs Valid: 00:30Z Tue Jul 16 2024
//	TimeRange: 2024-07-16T00:30:00Z 2024-07-16T00:35:00Z
//	Object: 35.25, -97.47
//
// Valid: stamps use "HH:MMZ Dow Mon DD YYYY". TimeRange lines carry two
// RFC 3339 UTC stamps (start and end). Coordinates are "lat,lon" decimal
// degrees with an optional space; longitudes may be prefixed by '|' in
// icon/text records. Only the first coordinate pair of a line is moved.
//
// Sources are never modified. Output goes to a "<stem>_shifted.txt" sibling so
// every run starts from pristine data.
//
// # Transposition
//
// Transposition relocates overlay features from the radar the event was
// recorded on to another radar, keeping each feature's range and bearing
// from the radar. The Earth is treated as a sphere with the WGS-84
// semi-major axis as its radius; at radar ranges (< 500 km) the error
// against an ellipsoidal solution is far below display resolution.
//
// # Playback
//
// Playback is a reducer over PlaybackSpec values. Ticks advance the clock by
// round(15 × speed) seconds; the clock is clamped to the window end, at which
// point playback completes. Pausing, jumping and changing speed never affect
// each other: a jump while paused stays paused, and a speed change never
// resumes playback.
package domain
