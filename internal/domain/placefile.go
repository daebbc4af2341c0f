package domain

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	validTag     = "Valid:"
	timeRangeTag = "TimeRange"

	validLayout     = "15:04Z Mon Jan 02 2006"
	timeRangeLayout = "2006-01-02T15:04:05Z"
)

var (
	// validRe captures the timestamp after a Valid: tag,
	// e.g. "Valid: 00:30Z Tue Jul 16 2024" -> "00:30Z Tue Jul 16 2024".
	validRe = regexp.MustCompile(`Valid:[ \t]*(\d{2}:\d{2}Z [A-Za-z]{3} [A-Za-z]{3} \d{2} \d{4})`)

	// timeRangeStampRe matches one ISO-8601 UTC stamp of a TimeRange line.
	timeRangeStampRe = regexp.MustCompile(`\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}Z`)

	// coordRe matches a "lat, lon" pair such as "35.25, -97.47" or "35.25,|97.47".
	// The latitude sign is not part of the match.
	coordRe = regexp.MustCompile(`\d{1,2}\.\d+,[ ]?[|\s-]\d{1,3}\.\d+`)

	errTimeRangeCount = errors.New("fewer than two timestamps")
)

// LineResult describes what ShiftLine did to a single line.
type LineResult struct {
	TimeShifted bool
	Moved       bool
	Errors      []error // one *ParseError per rule that could not be applied
}

// Changed reports whether any rule rewrote the line.
func (r LineResult) Changed() bool {
	return r.TimeShifted || r.Moved
}

// ShiftLine rewrites one placefile line. Rules run in a fixed order: the
// Valid: timestamp, then the TimeRange pair, then the first coordinate pair
// (only when tr is non-nil). A rule that fails to parse leaves its span
// untouched and the remaining rules still run. Bytes outside the rewritten
// spans, including any line terminator, are preserved.
func ShiftLine(line string, shift time.Duration, tr Transposer) (string, LineResult) {
	var res LineResult
	out := line

	if strings.Contains(out, validTag) {
		shifted, err := shiftValid(out, shift)
		if err != nil {
			res.Errors = append(res.Errors, err)
		} else {
			res.TimeShifted = true
			out = shifted
		}
	}

	if strings.Contains(out, timeRangeTag) {
		shifted, err := shiftTimeRange(out, shift)
		if err != nil {
			res.Errors = append(res.Errors, err)
		} else {
			res.TimeShifted = true
			out = shifted
		}
	}

	if tr != nil {
		moved, ok, err := moveCoordinate(out, tr)
		if err != nil {
			res.Errors = append(res.Errors, err)
		} else if ok {
			res.Moved = true
			out = moved
		}
	}

	return out, res
}

func shiftValid(line string, shift time.Duration) (string, error) {
	m := validRe.FindStringSubmatchIndex(line)
	if m == nil {
		return line, &ParseError{Rule: "valid", Input: strings.TrimSpace(line)}
	}
	start, end := m[2], m[3]
	t, err := time.Parse(validLayout, line[start:end])
	if err != nil {
		return line, &ParseError{Rule: "valid", Input: line[start:end], Err: err}
	}
	return line[:start] + t.Add(shift).Format(validLayout) + line[end:], nil
}

func shiftTimeRange(line string, shift time.Duration) (string, error) {
	spans := timeRangeStampRe.FindAllStringIndex(line, 2)
	if len(spans) < 2 {
		return line, &ParseError{Rule: "timerange", Input: strings.TrimSpace(line), Err: errTimeRangeCount}
	}

	repl := make([]string, len(spans))
	for i, sp := range spans {
		t, err := time.Parse(timeRangeLayout, line[sp[0]:sp[1]])
		if err != nil {
			return line, &ParseError{Rule: "timerange", Input: line[sp[0]:sp[1]], Err: err}
		}
		repl[i] = t.Add(shift).Format(timeRangeLayout)
	}

	var b strings.Builder
	b.Grow(len(line))
	b.WriteString(line[:spans[0][0]])
	b.WriteString(repl[0])
	b.WriteString(line[spans[0][1]:spans[1][0]])
	b.WriteString(repl[1])
	b.WriteString(line[spans[1][1]:])
	return b.String(), nil
}

// moveCoordinate transposes the first coordinate pair on the line. ok is
// false when the line has no pair.
func moveCoordinate(line string, tr Transposer) (string, bool, error) {
	loc := coordRe.FindStringIndex(line)
	if loc == nil {
		return line, false, nil
	}
	p, err := ParseCoordinate(line[loc[0]:loc[1]])
	if err != nil {
		return line, false, err
	}
	return line[:loc[0]] + FormatCoordinate(tr.Transpose(p)) + line[loc[1]:], true, nil
}

// ParseCoordinate parses a pair matched by the coordinate pattern.
func ParseCoordinate(s string) (Point, error) {
	latStr, lonStr, ok := strings.Cut(s, ",")
	if !ok {
		return Point{}, &ParseError{Rule: "coordinate", Input: s}
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return Point{}, &ParseError{Rule: "coordinate", Input: s, Err: err}
	}
	lon, err := strconv.ParseFloat(strings.TrimLeft(lonStr, " \t\r\n\f|"), 64)
	if err != nil {
		return Point{}, &ParseError{Rule: "coordinate", Input: s, Err: err}
	}
	return Point{Lat: lat, Lon: lon}, nil
}

// FormatCoordinate renders p as "<lat>, <lon>" with the shortest exact decimals.
func FormatCoordinate(p Point) string {
	return strconv.FormatFloat(p.Lat, 'f', -1, 64) + ", " + strconv.FormatFloat(p.Lon, 'f', -1, 64)
}
