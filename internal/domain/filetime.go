package domain

import (
	"regexp"
	"time"
)

// fileStampRe finds the YYYYMMDD_HHMM[SS] stamp carried by Level-II volume and
// hodograph image names, e.g. "KTLX20240716_003012_V06" or "KTLX_20240716_0030_hodo.png".
var fileStampRe = regexp.MustCompile(`(\d{8})_(\d{4})(\d{2})?`)

// FileTime extracts the UTC timestamp embedded in a data file name.
func FileTime(name string) (time.Time, bool) {
	m := fileStampRe.FindStringSubmatch(name)
	if m == nil {
		return time.Time{}, false
	}
	sec := m[3]
	if sec == "" {
		sec = "00"
	}
	t, err := time.Parse("20060102150405", m[1]+m[2]+sec)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
