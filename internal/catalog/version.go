package catalog

import (
	"strconv"
	"strings"
)

// VersionNewer reports whether candidate is strictly newer than current,
// per spec §3: dotted-numeric vectors compared component-wise, the shorter
// vector padded with zeros; a lexical string compare is the fallback only
// when numeric parsing fails for either side.
func VersionNewer(current, candidate string) bool {
	curParts, curOK := parseVersion(current)
	candParts, candOK := parseVersion(candidate)

	if !curOK || !candOK {
		return candidate > current
	}

	n := len(curParts)
	if len(candParts) > n {
		n = len(candParts)
	}
	for i := 0; i < n; i++ {
		var c, d int
		if i < len(curParts) {
			c = curParts[i]
		}
		if i < len(candParts) {
			d = candParts[i]
		}
		if d != c {
			return d > c
		}
	}
	return false
}

func parseVersion(v string) ([]int, bool) {
	if v == "" {
		return nil, false
	}
	segments := strings.Split(v, ".")
	parts := make([]int, len(segments))
	for i, seg := range segments {
		n, err := strconv.Atoi(seg)
		if err != nil {
			return nil, false
		}
		parts[i] = n
	}
	return parts, true
}
