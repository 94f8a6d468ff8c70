package schema

import (
	"strconv"
	"strings"
)

// CompareVersions compares two dot-separated numeric version strings.
// Corresponding components are compared left to right as integers; missing
// components are treated as 0, so "1.2" equals "1.2.0". Non-numeric
// components compare as 0.
//
// Returns -1 if a < b, 0 if equal, 1 if a > b.
func CompareVersions(a, b string) int {
	partsA := strings.Split(a, ".")
	partsB := strings.Split(b, ".")

	n := len(partsA)
	if len(partsB) > n {
		n = len(partsB)
	}

	for i := 0; i < n; i++ {
		var numA, numB int
		if i < len(partsA) {
			numA, _ = strconv.Atoi(strings.TrimSpace(partsA[i]))
		}
		if i < len(partsB) {
			numB, _ = strconv.Atoi(strings.TrimSpace(partsB[i]))
		}
		if numA < numB {
			return -1
		}
		if numA > numB {
			return 1
		}
	}
	return 0
}
