package metadata

import (
	"strconv"
	"strings"
)

// Version ordinals encode a dotted version string as a single comparable
// number: each of up to four dot-separated components is weighted by
// 1000^(3-index) and summed. Component values up to 999 order correctly;
// components beyond the fourth are ignored. The empty version maps to 0.
const (
	maxVersionComponents = 4
	versionComponentBase = 1000
)

// CalculateVersion converts a dotted version string to its 64-bit ordinal.
func CalculateVersion(version string) int64 {
	if version == "" {
		return 0
	}
	var ordinal int64
	weight := int64(versionComponentBase * versionComponentBase * versionComponentBase)
	for i, component := range strings.Split(version, ".") {
		if i >= maxVersionComponents {
			break
		}
		value, err := strconv.ParseInt(component, 10, 64)
		if err == nil {
			ordinal += value * weight
		}
		weight /= versionComponentBase
	}
	return ordinal
}

// VersionFromOrdinal converts an ordinal back to a dotted version string,
// trimming trailing zero components. The inverse of CalculateVersion for
// well-formed inputs of four or fewer components.
func VersionFromOrdinal(ordinal int64) string {
	if ordinal == 0 {
		return ""
	}
	components := []int64{
		ordinal / (versionComponentBase * versionComponentBase * versionComponentBase),
		(ordinal / (versionComponentBase * versionComponentBase)) % versionComponentBase,
		(ordinal / versionComponentBase) % versionComponentBase,
		ordinal % versionComponentBase,
	}
	last := len(components) - 1
	for last > 0 && components[last] == 0 {
		last--
	}
	parts := make([]string, 0, last+1)
	for _, c := range components[:last+1] {
		parts = append(parts, strconv.FormatInt(c, 10))
	}
	return strings.Join(parts, ".")
}
