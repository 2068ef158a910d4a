// Package tokens implements the filename and asset-tag token grammar used to
// carry versioning metadata on plugin files. A versioned filename looks like
// "foo_v1.2.3_tandroid,ios.dll": the basename is followed by underscore-
// delimited tokens, each identified by a long or short prefix. The same
// grammar is reused for asset tags, which use the "vh_" namespace (rewritable)
// or the "vhp_" namespace (preserved across metadata regeneration).
package tokens

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// Kind identifies one token type in the filename/tag grammar.
type Kind int

const (
	// KindVersion is a dotted version string, e.g. "v1.2.3" or "version-1.2.3".
	KindVersion Kind = iota
	// KindTargets is a comma-separated platform list, e.g. "tandroid,ios".
	KindTargets
	// KindDotNet is a comma-separated .NET runtime version list, e.g. "dn4.5".
	KindDotNet
	// KindManifest marks the file as a package manifest. It carries no values.
	KindManifest
	// KindManifestName is an alias name for the package a manifest describes.
	// An optional leading numeric index encodes alias priority ("0Foo").
	KindManifestName
	// KindLinuxLibrary is the canonical basename of a native Linux library.
	KindLinuxLibrary
	// KindExportPath is the original export-relative path of the file.
	KindExportPath
)

// Tag namespace prefixes. LegacyTagPrefix tags may be rewritten or deleted
// when metadata is regenerated; PreserveTagPrefix tags must survive
// regeneration so reinstalling a package does not lose provenance.
const (
	LegacyTagPrefix   = "vh_"
	PreserveTagPrefix = "vhp_"

	// MarkerTag marks an asset as tracked by the reconciler.
	MarkerTag = "vh"
)

// kindSpec describes how one token kind is recognized and validated.
type kindSpec struct {
	kind     Kind
	long     string // long-form prefix including trailing separator
	short    string // short-form prefix, empty if none
	flag     bool   // token carries no values
	preserve bool   // default tag namespace is the preserve prefix
	valid    func(value string) bool
}

var (
	versionRe = regexp.MustCompile(`^[0-9][0-9.]+$`)
	targetRe  = regexp.MustCompile(`^(any|editor|android|ios|tvos|osx|linux|linux64|windows|win32|win64|webgl)$`)
	// priorityRe splits an alias token into its optional numeric priority
	// index and the alias name proper.
	priorityRe = regexp.MustCompile(`^([0-9]+)(.+)$`)
)

// ValidDotNetVersions enumerates the runtime version strings a dotnet token
// may carry. Anything else is treated as ordinary filename text.
var ValidDotNetVersions = []string{"3.5", "4.5"}

func validDotNet(value string) bool {
	for _, v := range ValidDotNetVersions {
		if value == v {
			return true
		}
	}
	return false
}

func validTarget(value string) bool {
	return targetRe.MatchString(strings.ToLower(value))
}

func validVersion(value string) bool {
	return versionRe.MatchString(value)
}

func nonEmpty(value string) bool {
	return value != ""
}

// kindSpecs is the ordered list of token kinds tried against each filename
// segment. Order matters: short prefixes like "v" and "t" would otherwise
// swallow segments intended for longer prefixes.
var kindSpecs = []kindSpec{
	{kind: KindManifest, long: "manifest", flag: true},
	{kind: KindManifestName, long: "manifestname-", short: "mn", preserve: true, valid: nonEmpty},
	{kind: KindLinuxLibrary, long: "linuxlibname-", valid: nonEmpty},
	{kind: KindExportPath, long: "exportpath-", preserve: true, valid: nonEmpty},
	{kind: KindVersion, long: "version-", short: "v", valid: validVersion},
	{kind: KindTargets, long: "targets-", short: "t", valid: validTarget},
	{kind: KindDotNet, long: "dotnet-", short: "dn", valid: validDotNet},
}

func specFor(kind Kind) kindSpec {
	for _, s := range kindSpecs {
		if s.kind == kind {
			return s
		}
	}
	return kindSpec{}
}

// Values maps each parsed token kind to its value list. A flag kind (manifest)
// is present with an empty value slice.
type Values map[Kind][]string

// Components is a filename decomposed into its directory, metadata-stripped
// basename, extension, and parsed metadata tokens.
type Components struct {
	Directory string
	Basename  string
	Extension string
	Tokens    Values
}

// Canonical reassembles the path with all metadata tokens stripped. This is
// the file's stable identity used for version grouping.
func (c Components) Canonical() string {
	name := c.Basename + c.Extension
	if c.Directory == "" || c.Directory == "." {
		return name
	}
	return filepath.ToSlash(filepath.Join(c.Directory, name))
}

// ParseFilename splits path into components and parses its metadata tokens.
// Segments that match no known prefix, or whose values fail validation, are
// reattached to the basename rather than discarded.
func ParseFilename(path string) Components {
	path = filepath.ToSlash(path)
	dir := ""
	base := path
	if i := strings.LastIndex(path, "/"); i >= 0 {
		dir = path[:i]
		base = path[i+1:]
	}
	ext := filepath.Ext(base)
	base = strings.TrimSuffix(base, ext)

	segments := strings.Split(base, "_")
	name := segments[0]
	values := Values{}
	for _, segment := range segments[1:] {
		kind, vals, ok := parseSegment(segment)
		if !ok {
			name += "_" + segment
			continue
		}
		values[kind] = append(values[kind], vals...)
	}

	return Components{
		Directory: dir,
		Basename:  name,
		Extension: ext,
		Tokens:    values,
	}
}

// parseSegment tries a single underscore-delimited segment against the known
// token kinds. Returns ok=false if the segment is not recognized metadata.
func parseSegment(segment string) (Kind, []string, bool) {
	for _, spec := range kindSpecs {
		if spec.flag {
			if segment == spec.long {
				return spec.kind, nil, true
			}
			continue
		}
		body := ""
		switch {
		case strings.HasPrefix(segment, spec.long):
			body = segment[len(spec.long):]
		case spec.short != "" && strings.HasPrefix(segment, spec.short):
			body = segment[len(spec.short):]
		default:
			continue
		}
		if body == "" {
			continue
		}
		vals := strings.Split(body, ",")
		if !validValues(spec, vals) {
			continue
		}
		if spec.kind == KindTargets {
			for i, v := range vals {
				vals[i] = strings.ToLower(v)
			}
		}
		return spec.kind, vals, true
	}
	return 0, nil, false
}

func validValues(spec kindSpec, vals []string) bool {
	if spec.valid == nil {
		return true
	}
	for _, v := range vals {
		if !spec.valid(v) {
			return false
		}
	}
	return true
}

// ParseTags parses an asset tag set into token values, recording which
// namespace prefix each kind was stored under. Tags in the preserve namespace
// win over legacy tags encoding the same kind. Tags outside both namespaces
// (and the bare marker tag) are returned in rest, untouched.
func ParseTags(tags []string) (values Values, prefixes map[Kind]string, rest []string) {
	values = Values{}
	prefixes = map[Kind]string{}
	for _, tag := range tags {
		if tag == MarkerTag {
			continue
		}
		prefix := ""
		switch {
		case strings.HasPrefix(tag, PreserveTagPrefix):
			prefix = PreserveTagPrefix
		case strings.HasPrefix(tag, LegacyTagPrefix):
			prefix = LegacyTagPrefix
		default:
			rest = append(rest, tag)
			continue
		}
		kind, vals, ok := parseSegment(tag[len(prefix):])
		if !ok {
			// Unrecognized tag in a reconciler namespace: keep it so a newer
			// tool version's tags are not destroyed by an older one.
			rest = append(rest, tag)
			continue
		}
		if existing, seen := prefixes[kind]; seen {
			if existing == PreserveTagPrefix && prefix == LegacyTagPrefix {
				continue
			}
		}
		values[kind] = vals
		prefixes[kind] = prefix
	}
	return values, prefixes, rest
}

// FormatTags renders token values back into tag strings, including the
// marker tag. prefixes carries the namespace each kind was previously stored
// under; kinds without an observed prefix use their default namespace.
// Output order is deterministic.
func FormatTags(values Values, prefixes map[Kind]string) []string {
	tags := []string{MarkerTag}
	for _, spec := range kindSpecs {
		vals, ok := values[spec.kind]
		if !ok {
			continue
		}
		prefix := LegacyTagPrefix
		if spec.preserve {
			prefix = PreserveTagPrefix
		}
		if observed, seen := prefixes[spec.kind]; seen {
			prefix = observed
		}
		if spec.flag {
			tags = append(tags, prefix+spec.long)
			continue
		}
		tags = append(tags, prefix+spec.long+strings.Join(vals, ","))
	}
	sort.Strings(tags)
	return tags
}

// FormatFilename renders a canonical path plus token values into a versioned
// filename. The inverse of ParseFilename for well-formed inputs.
func FormatFilename(canonical string, values Values) string {
	canonical = filepath.ToSlash(canonical)
	ext := filepath.Ext(canonical)
	base := strings.TrimSuffix(canonical, ext)
	var b strings.Builder
	b.WriteString(base)
	for _, spec := range kindSpecs {
		vals, ok := values[spec.kind]
		if !ok {
			continue
		}
		if spec.flag {
			fmt.Fprintf(&b, "_%s", spec.long)
			continue
		}
		fmt.Fprintf(&b, "_%s%s", spec.long, strings.Join(vals, ","))
	}
	b.WriteString(ext)
	return b.String()
}

// AliasPriority splits an alias token into its numeric priority index and the
// alias name. Tokens without a leading index get the lowest priority.
func AliasPriority(alias string) (int, string) {
	m := priorityRe.FindStringSubmatch(alias)
	if m == nil {
		return int(^uint(0) >> 1), alias
	}
	priority := 0
	for _, ch := range m[1] {
		priority = priority*10 + int(ch-'0')
	}
	return priority, m[2]
}
