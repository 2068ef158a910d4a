// Package host defines the contracts the reconciliation engine needs from the
// host application: an asset tag store, a per-platform plugin-compatibility
// store, and basic file operations. The engine never talks to the host's real
// database directly; it goes through these interfaces so batch runs and tests
// can substitute implementations.
package host

import "fmt"

// Platform is a lowercase build-target platform name.
type Platform string

// Platforms the reconciler knows how to target.
const (
	PlatformAndroid Platform = "android"
	PlatformIOS     Platform = "ios"
	PlatformTVOS    Platform = "tvos"
	PlatformOSX     Platform = "osx"
	PlatformLinux   Platform = "linux"
	PlatformLinux64 Platform = "linux64"
	PlatformWindows Platform = "windows"
	PlatformWin32   Platform = "win32"
	PlatformWin64   Platform = "win64"
	PlatformWebGL   Platform = "webgl"
)

// AllPlatforms lists every platform the reconciler can enable, in stable
// order. The "any" target token expands to this list minus the capability
// blacklist at query time.
var AllPlatforms = []Platform{
	PlatformAndroid,
	PlatformIOS,
	PlatformTVOS,
	PlatformOSX,
	PlatformLinux,
	PlatformLinux64,
	PlatformWindows,
	PlatformWin32,
	PlatformWin64,
	PlatformWebGL,
}

// Capabilities describes what the running host supports. It is resolved once
// at startup and injected; components never probe the host at runtime.
type Capabilities struct {
	// CompatibilityAPI reports whether the host exposes per-platform plugin
	// compatibility flags. When false the engine degrades to read-only
	// reporting.
	CompatibilityAPI bool

	// ActiveDotNet is the runtime version the host is currently running
	// plugins against, e.g. "4.5".
	ActiveDotNet string

	// Blacklist lists legacy platforms this host version no longer supports.
	// Blacklisted platforms are never enabled, even via "any".
	Blacklist []Platform
}

// Blacklisted reports whether p is on the capability blacklist.
func (c Capabilities) Blacklisted(p Platform) bool {
	for _, b := range c.Blacklist {
		if b == p {
			return true
		}
	}
	return false
}

// EnabledPlatforms returns AllPlatforms minus the blacklist.
func (c Capabilities) EnabledPlatforms() []Platform {
	var out []Platform
	for _, p := range AllPlatforms {
		if !c.Blacklisted(p) {
			out = append(out, p)
		}
	}
	return out
}

// PlatformFromName resolves a target token to a platform. The "editor" and
// "any" tokens are handled by the caller, not here.
func PlatformFromName(name string) (Platform, bool) {
	for _, p := range AllPlatforms {
		if string(p) == name {
			return p, true
		}
	}
	return "", false
}

// Flags is a snapshot of one file's compatibility flags in the host database.
type Flags struct {
	// Any is the "compatible with any platform" wildcard. When set it
	// overrides the explicit per-platform flags, so it must be cleared
	// before explicit flags take effect.
	Any bool

	// Editor reports editor-load compatibility.
	Editor bool

	// Platforms holds the explicit per-platform flags. Missing keys read as
	// disabled.
	Platforms map[Platform]bool
}

// Platform reads one per-platform flag, defaulting to disabled.
func (f Flags) Platform(p Platform) bool {
	return f.Platforms[p]
}

// TagStore is the host's durable per-asset metadata cache.
type TagStore interface {
	// Tags returns the tag set recorded for path.
	Tags(path string) ([]string, error)

	// SetTags replaces the tag set recorded for path.
	SetTags(path string, tags []string) error

	// Exists reports whether the asset index knows path, returning its
	// host-assigned identifier when it does.
	Exists(path string) (string, bool)
}

// CompatStore is the host's plugin-compatibility flag store. Writers must
// read current flags first and only mutate actual deltas; redundant writes
// trigger needless reimports in the host.
type CompatStore interface {
	Flags(path string) (Flags, error)
	SetAny(path string, enabled bool) error
	SetEditor(path string, enabled bool) error
	SetPlatform(path string, p Platform, enabled bool) error
}

// FileOps covers the host-mediated file mutations the engine performs.
type FileOps interface {
	// Move relocates an asset, carrying its index entry along.
	Move(oldPath, newPath string) error

	// Delete removes an asset and its index entry.
	Delete(path string) error
}

// Database is the full collaborator surface: tag store, compatibility store,
// and file operations, plus the read-only location test.
type Database interface {
	TagStore
	CompatStore
	FileOps

	// ReadOnly reports whether path lives in an externally managed location
	// whose tags and flags must never be rewritten.
	ReadOnly(path string) bool
}

// ErrUnknownPath is returned by stores asked about a path the asset index
// does not contain.
type ErrUnknownPath struct {
	Path string
}

func (e *ErrUnknownPath) Error() string {
	return fmt.Sprintf("asset index does not contain %s", e.Path)
}
