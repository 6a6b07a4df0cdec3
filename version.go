package mcp

// ProtocolVersion is one entry in the closed, totally ordered set of
// protocol version strings this library understands. Comparisons are by
// index into SupportedProtocolVersions, not lexical string comparison —
// an unknown string is simply absent from the set.
type ProtocolVersion string

// SupportedProtocolVersions is the closed, ordered set of versions this
// peer negotiates, oldest first. OldestProtocolVersion and
// LatestProtocolVersion are derived from the two ends of this slice.
var SupportedProtocolVersions = []ProtocolVersion{
	"2024-11-05",
	"2025-03-26",
	"2025-06-18",
}

// OldestProtocolVersion is the earliest version this library negotiates.
func OldestProtocolVersion() ProtocolVersion {
	return SupportedProtocolVersions[0]
}

// LatestProtocolVersion is the newest version this library negotiates;
// the server falls back to it whenever the client proposes an unknown
// version.
func LatestProtocolVersion() ProtocolVersion {
	return SupportedProtocolVersions[len(SupportedProtocolVersions)-1]
}

// versionIndex returns v's position in SupportedProtocolVersions, or -1
// if v is not a version this library knows about.
func versionIndex(v ProtocolVersion) int {
	for i, sv := range SupportedProtocolVersions {
		if sv == v {
			return i
		}
	}
	return -1
}

// IsSupportedProtocolVersion reports whether v is in the supported set.
func IsSupportedProtocolVersion(v ProtocolVersion) bool {
	return versionIndex(v) >= 0
}

// CompareProtocolVersions returns -1, 0, or 1 as a is older than, equal
// to, or newer than b. Both must be supported versions; an unsupported
// version compares as older than every supported one.
func CompareProtocolVersions(a, b ProtocolVersion) int {
	ia, ib := versionIndex(a), versionIndex(b)
	switch {
	case ia == ib:
		return 0
	case ia < ib:
		return -1
	default:
		return 1
	}
}
