package engine

import (
	"sort"
	"strings"
)

// Export names of analysis components follow "<type>#<member>",
// e.g. "OliveMatrixLib.OliveMatrixLibCore#RunAnalysis".
const (
	memberSep = "#"

	// MemberNew is the default constructor export of a type
	MemberNew = "new"
	// MemberDrop is the optional destructor export of a type
	MemberDrop = "drop"
)

// ExportName joins a type name and a member into an export name
func ExportName(typeName, member string) string {
	return typeName + memberSep + member
}

// SplitExportName splits an export name into type and member.
// Returns ok=false for exports that do not belong to a type.
func SplitExportName(name string) (typeName, member string, ok bool) {
	idx := strings.LastIndex(name, memberSep)
	if idx <= 0 || idx == len(name)-1 {
		return "", "", false
	}
	return name[:idx], name[idx+1:], true
}

// IsLifecycleMember reports whether member is a constructor or destructor
func IsLifecycleMember(member string) bool {
	return member == MemberNew || member == MemberDrop
}

// TypeNames returns the distinct type names found in exports, sorted
func TypeNames(exports []string) []string {
	seen := make(map[string]struct{})
	for _, name := range exports {
		if t, _, ok := SplitExportName(name); ok {
			seen[t] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Members returns the non-lifecycle members exported for typeName, sorted
func Members(exports []string, typeName string) []string {
	var out []string
	for _, name := range exports {
		t, m, ok := SplitExportName(name)
		if !ok || t != typeName || IsLifecycleMember(m) {
			continue
		}
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}
