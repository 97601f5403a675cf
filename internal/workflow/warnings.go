package workflow

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/gerunddev/ngmigrate/internal/gateway"
)

// UnknownFile is the file name given to warnings whose file cannot be determined.
const UnknownFile = "Unknown file"

// warningLine matches "[file] description".
var warningLine = regexp.MustCompile(`^\[(.+?)\]\s+(.*)$`)

// ParseWarning turns one backend warning into a Warning without a key.
// Malformed lines degrade to UnknownFile with the whole line as description.
func ParseWarning(raw gateway.RawWarning) Warning {
	if raw.Structured() {
		name := lastSegment(raw.FilePath)
		if name == "" {
			name = UnknownFile
		}
		return Warning{FilePath: raw.FilePath, FileName: name, Description: raw.Description}
	}

	line := strings.TrimSpace(raw.Line)
	if m := warningLine.FindStringSubmatch(line); m != nil {
		return Warning{FilePath: m[1], FileName: m[1], Description: m[2]}
	}
	return Warning{FileName: UnknownFile, Description: line}
}

// ParseWarnings parses a scan result and assigns keys. Keys derive from the
// warning content so scanning the same project twice yields the same keys;
// repeated identical warnings get an occurrence suffix.
func ParseWarnings(raws []gateway.RawWarning) []Warning {
	seen := make(map[string]int, len(raws))
	out := make([]Warning, 0, len(raws))
	for _, raw := range raws {
		w := ParseWarning(raw)
		base := contentKey(w.FilePath, w.FileName, w.Description)
		seen[base]++
		w.Key = base
		if n := seen[base]; n > 1 {
			w.Key = fmt.Sprintf("%s#%d", base, n)
		}
		out = append(out, w)
	}
	return out
}

// alertItems assigns keys to audit alerts the same way.
func alertItems(alerts []gateway.Alert) []AlertItem {
	seen := make(map[string]int, len(alerts))
	out := make([]AlertItem, 0, len(alerts))
	for _, a := range alerts {
		base := contentKey(a.Module, a.VulnerableVersions, a.Title)
		seen[base]++
		key := base
		if n := seen[base]; n > 1 {
			key = fmt.Sprintf("%s#%d", base, n)
		}
		out = append(out, AlertItem{Key: key, Alert: a})
	}
	return out
}

func contentKey(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(sum[:6])
}

// lastSegment returns the final element of a slash or backslash separated path.
func lastSegment(p string) string {
	p = strings.TrimRight(strings.ReplaceAll(p, "\\", "/"), "/")
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[i+1:]
	}
	return p
}
