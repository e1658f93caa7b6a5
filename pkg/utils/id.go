package utils

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"
)

var unsafeNameRegex = regexp.MustCompile(`[^a-zA-Z0-9._\-]`)

// TimestampPrefix returns an 8-char hex timestamp followed by an underscore.
// Attachment files are stored under this prefix so concurrent downloads never
// collide and age checks need no extra metadata.
// Example: "65cfda3f_"
func TimestampPrefix() string {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(time.Now().Unix()))
	return hex.EncodeToString(b) + "_"
}

// TimeFromPrefix extracts the creation time from a name that starts with an
// 8-char hex timestamp (with or without the trailing underscore).
func TimeFromPrefix(name string) (time.Time, error) {
	if len(name) < 8 {
		return time.Time{}, fmt.Errorf("name too short: %d", len(name))
	}
	b, err := hex.DecodeString(name[:8])
	if err != nil {
		return time.Time{}, err
	}
	sec := binary.BigEndian.Uint32(b)
	return time.Unix(int64(sec), 0), nil
}

// IsOlderThan checks if a timestamp-prefixed name was created more than 'd' ago.
func IsOlderThan(name string, d time.Duration) bool {
	t, err := TimeFromPrefix(name)
	if err != nil {
		return false
	}
	return time.Since(t) > d
}

// SanitizeFilename strips path separators and any character outside the
// portable set, so platform-provided names are safe as local file names.
// An empty or fully-unsafe name becomes "file".
func SanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	if idx := strings.LastIndexAny(name, `/\`); idx >= 0 {
		name = name[idx+1:]
	}
	name = unsafeNameRegex.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._")
	if name == "" {
		return "file"
	}
	return name
}
