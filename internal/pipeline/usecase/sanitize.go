package usecase

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

//nolint:gochecknoglobals // lookup table
var reservedDeviceNames = map[string]struct{}{
	"CON": {}, "PRN": {}, "AUX": {}, "NUL": {},
	"COM0": {}, "COM1": {}, "COM2": {}, "COM3": {}, "COM4": {},
	"COM5": {}, "COM6": {}, "COM7": {}, "COM8": {}, "COM9": {},
	"LPT0": {}, "LPT1": {}, "LPT2": {}, "LPT3": {}, "LPT4": {},
	"LPT5": {}, "LPT6": {}, "LPT7": {}, "LPT8": {}, "LPT9": {},
}

// SanitizeFilename derives a name that is safe to use as a single path element
// from untrusted client input. It may return "".
//
// The name is NFKD-normalized and reduced to ASCII, path separators become
// word breaks, whitespace runs become "_", anything outside [A-Za-z0-9_.-] is
// dropped, leading/trailing "." and "_" are trimmed, and Windows device names
// get a "_" prefix.
func SanitizeFilename(name string) string {
	name = norm.NFKD.String(name)
	name = strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return -1
		}
		if r == '/' || r == '\\' {
			return ' '
		}
		return r
	}, name)

	name = strings.Join(strings.Fields(name), "_")
	name = unsafeFilenameChars.ReplaceAllString(name, "")
	name = strings.Trim(name, "._")

	if name == "" {
		return ""
	}

	stem, _, _ := strings.Cut(name, ".")
	if _, reserved := reservedDeviceNames[strings.ToUpper(stem)]; reserved {
		name = "_" + name
	}

	return name
}

// AllowedExtension reports whether name has a ".csv" extension, ignoring case.
func AllowedExtension(name string) bool {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return false
	}
	return strings.EqualFold(name[i+1:], "csv")
}
