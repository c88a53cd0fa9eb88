package transfer

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"
)

// maxNameBytes leaves room for the staging prefix under common 255 byte
// file name limits.
const maxNameBytes = 200

// Resolve derives the file name used for staging and for the remote object.
// A declared name is sanitized; when nothing usable is left a name is
// synthesized from the media kind and message id.
func Resolve(declaredName string, kind MediaKind, messageID int, declaredMIME string) (string, error) {
	name := Sanitize(declaredName)
	if name == "" {
		name = synthesize(kind, messageID, declaredMIME)
	}
	name = truncate(name)
	if name == "" || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: declared %q", ErrEmptyName, declaredName)
	}
	return name, nil
}

// Sanitize keeps letters, digits, '.', '_', '-' and spaces, then trims
// surrounding whitespace. Names made only of dots are rejected.
func Sanitize(name string) string {
	var b strings.Builder
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '_' || r == '-' || r == ' ' {
			b.WriteRune(r)
		}
	}
	out := strings.TrimSpace(b.String())
	if strings.Trim(out, ".") == "" {
		return ""
	}
	return out
}

func synthesize(kind MediaKind, messageID int, declaredMIME string) string {
	base := fmt.Sprintf("%s_%d", kind, messageID)
	if ext := defaultExtension(kind, declaredMIME); ext != "" {
		return base + "." + ext
	}
	return base
}

func defaultExtension(kind MediaKind, declaredMIME string) string {
	switch kind {
	case MediaPhoto:
		return "jpg"
	case MediaVoice:
		return "ogg"
	case MediaVideo:
		return "mp4"
	case MediaAudio:
		return "mp3"
	case MediaDocument:
		return ExtensionForMIME(declaredMIME)
	}
	return ""
}

// truncate shortens long names on a rune boundary, keeping a short extension
func truncate(name string) string {
	if len(name) <= maxNameBytes {
		return name
	}
	ext := filepath.Ext(name)
	if len(ext) > 16 {
		ext = ""
	}
	base := name[:len(name)-len(ext)]
	limit := maxNameBytes - len(ext)
	for len(base) > limit {
		_, size := utf8.DecodeLastRuneInString(base)
		base = base[:len(base)-size]
	}
	return strings.TrimSpace(base) + ext
}

// BaseName returns name without its extension, or name itself when that would
// leave nothing.
func BaseName(name string) string {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	if strings.TrimSpace(base) == "" {
		return name
	}
	return base
}
