package transfer

import (
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// MimeOctetStream is used for anything the table does not know
const MimeOctetStream = "application/octet-stream"

var mimeByExtension = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
	"heic": "image/heic",
	"mp4":  "video/mp4",
	"avi":  "video/x-msvideo",
	"mkv":  "video/x-matroska",
	"mov":  "video/quicktime",
	"webm": "video/webm",
	"mp3":  "audio/mpeg",
	"wav":  "audio/wav",
	"ogg":  "audio/ogg",
	"oga":  "audio/ogg",
	"m4a":  "audio/mp4",
	"flac": "audio/flac",
	"pdf":  "application/pdf",
	"doc":  "application/msword",
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"xls":  "application/vnd.ms-excel",
	"xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"ppt":  "application/vnd.ms-powerpoint",
	"pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
	"zip":  "application/zip",
	"rar":  "application/x-rar-compressed",
	"7z":   "application/x-7z-compressed",
	"txt":  "text/plain",
	"csv":  "text/csv",
	"json": "application/json",
	"apk":  "application/vnd.android.package-archive",
}

// extensionByMime is the inverse of mimeByExtension with one canonical
// extension per type.
var extensionByMime = map[string]string{
	"image/jpeg":               "jpg",
	"image/png":                "png",
	"image/gif":                "gif",
	"image/webp":               "webp",
	"image/heic":               "heic",
	"video/mp4":                "mp4",
	"video/x-msvideo":          "avi",
	"video/x-matroska":         "mkv",
	"video/quicktime":          "mov",
	"video/webm":               "webm",
	"audio/mpeg":               "mp3",
	"audio/wav":                "wav",
	"audio/ogg":                "ogg",
	"audio/mp4":                "m4a",
	"audio/flac":               "flac",
	"application/pdf":          "pdf",
	"application/msword":       "doc",
	"application/vnd.ms-excel": "xls",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   "docx",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":         "xlsx",
	"application/vnd.ms-powerpoint":                                             "ppt",
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": "pptx",
	"application/zip":                         "zip",
	"application/x-rar-compressed":            "rar",
	"application/x-7z-compressed":             "7z",
	"text/plain":                              "txt",
	"text/csv":                                "csv",
	"application/json":                        "json",
	"application/vnd.android.package-archive": "apk",
}

// MIMEType maps the extension of name to a MIME type
func MIMEType(name string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if t, ok := mimeByExtension[ext]; ok {
		return t
	}
	return MimeOctetStream
}

// ResolveMIME prefers a declared MIME type and falls back to the name
func ResolveMIME(declared, name string) string {
	if t := normalizeMIME(declared); t != "" {
		return t
	}
	return MIMEType(name)
}

// ExtensionForMIME returns the extension, without the dot, for a MIME type.
// The static table is consulted first, then the mimetype registry.
func ExtensionForMIME(declared string) string {
	t := normalizeMIME(declared)
	if t == "" {
		return ""
	}
	if ext, ok := extensionByMime[t]; ok {
		return ext
	}
	if m := mimetype.Lookup(t); m != nil {
		return strings.TrimPrefix(m.Extension(), ".")
	}
	return ""
}

func normalizeMIME(declared string) string {
	declared = strings.TrimSpace(declared)
	if declared == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(declared)
	if err != nil || !strings.Contains(mt, "/") {
		return ""
	}
	return mt
}
