package transfer

import "fmt"

// MediaKind identifies which kind of media an inbound message carried
type MediaKind string

const (
	MediaDocument MediaKind = "document"
	MediaPhoto    MediaKind = "photo"
	MediaVideo    MediaKind = "video"
	MediaAudio    MediaKind = "audio"
	MediaVoice    MediaKind = "voice"
)

// Valid reports whether k is one of the known media kinds
func (k MediaKind) Valid() bool {
	switch k {
	case MediaDocument, MediaPhoto, MediaVideo, MediaAudio, MediaVoice:
		return true
	}
	return false
}

// Label returns the human-facing name used in status messages
func (k MediaKind) Label() string {
	switch k {
	case MediaDocument:
		return "document"
	case MediaPhoto:
		return "photo"
	case MediaVideo:
		return "video"
	case MediaAudio:
		return "audio"
	case MediaVoice:
		return "voice message"
	}
	return "file"
}

// FileDescriptor describes the file attached to an inbound message
type FileDescriptor struct {
	ID       string    // Transport file id used to fetch the bytes
	UniqueID string    // Stable id across bots, informational only
	Size     uint64    // Declared size in bytes
	Name     string    // Declared file name, may be empty
	MIME     string    // Declared MIME type, may be empty
	Kind     MediaKind // Media kind chosen at ingestion
}

// Request is the immutable input of one transfer
type Request struct {
	ChatID    int64
	MessageID int
	File      FileDescriptor
}

// Key identifies the request for the at-most-one-run guard
func (r Request) Key() string {
	return fmt.Sprintf("%d:%d", r.ChatID, r.MessageID)
}

// Validate checks that the request carries what the pipeline needs
func (r Request) Validate() error {
	if r.File.ID == "" {
		return fmt.Errorf("file id is required")
	}
	if !r.File.Kind.Valid() {
		return fmt.Errorf("unknown media kind %q", r.File.Kind)
	}
	return nil
}
