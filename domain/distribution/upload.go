package distribution

import "io"

// Content is the staged byte stream handed to the destination. Seeking lets
// backends such as S3 sign or retry the payload.
type Content interface {
	io.Reader
	io.Seeker
}

// ObjectSpec contains the parameters needed to create one remote object
type ObjectSpec struct {
	Name     string  // Target object name
	MimeType string  // MIME type of the content
	Size     int64   // Content length in bytes
	Content  Content // Staged bytes
}

// RemoteObject is the persisted object returned by a successful publish
type RemoteObject struct {
	ID          string // Destination object id
	DisplayName string // Name shown in the destination
	ViewURL     string // Link for viewing the object
	SizeBytes   int64  // Size reported by the destination
}

// MimeTypeFolder is the Google Drive folder MIME type
const MimeTypeFolder = "application/vnd.google-apps.folder"
