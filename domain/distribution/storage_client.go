package distribution

import (
	"context"
	"time"
)

// StorageClient defines the destination storage operations used by the relay.
// This is a port that can be implemented by different infrastructure adapters.
type StorageClient interface {
	// CreateContainer creates a folder (or prefix) named name under parentID
	// and returns its id
	CreateContainer(ctx context.Context, parentID, name string) (string, error)

	// FindContainer looks up an existing container by name under parentID
	FindContainer(ctx context.Context, parentID, name string) (id string, found bool, err error)

	// CreateObject stores content as a new object under parentID
	CreateObject(ctx context.Context, parentID string, obj ObjectSpec) (*RemoteObject, error)

	// ListContainerContents lists the entries directly inside a container.
	// Child containers are listed with MimeTypeFolder.
	ListContainerContents(ctx context.Context, containerID string) ([]FileInfo, error)

	// GetStorageQuota returns the current storage quota information.
	// Backends without quotas return ErrQuotaUnsupported.
	GetStorageQuota(ctx context.Context) (*StorageInfo, error)

	// Name is the human readable backend name used in status messages
	Name() string
}

// FileInfo represents metadata about an object in the destination
type FileInfo struct {
	ID          string
	Name        string
	MimeType    string
	Size        int64
	CreatedTime time.Time
}

// IsContainer reports whether the entry is a folder (or prefix) rather than
// a stored object
func (f FileInfo) IsContainer() bool {
	return f.MimeType == MimeTypeFolder
}
