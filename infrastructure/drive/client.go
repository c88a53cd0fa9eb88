package drive

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"telegram-drive-relay/domain/distribution"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const uploadChunkSize = 16 * 1024 * 1024

// DriveService defines the interface for Google Drive API operations
// This allows mocking the Google Drive API in tests
type DriveService interface {
	ListFiles(ctx context.Context, query string, fields string, orderBy string) ([]*drive.File, error)
	GetAbout(ctx context.Context, fields string) (*drive.About, error)
	CreateFile(ctx context.Context, file *drive.File, fields string) (*drive.File, error)
	UploadFile(ctx context.Context, file *drive.File, content io.Reader, fields string) (*drive.File, error)
}

// GoogleDriveService is the production implementation using the Google Drive API
type GoogleDriveService struct {
	service *drive.Service
}

// ListFiles lists every file matching the query, following page tokens
func (s *GoogleDriveService) ListFiles(ctx context.Context, query string, fields string, orderBy string) ([]*drive.File, error) {
	var files []*drive.File
	err := s.service.Files.List().
		Q(query).
		Fields(googleapi.Field("nextPageToken, files(" + fields + ")")).
		OrderBy(orderBy).
		PageSize(1000).
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true).
		Pages(ctx, func(r *drive.FileList) error {
			files = append(files, r.Files...)
			return nil
		})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// GetAbout returns account information such as the storage quota
func (s *GoogleDriveService) GetAbout(ctx context.Context, fields string) (*drive.About, error) {
	return s.service.About.Get().Fields(googleapi.Field(fields)).Context(ctx).Do()
}

// CreateFile creates a metadata-only file such as a folder
func (s *GoogleDriveService) CreateFile(ctx context.Context, file *drive.File, fields string) (*drive.File, error) {
	return s.service.Files.Create(file).
		Fields(googleapi.Field(fields)).
		SupportsAllDrives(true).
		Context(ctx).
		Do()
}

// UploadFile creates a file with content using a resumable upload
func (s *GoogleDriveService) UploadFile(ctx context.Context, file *drive.File, content io.Reader, fields string) (*drive.File, error) {
	return s.service.Files.Create(file).
		Media(content, googleapi.ContentType(file.MimeType), googleapi.ChunkSize(uploadChunkSize)).
		Fields(googleapi.Field(fields)).
		SupportsAllDrives(true).
		Context(ctx).
		Do()
}

// Client implements distribution.StorageClient using Google Drive API
type Client struct {
	driveService    DriveService
	credentialsJSON []byte
}

// ClientOption is a functional option for configuring Client
type ClientOption func(*Client)

// WithDriveService sets a custom drive service (for testing)
func WithDriveService(svc DriveService) ClientOption {
	return func(c *Client) {
		c.driveService = svc
	}
}

// WithCredentialsJSON uses inline service account JSON instead of a file
func WithCredentialsJSON(b []byte) ClientOption {
	return func(c *Client) {
		c.credentialsJSON = b
	}
}

// NewClient creates a new Google Drive client authenticated as a service account
// If no options are provided, it initializes a real Google Drive service
func NewClient(ctx context.Context, credentialsPath string, opts ...ClientOption) (*Client, error) {
	c := &Client{}

	for _, opt := range opts {
		opt(c)
	}

	// If no custom drive service was provided, create a real one
	if c.driveService == nil {
		b := c.credentialsJSON
		if len(b) == 0 {
			var err error
			b, err = os.ReadFile(credentialsPath)
			if err != nil {
				return nil, fmt.Errorf("unable to read credentials file: %w", err)
			}
		}
		svc, err := newGoogleDriveService(ctx, b)
		if err != nil {
			return nil, err
		}
		c.driveService = svc
	}

	return c, nil
}

// newGoogleDriveService creates a production Google Drive service
func newGoogleDriveService(ctx context.Context, credentials []byte) (*GoogleDriveService, error) {
	config, err := google.JWTConfigFromJSON(credentials, drive.DriveScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	client := config.Client(ctx)
	srv, err := drive.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create drive service: %w", err)
	}

	return &GoogleDriveService{service: srv}, nil
}

// Name implements distribution.StorageClient
func (c *Client) Name() string {
	return "Google Drive"
}

// CreateContainer implements distribution.StorageClient
func (c *Client) CreateContainer(ctx context.Context, parentID, name string) (string, error) {
	f, err := c.driveService.CreateFile(ctx, &drive.File{
		Name:     name,
		MimeType: distribution.MimeTypeFolder,
		Parents:  []string{parentID},
	}, "id")
	if err != nil {
		return "", classify(fmt.Errorf("failed to create folder %q: %w", name, err))
	}
	return f.Id, nil
}

// FindContainer implements distribution.StorageClient
func (c *Client) FindContainer(ctx context.Context, parentID, name string) (string, bool, error) {
	query := fmt.Sprintf("'%s' in parents and name = '%s' and mimeType = '%s' and trashed = false",
		escapeQuery(parentID), escapeQuery(name), distribution.MimeTypeFolder)
	files, err := c.driveService.ListFiles(ctx, query, "id, name", "createdTime")
	if err != nil {
		return "", false, classify(fmt.Errorf("failed to look up folder %q: %w", name, err))
	}
	if len(files) == 0 {
		return "", false, nil
	}
	return files[0].Id, true, nil
}

// CreateObject implements distribution.StorageClient
func (c *Client) CreateObject(ctx context.Context, parentID string, obj distribution.ObjectSpec) (*distribution.RemoteObject, error) {
	f, err := c.driveService.UploadFile(ctx, &drive.File{
		Name:     obj.Name,
		MimeType: obj.MimeType,
		Parents:  []string{parentID},
	}, obj.Content, "id, name, webViewLink, size")
	if err != nil {
		return nil, classify(fmt.Errorf("failed to upload %q: %w", obj.Name, err))
	}

	size := f.Size
	if size == 0 {
		size = obj.Size
	}
	return &distribution.RemoteObject{
		ID:          f.Id,
		DisplayName: f.Name,
		ViewURL:     f.WebViewLink,
		SizeBytes:   size,
	}, nil
}

// ListContainerContents implements distribution.StorageClient
func (c *Client) ListContainerContents(ctx context.Context, folderID string) ([]distribution.FileInfo, error) {
	query := fmt.Sprintf("'%s' in parents and trashed = false", escapeQuery(folderID))
	files, err := c.driveService.ListFiles(ctx, query, "id, name, mimeType, size, createdTime", "name")
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}

	var result []distribution.FileInfo
	for _, f := range files {
		createdTime := parseTime(f.CreatedTime)
		result = append(result, distribution.FileInfo{
			ID:          f.Id,
			Name:        f.Name,
			MimeType:    f.MimeType,
			Size:        f.Size,
			CreatedTime: createdTime,
		})
	}
	return result, nil
}

// GetStorageQuota implements distribution.StorageClient
func (c *Client) GetStorageQuota(ctx context.Context) (*distribution.StorageInfo, error) {
	about, err := c.driveService.GetAbout(ctx, "storageQuota")
	if err != nil {
		return nil, fmt.Errorf("failed to get storage quota: %w", err)
	}
	if about.StorageQuota == nil {
		return nil, distribution.ErrQuotaUnsupported
	}

	q := about.StorageQuota
	info := &distribution.StorageInfo{
		TotalBytes: q.Limit,
		UsedBytes:  q.Usage,
	}
	if q.Limit > 0 {
		info.AvailableBytes = q.Limit - q.Usage
	}
	return info, nil
}

// escapeQuery escapes a value for use inside a single-quoted Drive query string
func escapeQuery(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}

// parseTime parses a Google Drive timestamp string
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Ensure Client implements distribution.StorageClient
var _ distribution.StorageClient = (*Client)(nil)
