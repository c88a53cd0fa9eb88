// Package s3 stores relayed files in an S3 compatible bucket. Containers are
// key prefixes.
package s3

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"telegram-drive-relay/domain/distribution"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

// DefaultPresignTTL is the validity of view links. SigV4 caps it at 7 days.
const DefaultPresignTTL = 7 * 24 * time.Hour

// Config holds S3 connection settings.
type Config struct {
	Endpoint     string // empty for AWS, set for MinIO and other compatible stores
	Bucket       string
	Region       string
	AccessKey    string // empty to use the default credential chain
	SecretKey    string
	UsePathStyle bool
	PresignTTL   time.Duration
	DisplayName  string
}

// S3API is the subset of the S3 client the adapter calls
// This allows mocking S3 in tests
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Presigner creates time limited GET links
type Presigner interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Client implements distribution.StorageClient on an S3 bucket
type Client struct {
	api       S3API
	presigner Presigner
	cfg       Config
	log       *zap.Logger
}

// ClientOption is a functional option for configuring Client
type ClientOption func(*Client)

// WithS3API sets a custom S3 implementation (for testing)
func WithS3API(api S3API, presigner Presigner) ClientOption {
	return func(c *Client) {
		c.api = api
		c.presigner = presigner
	}
}

// WithLogger sets the logger
func WithLogger(log *zap.Logger) ClientOption {
	return func(c *Client) {
		c.log = log
	}
}

// NewClient creates a new S3 client
func NewClient(ctx context.Context, cfg Config, opts ...ClientOption) (*Client, error) {
	if cfg.Bucket == "" {
		return nil, ErrMissingBucket
	}
	if cfg.PresignTTL <= 0 || cfg.PresignTTL > DefaultPresignTTL {
		cfg.PresignTTL = DefaultPresignTTL
	}
	if cfg.DisplayName == "" {
		cfg.DisplayName = "S3"
	}

	c := &Client{cfg: cfg, log: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}

	if c.api == nil {
		loadOpts := []func(*config.LoadOptions) error{}
		if cfg.Region != "" {
			loadOpts = append(loadOpts, config.WithRegion(cfg.Region))
		}
		if cfg.AccessKey != "" {
			loadOpts = append(loadOpts, config.WithCredentialsProvider(
				credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
			))
		}

		awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}

		client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if cfg.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.Endpoint)
			}
			o.UsePathStyle = cfg.UsePathStyle
		})
		c.api = client
		c.presigner = s3.NewPresignClient(client)
	}

	return c, nil
}

// Name implements distribution.StorageClient
func (c *Client) Name() string {
	return c.cfg.DisplayName
}

// CreateContainer writes an empty marker object so the prefix shows up as a
// folder in S3 consoles. Creating an existing prefix is a no-op.
func (c *Client) CreateContainer(ctx context.Context, parentID, name string) (string, error) {
	prefix := joinPrefix(parentID, name)
	_, err := c.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.cfg.Bucket),
		Key:           aws.String(prefix),
		Body:          strings.NewReader(""),
		ContentLength: aws.Int64(0),
	})
	if err != nil {
		return "", classify(newObjectError("create_prefix", c.cfg.Bucket, prefix, err))
	}
	return prefix, nil
}

// FindContainer implements distribution.StorageClient
func (c *Client) FindContainer(ctx context.Context, parentID, name string) (string, bool, error) {
	prefix := joinPrefix(parentID, name)
	out, err := c.api.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  aws.String(c.cfg.Bucket),
		Prefix:  aws.String(prefix),
		MaxKeys: aws.Int32(1),
	})
	if err != nil {
		return "", false, classify(newObjectError("find_prefix", c.cfg.Bucket, prefix, err))
	}
	if aws.ToInt32(out.KeyCount) == 0 && len(out.Contents) == 0 {
		return "", false, nil
	}
	return prefix, true, nil
}

// CreateObject uploads the content and returns a presigned view link
func (c *Client) CreateObject(ctx context.Context, parentID string, obj distribution.ObjectSpec) (*distribution.RemoteObject, error) {
	key := normalizePrefix(parentID) + obj.Name

	input := &s3.PutObjectInput{
		Bucket:        aws.String(c.cfg.Bucket),
		Key:           aws.String(key),
		Body:          obj.Content,
		ContentLength: aws.Int64(obj.Size),
	}
	if obj.MimeType != "" {
		input.ContentType = aws.String(obj.MimeType)
	}

	start := time.Now()
	if _, err := c.api.PutObject(ctx, input); err != nil {
		return nil, classify(newObjectError("put_object", c.cfg.Bucket, key, err))
	}
	c.log.Debug("S3 put object",
		zap.String("key", key),
		zap.Int64("size", obj.Size),
		zap.Duration("duration", time.Since(start)))

	remote := &distribution.RemoteObject{
		ID:          key,
		DisplayName: obj.Name,
		SizeBytes:   obj.Size,
	}

	req, err := c.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.cfg.Bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(c.cfg.PresignTTL))
	if err != nil {
		// The object is stored; only the link is missing
		c.log.Warn("failed to presign view link", zap.String("key", key), zap.Error(err))
		return remote, nil
	}
	remote.ViewURL = req.URL
	return remote, nil
}

// ListContainerContents lists the objects directly below a prefix. Deeper
// prefixes are returned as containers.
func (c *Client) ListContainerContents(ctx context.Context, containerID string) ([]distribution.FileInfo, error) {
	prefix := normalizePrefix(containerID)
	p := s3.NewListObjectsV2Paginator(c.api, &s3.ListObjectsV2Input{
		Bucket:    aws.String(c.cfg.Bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})

	var result []distribution.FileInfo
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list files: %w", newBucketError("list_objects", c.cfg.Bucket, err))
		}
		for _, cp := range page.CommonPrefixes {
			p := aws.ToString(cp.Prefix)
			result = append(result, distribution.FileInfo{
				ID:       p,
				Name:     path.Base(strings.TrimSuffix(p, "/")),
				MimeType: distribution.MimeTypeFolder,
			})
		}
		for _, o := range page.Contents {
			key := aws.ToString(o.Key)
			if key == prefix || strings.HasSuffix(key, "/") {
				continue
			}
			result = append(result, distribution.FileInfo{
				ID:          key,
				Name:        path.Base(key),
				Size:        aws.ToInt64(o.Size),
				CreatedTime: aws.ToTime(o.LastModified),
			})
		}
	}
	return result, nil
}

// GetStorageQuota implements distribution.StorageClient. Buckets have no quota.
func (c *Client) GetStorageQuota(ctx context.Context) (*distribution.StorageInfo, error) {
	return nil, distribution.ErrQuotaUnsupported
}

// normalizePrefix turns a container id into a key prefix ending in "/",
// or "" for the bucket root
func normalizePrefix(id string) string {
	id = strings.Trim(id, "/")
	if id == "" {
		return ""
	}
	return id + "/"
}

func joinPrefix(parentID, name string) string {
	return normalizePrefix(parentID) + strings.Trim(name, "/") + "/"
}

// Ensure Client implements distribution.StorageClient
var _ distribution.StorageClient = (*Client)(nil)
