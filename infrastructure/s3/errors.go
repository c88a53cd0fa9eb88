package s3

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"telegram-drive-relay/domain/distribution"

	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/smithy-go"
)

// ErrMissingBucket is returned when no bucket is configured
var ErrMissingBucket = errors.New("s3: bucket is required")

// Error is an S3 operation failure with the bucket and key involved
type Error struct {
	Op     string
	Bucket string
	Key    string
	Err    error
}

func (e *Error) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("s3.%s %s/%s: %v", e.Op, e.Bucket, e.Key, e.Err)
	}
	return fmt.Sprintf("s3.%s bucket %s: %v", e.Op, e.Bucket, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newObjectError(op, bucket, key string, err error) *Error {
	return &Error{Op: op, Bucket: bucket, Key: key, Err: err}
}

func newBucketError(op, bucket string, err error) *Error {
	return &Error{Op: op, Bucket: bucket, Err: err}
}

var authCodes = map[string]bool{
	"AccessDenied":          true,
	"AllAccessDisabled":     true,
	"InvalidAccessKeyId":    true,
	"SignatureDoesNotMatch": true,
	"ExpiredToken":          true,
	"InvalidToken":          true,
	"AccountProblem":        true,
}

var quotaCodes = map[string]bool{
	"QuotaExceeded":        true,
	"SlowDown":             true,
	"TooManyBuckets":       true,
	"EntityTooLarge":       true,
	"XMinioStorageFull":    true,
	"RequestLimitExceeded": true,
}

// classify wraps err in a distribution.PublishError
func classify(err error) error {
	if err == nil {
		return nil
	}
	return distribution.NewPublishError(publishKind(err), err)
}

func publishKind(err error) distribution.PublishErrorKind {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		switch {
		case authCodes[code]:
			return distribution.PublishAuth
		case quotaCodes[code]:
			return distribution.PublishQuota
		}
	}

	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		status := respErr.HTTPStatusCode()
		switch {
		case status == http.StatusUnauthorized, status == http.StatusForbidden:
			return distribution.PublishAuth
		case status == http.StatusTooManyRequests:
			return distribution.PublishQuota
		case status >= http.StatusInternalServerError:
			return distribution.PublishTransient
		}
		return distribution.PublishOther
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return distribution.PublishTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return distribution.PublishTransient
	}
	return distribution.PublishOther
}
