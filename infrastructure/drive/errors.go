package drive

import (
	"context"
	"errors"
	"net"
	"net/http"

	"telegram-drive-relay/domain/distribution"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
)

var quotaReasons = map[string]bool{
	"storageQuotaExceeded":       true,
	"quotaExceeded":              true,
	"rateLimitExceeded":          true,
	"userRateLimitExceeded":      true,
	"dailyLimitExceeded":         true,
	"teamDriveFileLimitExceeded": true,
}

// classify wraps err in a distribution.PublishError describing whether the
// failure is about credentials, quota, or a temporary outage
func classify(err error) error {
	if err == nil {
		return nil
	}
	return distribution.NewPublishError(publishKind(err), err)
}

func publishKind(err error) distribution.PublishErrorKind {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		for _, item := range gerr.Errors {
			if quotaReasons[item.Reason] {
				return distribution.PublishQuota
			}
		}
		switch {
		case gerr.Code == http.StatusTooManyRequests:
			return distribution.PublishQuota
		case gerr.Code == http.StatusUnauthorized, gerr.Code == http.StatusForbidden:
			return distribution.PublishAuth
		case gerr.Code >= http.StatusInternalServerError:
			return distribution.PublishTransient
		}
		return distribution.PublishOther
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return distribution.PublishAuth
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
