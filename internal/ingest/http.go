package ingest

import (
	"context"
	"errors"
	"net/http"

	"github.com/AngelCh415/funnel-dash/internal/utils"
)

// GetJSONWithRetry runs getJSON under b. Client errors other than 408/429
// and cancellation are not retried.
func GetJSONWithRetry(ctx context.Context, c HTTPClient, b utils.Backoff, url string, hdr http.Header, dst any) error {
	return b.Do(ctx, func(int) error {
		err := getJSON(ctx, c, url, hdr, dst)
		if err == nil {
			return nil
		}
		var se *StatusError
		if errors.Is(err, ErrEmptyURL) || (errors.As(err, &se) && !se.Retryable()) || ctx.Err() != nil {
			return utils.Permanent(err)
		}
		return err
	})
}
