package s3io

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// DeleteBatch removes keys with DeleteObjects and returns the keys the store
// confirmed as deleted. Keys are sent in chunks of MaxDeleteBatch. A failed
// chunk doesn't stop the remaining chunks; the errors are joined and
// returned along with whatever was confirmed.
func (cl *client) DeleteBatch(ctx context.Context, keys []string) ([]string, error) {
	var confirmed []string
	var errs []error

	for start := 0; start < len(keys); start += maxDeleteBatch {
		end := min(start+maxDeleteBatch, len(keys))

		ids := make([]types.ObjectIdentifier, 0, end-start)
		for _, key := range keys[start:end] {
			ids = append(ids, types.ObjectIdentifier{
				Key: aws.String(cl.fullKey(key)),
			})
		}

		resp, err := cl.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: cl.bucket,
			Delete: &types.Delete{
				Objects: ids,
				Quiet:   aws.Bool(false),
			},
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("delete batch of %d: %w", end-start, err))
			continue
		}

		for _, deleted := range resp.Deleted {
			confirmed = append(confirmed, cl.relKey(aws.ToString(deleted.Key)))
		}
		for _, failed := range resp.Errors {
			errs = append(errs, fmt.Errorf("delete %s: %s: %s",
				cl.relKey(aws.ToString(failed.Key)), aws.ToString(failed.Code), aws.ToString(failed.Message)))
		}
	}

	return confirmed, errors.Join(errs...)
}
