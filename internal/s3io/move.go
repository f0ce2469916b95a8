package s3io

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// api error codes returned when the source of a copy is in an archive tier
var restoreRequiredCodes = map[string]bool{
	"InvalidObjectState":         true,
	"ObjectNotInActiveTierError": true,
}

// Move relocates oldKey to newKey with a server-side copy followed by a
// delete of the source. No object data passes through the client.
func (cl *client) Move(ctx context.Context, oldKey, newKey string) error {

	source := cl.fullKey(oldKey)

	_, err := cl.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     cl.bucket,
		CopySource: aws.String(copySource(aws.ToString(cl.bucket), source)),
		Key:        aws.String(cl.fullKey(newKey)),
	})
	if err != nil {
		if requiresRestore(err) {
			return &ErrRequiresRestore{
				Key: oldKey,
				Msg: err.Error(),
			}
		}
		return fmt.Errorf("copy %s to %s: %w", oldKey, newKey, err)
	}

	_, err = cl.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: cl.bucket,
		Key:    aws.String(source),
	})
	if err != nil {
		return fmt.Errorf("copied to %s but failed to delete %s: %w", newKey, oldKey, err)
	}

	return nil
}

func requiresRestore(err error) bool {
	var notActive *types.ObjectNotInActiveTierError
	if errors.As(err, &notActive) {
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return restoreRequiredCodes[apiErr.ErrorCode()]
	}

	return false
}

// copySource builds the url encoded "bucket/key" copy source, leaving the
// path separators intact.
func copySource(bucket, key string) string {
	segments := strings.Split(key, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return bucket + "/" + strings.Join(segments, "/")
}
