package s3io

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// List returns every object under the prefix keyed by its relative key. The
// prefix itself, when it exists as a zero length "folder" object, is skipped.
func (cl *client) List(ctx context.Context) (map[string]*Object, error) {
	loi := s3.ListObjectsV2Input{
		Bucket: cl.bucket,
	}
	if cl.prefix != "" {
		loi.Prefix = aws.String(cl.prefix)
	}

	objects := make(map[string]*Object)

	paginator := s3.NewListObjectsV2Paginator(cl.client, &loi)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}

		for _, object := range page.Contents {
			key := aws.ToString(object.Key)
			if !strings.HasPrefix(key, cl.prefix) {
				continue
			}
			rkey := cl.relKey(key)
			if rkey == "" {
				continue
			}

			objects[rkey] = &Object{
				Key:          rkey,
				Size:         aws.ToInt64(object.Size),
				ETag:         strings.Trim(aws.ToString(object.ETag), "\""),
				StorageClass: string(object.StorageClass),
			}
		}
	}

	return objects, nil
}
