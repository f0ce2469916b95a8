package s3io

import (
	"compress/gzip"
	"context"
	"errors"
	"io"
	"strings"

	"filippo.io/age"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

var downloadable = map[string]bool{
	"": true,
	string(types.StorageClassStandard):           true,
	string(types.StorageClassReducedRedundancy):  true,
	string(types.StorageClassStandardIa):         true,
	string(types.StorageClassOnezoneIa):          true,
	string(types.StorageClassIntelligentTiering): true,
	string(types.StorageClassGlacierIr):          true,
	string(types.StorageClassExpressOnezone):     true,
}

// IsArchiveClass reports whether objects in the storage class have to be
// restored before they can be read or copied.
func IsArchiveClass(storageClass string) bool {
	return !downloadable[storageClass]
}

func (cl *client) checkDownloadable(ctx context.Context, key string) error {
	hoo, err := cl.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: cl.bucket,
		Key:    aws.String(cl.fullKey(key)),
	})
	if err != nil {
		var nosuchkey *types.NoSuchKey
		if errors.As(err, &nosuchkey) || isNotFound(err) {
			return &ErrNoSuchObject{
				Key: key,
			}
		}
		return err
	}

	sclass := string(hoo.StorageClass)
	if downloadable[sclass] {
		return nil
	}

	// archived but with a restored copy available
	if state, _ := ParseRestoreHeader(aws.ToString(hoo.Restore)); state == RestoreCompleted {
		return nil
	}

	return &ErrNotDownloadable{
		key:          key,
		storageClass: sclass,
	}
}

func (cl *client) Download(ctx context.Context, key string, sink io.Writer) (int64, error) {

	// verify we can download the object
	err := cl.checkDownloadable(ctx, key)
	if err != nil {
		return 0, err
	}

	resp, err := cl.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: cl.bucket,
		Key:    aws.String(cl.fullKey(key)),
	})
	if err != nil {
		var nosuchkey *types.NoSuchKey
		if errors.As(err, &nosuchkey) {
			return 0, &ErrNoSuchObject{
				Key: key,
			}
		}
		return 0, err
	}
	defer resp.Body.Close()

	var reader io.Reader = resp.Body

	// check the meta data to see if decompressing/decryption is needed
	compressed := false
	encrypted := false

	for k := range resp.Metadata {
		switch strings.ToLower(k) {
		case metaCompress:
			compressed = true
		case metaEncrypt:
			encrypted = true
		}
	}

	// decrypt first
	if encrypted {
		if len(cl.identities) == 0 {
			return 0, &ErrIdentitiesNotFound{}
		}

		dreader, err := age.Decrypt(reader, cl.identities...)
		if err != nil {
			return 0, err
		}

		reader = dreader
	}

	// then decompress
	if compressed {
		gzreader, err := gzip.NewReader(reader)
		if err != nil {
			return 0, err
		}
		defer gzreader.Close()

		reader = gzreader
	}

	counter := NewWriteCounter(sink)
	if _, err := io.Copy(counter, reader); err != nil {
		return counter.TotalBytes(), err
	}

	return counter.TotalBytes(), nil
}
