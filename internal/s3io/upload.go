package s3io

import (
	"compress/gzip"
	"context"
	"io"
	"os"

	"filippo.io/age"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const (
	metaCompress        = "s3smartsync-compress"
	metaCompressVersion = "s3smartsync-compress-version"
	metaEncrypt         = "s3smartsync-encrypt"
	metaEncryptVersion  = "s3smartsync-encrypt-version"
)

// Upload sends the file at localPath to key and returns the number of bytes
// that went over the wire after any compression and encryption.
func (cl *client) Upload(ctx context.Context, localPath, key string) (int64, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	return cl.upload(ctx, key, file)
}

func (cl *client) upload(ctx context.Context, key string, source io.Reader) (int64, error) {

	// create the map for metadata
	mdata := make(map[string]string)

	// insert the compressor - it's a writer but we need a reader
	//   so use an io.Pipe with goroutine
	if cl.compress {
		mdata[metaCompress] = "gzip"
		mdata[metaCompressVersion] = "001"

		reader, writer := io.Pipe()
		defer reader.Close()

		go func(writer *io.PipeWriter, source io.Reader) {
			gzwriter := gzip.NewWriter(writer)

			_, err := io.Copy(gzwriter, source)

			gzwriter.Close()
			if err != nil {
				writer.CloseWithError(err)
			} else {
				writer.Close()
			}

		}(writer, source)

		source = reader
	}

	// insert the encrypter
	if cl.encrypt {
		mdata[metaEncrypt] = "age"
		mdata[metaEncryptVersion] = "001"

		reader, writer := io.Pipe()
		defer reader.Close()

		go func(writer *io.PipeWriter, source io.Reader) {
			ewriter, err := age.Encrypt(writer, cl.recipients...)
			if err != nil {
				writer.CloseWithError(err)
				return
			}

			_, err = io.Copy(ewriter, source)

			ewriter.Close()
			if err != nil {
				writer.CloseWithError(err)
			} else {
				writer.Close()
			}

		}(writer, source)

		source = reader
	}

	// count how many bytes actually get uploaded after compression
	//   and encryption
	counter := NewReadCounter(source)

	// the content length isn't known once the stream is transformed so
	// use the managed uploader rather than PutObject
	uploader := manager.NewUploader(cl.client)

	_, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:   cl.bucket,
		Key:      aws.String(cl.fullKey(key)),
		Body:     counter,
		Metadata: mdata,
	})

	return counter.TotalBytes(), err
}
