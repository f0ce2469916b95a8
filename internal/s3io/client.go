package s3io

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"filippo.io/age"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// maxDeleteBatch is the DeleteObjects request ceiling for S3.
const maxDeleteBatch = 1000

// Object is the remote view of a single key. Key is relative to the
// client's prefix.
type Object struct {
	Key          string
	Size         int64
	ETag         string
	StorageClass string
}

// Client is the remote directory the sync core talks to. Every key passed
// to or returned from a Client is relative to the configured prefix.
type Client interface {
	List(ctx context.Context) (map[string]*Object, error)
	Exists(ctx context.Context, key string) (bool, error)

	Upload(ctx context.Context, localPath, key string) (int64, error)
	DeleteBatch(ctx context.Context, keys []string) ([]string, error)
	MaxDeleteBatch() int
	Move(ctx context.Context, oldKey, newKey string) error

	RequestRestore(ctx context.Context, key string, tier RestoreTier, days int32) (RestoreRequest, error)
	RestoreStatus(ctx context.Context, key string) (*RestoreInfo, error)

	HasIdentities() bool
	Download(ctx context.Context, key string, sink io.Writer) (int64, error)
}

// Options configures NewClient. Only Bucket is required.
type Options struct {
	Profile   string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string

	Bucket string
	Prefix string

	Compress       bool
	Encrypt        bool
	RecipientsFile string
	IdentitiesFile string

	Timeout time.Duration
}

type client struct {
	client     *s3.Client
	bucket     *string
	prefix     string
	compress   bool
	encrypt    bool
	recipients []age.Recipient
	identities []age.Identity
}

func NewClient(ctx context.Context, opts Options) (Client, error) {
	if opts.Bucket == "" {
		return nil, errors.New("no bucket given")
	}

	// load the profile and any overrides
	var loaders []func(*config.LoadOptions) error
	if opts.Profile != "" {
		loaders = append(loaders, config.WithSharedConfigProfile(opts.Profile))
	}
	if opts.Region != "" {
		loaders = append(loaders, config.WithRegion(opts.Region))
	}
	if opts.AccessKey != "" {
		loaders = append(loaders, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		))
	}
	if opts.Timeout > 0 {
		loaders = append(loaders, config.WithHTTPClient(&http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				MaxIdleConns:          100,
				MaxIdleConnsPerHost:   32,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
			},
			Timeout: opts.Timeout,
		}))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loaders...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	// create the client; custom endpoints are S3-compatible stores that
	// generally only support path style addressing
	s3client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})

	return newClient(s3client, opts)
}

func newClient(s3client *s3.Client, opts Options) (*client, error) {
	// load the encryption keys
	var recipients []age.Recipient
	if opts.Encrypt {
		var err error
		recipients, err = loadRecipients(opts.RecipientsFile)
		if err != nil {
			return nil, err
		}
	}
	identities, err := loadIdentities(opts.IdentitiesFile)
	if err != nil {
		return nil, err
	}

	cl := client{
		client:     s3client,
		bucket:     aws.String(opts.Bucket),
		prefix:     NormalizePrefix(opts.Prefix),
		compress:   opts.Compress,
		encrypt:    opts.Encrypt,
		recipients: recipients,
		identities: identities,
	}

	return &cl, nil
}

func (cl *client) HasIdentities() bool {
	return len(cl.identities) > 0
}

func (cl *client) MaxDeleteBatch() int {
	return maxDeleteBatch
}

// NormalizePrefix trims surrounding slashes and adds a single trailing one,
// so "", "/" and "a/b/" become "", "" and "a/b/".
func NormalizePrefix(prefix string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return ""
	}
	return prefix + "/"
}

func (cl *client) fullKey(key string) string {
	return cl.prefix + key
}

func (cl *client) relKey(key string) string {
	return strings.TrimPrefix(key, cl.prefix)
}

func loadRecipients(recipients_file string) ([]age.Recipient, error) {
	if recipients_file == "" {
		return nil, &ErrNoRecipients{}
	}

	f, err := os.Open(recipients_file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	recipients, err := age.ParseRecipients(f)
	if err != nil {
		return nil, err
	}
	if len(recipients) == 0 {
		return nil, &ErrNoRecipients{file: recipients_file}
	}

	return recipients, nil
}

func loadIdentities(identities_file string) ([]age.Identity, error) {
	// set the default path for 'default'
	if identities_file == "default" {
		u, err := user.Current()
		if err != nil {
			return nil, err
		}
		identities_file = filepath.Join(u.HomeDir, ".s3smartsync", "identities.txt")
	}
	if identities_file == "" {
		return nil, nil
	}

	// check the file permissions
	info, err := os.Stat(identities_file)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	perms := info.Mode()
	if perms&0077 != 0 {
		return nil, &ErrPermissionsTooOpen{
			msg: fmt.Sprintf("Permissions on identities file are too open: %#o", perms),
		}
	}

	// load the identities
	f, err := os.Open(identities_file)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	return age.ParseIdentities(f)
}
