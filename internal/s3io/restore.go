package s3io

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// RestoreTier is the retrieval speed requested for an archived object.
// Faster tiers cost more.
type RestoreTier string

const (
	TierExpedited RestoreTier = "expedited"
	TierStandard  RestoreTier = "standard"
	TierBulk      RestoreTier = "bulk"
)

// DefaultRestoreDays is how long a restored copy stays retrievable unless
// told otherwise.
const DefaultRestoreDays = 7

// MaxRestoreDays is the longest retention S3 accepts for a restored copy.
const MaxRestoreDays = 30000

func ParseRestoreTier(tier string) (RestoreTier, error) {
	switch RestoreTier(strings.ToLower(strings.TrimSpace(tier))) {
	case TierExpedited:
		return TierExpedited, nil
	case TierStandard:
		return TierStandard, nil
	case TierBulk, "":
		return TierBulk, nil
	}
	return "", &ErrInvalidTier{tier: tier}
}

// ExpectedLatency is the operator facing estimate of how long a restore in
// this tier takes to complete.
func (t RestoreTier) ExpectedLatency() string {
	switch t {
	case TierExpedited:
		return "1-5 minutes"
	case TierStandard:
		return "3-5 hours"
	default:
		return "12-48 hours"
	}
}

func (t RestoreTier) s3Tier() types.Tier {
	switch t {
	case TierExpedited:
		return types.TierExpedited
	case TierStandard:
		return types.TierStandard
	default:
		return types.TierBulk
	}
}

// RestoreRequest is the outcome of asking for a restore.
type RestoreRequest int

const (
	RestoreInitiated RestoreRequest = iota
	RestoreAlreadyInProgress
	RestoreNotRequired
	RestoreFailed
)

func (r RestoreRequest) String() string {
	switch r {
	case RestoreInitiated:
		return "initiated"
	case RestoreAlreadyInProgress:
		return "already in progress"
	case RestoreNotRequired:
		return "not required"
	case RestoreFailed:
		return "failed"
	}
	return "unknown"
}

// RestoreState is where a key sits in the restore lifecycle:
//
//	NotStarted -> InProgress -> Completed
//
// Unknown means the restore header couldn't be interpreted; Error means the
// status query itself failed. Neither is final: the next poll asks again.
type RestoreState int

const (
	RestoreNotStarted RestoreState = iota
	RestoreInProgress
	RestoreCompleted
	RestoreUnknown
	RestoreError
)

func (s RestoreState) String() string {
	switch s {
	case RestoreNotStarted:
		return "not_started"
	case RestoreInProgress:
		return "in_progress"
	case RestoreCompleted:
		return "completed"
	case RestoreError:
		return "error"
	}
	return "unknown"
}

// RestoreInfo is the result of a restore status query.
type RestoreInfo struct {
	Key          string
	StorageClass string
	State        RestoreState
	Expiry       time.Time
	Err          error
}

var (
	ongoingRe = regexp.MustCompile(`ongoing-request\s*=\s*"(true|false)"`)
	expiryRe  = regexp.MustCompile(`expiry-date\s*=\s*"([^"]+)"`)
)

// ParseRestoreHeader interprets the x-amz-restore header, for example
//
//	ongoing-request="false", expiry-date="Fri, 21 Dec 2012 00:00:00 GMT"
//
// An empty header means no restore was ever requested.
func ParseRestoreHeader(header string) (RestoreState, time.Time) {
	if strings.TrimSpace(header) == "" {
		return RestoreNotStarted, time.Time{}
	}

	m := ongoingRe.FindStringSubmatch(header)
	if m == nil {
		return RestoreUnknown, time.Time{}
	}
	if m[1] == "true" {
		return RestoreInProgress, time.Time{}
	}

	var expiry time.Time
	if em := expiryRe.FindStringSubmatch(header); em != nil {
		if t, err := http.ParseTime(em[1]); err == nil {
			expiry = t
		}
	}

	return RestoreCompleted, expiry
}

func (cl *client) RequestRestore(ctx context.Context, key string, tier RestoreTier, days int32) (RestoreRequest, error) {
	if days <= 0 {
		days = DefaultRestoreDays
	}

	_, err := cl.client.RestoreObject(ctx, &s3.RestoreObjectInput{
		Bucket: cl.bucket,
		Key:    aws.String(cl.fullKey(key)),
		RestoreRequest: &types.RestoreRequest{
			Days: aws.Int32(days),
			GlacierJobParameters: &types.GlacierJobParameters{
				Tier: tier.s3Tier(),
			},
		},
	})
	if err == nil {
		return RestoreInitiated, nil
	}

	var active *types.ObjectAlreadyInActiveTierError
	if errors.As(err, &active) {
		return RestoreNotRequired, nil
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "RestoreAlreadyInProgress" {
		return RestoreAlreadyInProgress, nil
	}

	return RestoreFailed, fmt.Errorf("restore %s: %w", key, err)
}

func (cl *client) RestoreStatus(ctx context.Context, key string) (*RestoreInfo, error) {
	hoo, err := cl.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: cl.bucket,
		Key:    aws.String(cl.fullKey(key)),
	})
	if err != nil {
		if isNotFound(err) {
			err = &ErrNoSuchObject{Key: key}
		}
		return &RestoreInfo{
			Key:   key,
			State: RestoreError,
			Err:   err,
		}, err
	}

	sclass := string(hoo.StorageClass)
	if sclass == "" {
		sclass = string(types.StorageClassStandard)
	}

	state, expiry := ParseRestoreHeader(aws.ToString(hoo.Restore))

	return &RestoreInfo{
		Key:          key,
		StorageClass: sclass,
		State:        state,
		Expiry:       expiry,
	}, nil
}
