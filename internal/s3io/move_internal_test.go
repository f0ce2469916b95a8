package s3io

import (
	"errors"
	"fmt"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

func TestRequiresRestoreClassification(t *testing.T) {
	archived := &smithy.GenericAPIError{Code: "InvalidObjectState", Message: "The operation is not valid for the object's storage class"}
	assert.True(t, requiresRestore(archived))
	assert.True(t, requiresRestore(fmt.Errorf("wrapped: %w", archived)))
	assert.True(t, requiresRestore(&types.ObjectNotInActiveTierError{}))

	assert.False(t, requiresRestore(&smithy.GenericAPIError{Code: "AccessDenied"}))
	assert.False(t, requiresRestore(errors.New("connection reset")))
}

func TestCopySourceEscapesSegments(t *testing.T) {
	assert.Equal(t, "bucket/music/a%20b/c.mp3", copySource("bucket", "music/a b/c.mp3"))
	assert.Equal(t, "bucket/what%3F.txt", copySource("bucket", "what?.txt"))
}

func TestKeyPrefixing(t *testing.T) {
	cl := &client{prefix: NormalizePrefix("backups/mac")}
	assert.Equal(t, "backups/mac/x.txt", cl.fullKey("x.txt"))
	assert.Equal(t, "x.txt", cl.relKey("backups/mac/x.txt"))

	bare := &client{}
	assert.Equal(t, "x.txt", bare.fullKey("x.txt"))
}
