package s3io

import (
	"errors"
	"fmt"
)

type ErrPermissionsTooOpen struct {
	msg string
}

func (e *ErrPermissionsTooOpen) Error() string {
	return e.msg
}

type ErrNoRecipients struct {
	file string
}

func (e *ErrNoRecipients) Error() string {
	if e.file == "" {
		return "unable to encrypt: no recipients file configured"
	}
	return fmt.Sprintf("unable to encrypt: no recipients found in '%s'", e.file)
}

type ErrIdentitiesNotFound struct{}

func (e *ErrIdentitiesNotFound) Error() string {
	return "unable to decrypt: no identities available"
}

type ErrNoSuchObject struct {
	Key string
}

func (e *ErrNoSuchObject) Error() string {
	return fmt.Sprintf("no such object in bucket: %s", e.Key)
}

type ErrNotDownloadable struct {
	key          string
	storageClass string
}

func (e *ErrNotDownloadable) Error() string {
	return fmt.Sprintf("object is not downloadable: %s: storage class is %s", e.key, e.storageClass)
}

// ErrRequiresRestore is returned by Move when the source object sits in a
// storage class that has to be restored before it can be copied.
type ErrRequiresRestore struct {
	Key string
	Msg string
}

func (e *ErrRequiresRestore) Error() string {
	return fmt.Sprintf("object requires restore before it can be moved: %s", e.Key)
}

// IsRequiresRestore reports whether err, or any error it wraps, is an
// *ErrRequiresRestore.
func IsRequiresRestore(err error) bool {
	var restore *ErrRequiresRestore
	return errors.As(err, &restore)
}

type ErrInvalidTier struct {
	tier string
}

func (e *ErrInvalidTier) Error() string {
	return fmt.Sprintf("invalid restore tier: '%s': expected bulk, standard or expedited", e.tier)
}
