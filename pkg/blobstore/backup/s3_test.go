package backup

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBlobKeyLayout(t *testing.T) {
	assert.Equal(t, "packages/acme/widget/1.2.3.zpkg", blobKey("acme", "widget", "1.2.3"))
}

func TestIsNotFoundError(t *testing.T) {
	assert.True(t, isNotFoundError(errors.New("NotFound: key does not exist")))
	assert.True(t, isNotFoundError(errors.New("operation error S3: HeadObject, NoSuchKey")))
	assert.False(t, isNotFoundError(errors.New("AccessDenied")))
	assert.False(t, isNotFoundError(nil))
}

func TestIsBucketAlreadyExistsError(t *testing.T) {
	assert.True(t, isBucketAlreadyExistsError(errors.New("BucketAlreadyExists")))
	assert.True(t, isBucketAlreadyExistsError(errors.New("BucketAlreadyOwnedByYou")))
	assert.False(t, isBucketAlreadyExistsError(errors.New("InvalidBucketName")))
}
