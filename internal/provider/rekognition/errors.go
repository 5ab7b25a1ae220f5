package rekognition

import (
	"errors"

	"github.com/aws/smithy-go"
)

var (
	// ErrInvalidCredentials indicates that AWS credentials are invalid or missing
	ErrInvalidCredentials = errors.New("invalid or missing AWS credentials")

	// ErrUnsupportedImage indicates an image Rekognition cannot analyze (format or size)
	ErrUnsupportedImage = errors.New("image not supported by rekognition")
)

const (
	errCodeAccessDenied       = "AccessDeniedException"
	errCodeThrottling         = "ThrottlingException"
	errCodeThroughputExceeded = "ProvisionedThroughputExceededException"
	errCodeInvalidImage       = "InvalidImageFormatException"
	errCodeImageTooLarge      = "ImageTooLargeException"
)

// apiErrorCode extracts the AWS error code, or "" for transport errors.
func apiErrorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

// classify maps an AWS error to a package error where one exists.
func classify(err error) error {
	switch apiErrorCode(err) {
	case errCodeAccessDenied:
		return ErrInvalidCredentials
	case errCodeInvalidImage, errCodeImageTooLarge:
		return ErrUnsupportedImage
	}
	return err
}
