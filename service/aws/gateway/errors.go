package awsgateway

import (
	"context"
	"errors"
	"net"

	"github.com/aws/smithy-go"
	"github.com/elC0mpa/ec2-concierge/model"
)

// Throttling and availability codes worth retrying. Everything else the API
// rejects (bad parameters, quota, missing resources) is permanent.
var transientCodes = map[string]bool{
	"RequestLimitExceeded":      true,
	"Throttling":                true,
	"ThrottlingException":       true,
	"RequestThrottled":          true,
	"RequestThrottledException": true,
	"EC2ThrottledException":     true,
	"ServiceUnavailable":        true,
	"InternalError":             true,
	"InternalFailure":           true,
	"RequestTimeout":            true,
	"RequestTimeoutException":   true,
}

func wrapCloudError(op string, err error) error {
	if err == nil {
		return nil
	}

	cloudErr := &model.CloudError{Op: op, Err: err}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		cloudErr.Code = apiErr.ErrorCode()
		cloudErr.Transient = transientCodes[cloudErr.Code]
		return cloudErr
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		cloudErr.Transient = true
		return cloudErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		cloudErr.Transient = true
	}

	return cloudErr
}
