package lifecycle

import (
	"context"
	"fmt"

	"github.com/cenkalti/backoff/v5"
	"github.com/elC0mpa/ec2-concierge/model"
)

// maxCloudAttempts bounds retries of a single logical cloud call. After the
// budget is spent on transient failures the resource is marked degraded.
const maxCloudAttempts = 4

// retryCloud retries fn on transient cloud errors with exponential backoff.
// Permanent errors abort immediately.
func retryCloud(ctx context.Context, fn func() error) error {
	_, err := retryCloudValue(ctx, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

func retryCloudValue[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	return backoff.Retry(ctx, func() (T, error) {
		value, err := fn()
		if err != nil && !model.IsTransient(err) {
			return value, backoff.Permanent(err)
		}
		return value, err
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(maxCloudAttempts))
}

// degradeInstance records retry-budget exhaustion on an instance. The record
// is excluded from automatic transitions until manually cleared.
func (s *service) degradeInstance(rec *model.InstanceRecord, err error) error {
	if !model.IsTransient(err) {
		return err
	}
	rec.Degraded = true
	rec.LastError = err.Error()
	s.logger.Error("instance degraded after retry budget exhausted",
		"instance_id", rec.InstanceID, "owner", rec.Owner, "error", err)
	return fmt.Errorf("%w: instance %s: %v", model.ErrDegraded, rec.InstanceID, err)
}

func (s *service) degradeVolume(rec *model.VolumeRecord, err error) error {
	if !model.IsTransient(err) {
		return err
	}
	rec.Degraded = true
	rec.LastError = err.Error()
	s.logger.Error("volume degraded after retry budget exhausted",
		"volume_id", rec.VolumeID, "owner", rec.Owner, "error", err)
	return fmt.Errorf("%w: volume %s: %v", model.ErrDegraded, rec.VolumeID, err)
}
