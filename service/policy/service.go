package policy

import (
	"fmt"
	"time"

	"github.com/elC0mpa/ec2-concierge/config"
	"github.com/elC0mpa/ec2-concierge/model"
)

func NewService(cfg *config.Config) *service {
	return &service{cfg: cfg}
}

// runningDuration is the total wall-clock time the instance has spent in the
// Running state: completed periods plus the current one. Time spent Stopped
// never accrues.
func runningDuration(rec *model.InstanceRecord, now time.Time) time.Duration {
	total := rec.AccruedRunning
	if rec.State == model.InstanceStateRunning && !rec.RunningSince.IsZero() {
		if elapsed := now.Sub(rec.RunningSince); elapsed > 0 {
			total += elapsed
		}
	}
	return total
}

func (s *service) EstimateCost(rec *model.InstanceRecord, now time.Time) model.CostEstimate {
	rate := s.cfg.HourlyRate(rec.InstanceType)
	running := runningDuration(rec, now)
	return model.CostEstimate{
		InstanceID:   rec.InstanceID,
		InstanceType: rec.InstanceType,
		Owner:        rec.Owner,
		RunningDays:  int(running.Hours() / 24),
		HourlyRate:   rate,
		AccruedUSD:   rate * running.Hours(),
	}
}

// Evaluate decides which warnings are due for a running instance. Warning
// flags on the record guarantee at most one emission per threshold per
// continuous running period; the scheduler sets them after sending.
func (s *service) Evaluate(rec *model.InstanceRecord, now time.Time) Decision {
	var decision Decision
	if rec.State != model.InstanceStateRunning {
		return decision
	}

	days := int(runningDuration(rec, now).Hours() / 24)
	rate := s.cfg.HourlyRate(rec.InstanceType)

	if days >= s.cfg.InstanceWarningDays && !rec.Warning.GeneralSent {
		decision.GeneralWarning = true
	}
	if rate >= s.cfg.LargeInstanceCostThreshold &&
		days >= s.cfg.LargeInstanceWarningDays &&
		!rec.Warning.LargeCostSent {
		decision.LargeCostWarning = true
	}
	return decision
}

func (s *service) ValidateVolumeSize(sizeGiB int32) error {
	if sizeGiB <= 0 {
		return fmt.Errorf("%w: volume size must be positive", model.ErrPolicyViolation)
	}
	if sizeGiB > s.cfg.MaxVolumeSize {
		return fmt.Errorf("%w: volume size %d GiB exceeds the %d GiB limit", model.ErrPolicyViolation, sizeGiB, s.cfg.MaxVolumeSize)
	}
	return nil
}

func (s *service) ValidateVolumeResize(currentGiB, requestedGiB int32) error {
	if err := s.ValidateVolumeSize(requestedGiB); err != nil {
		return err
	}
	// EBS volumes only grow.
	if requestedGiB <= currentGiB {
		return fmt.Errorf("%w: requested size %d GiB does not exceed current %d GiB", model.ErrPolicyViolation, requestedGiB, currentGiB)
	}
	return nil
}
