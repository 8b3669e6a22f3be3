package policy

import (
	"time"

	"github.com/elC0mpa/ec2-concierge/config"
	"github.com/elC0mpa/ec2-concierge/model"
)

type service struct {
	cfg *config.Config
}

// Decision is the policy verdict for one running instance on one sweep.
type Decision struct {
	// GeneralWarning is due when the instance crossed the general
	// run-length threshold and no warning went out this running period.
	GeneralWarning bool

	// LargeCostWarning is due on the tighter threshold for expensive
	// instance types. Independent of the general one; it can fire first.
	LargeCostWarning bool
}

type PolicyService interface {
	EstimateCost(rec *model.InstanceRecord, now time.Time) model.CostEstimate
	Evaluate(rec *model.InstanceRecord, now time.Time) Decision
	ValidateVolumeSize(sizeGiB int32) error
	ValidateVolumeResize(currentGiB, requestedGiB int32) error
}
