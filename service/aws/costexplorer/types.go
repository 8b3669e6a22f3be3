package awscostexplorer

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	"github.com/elC0mpa/ec2-concierge/model"
)

type service struct {
	client *costexplorer.Client
}

type CostService interface {
	GetMonthToDateSpend(ctx context.Context) (*model.SpendReport, error)
}
