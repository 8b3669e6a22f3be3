package awscostexplorer

import (
	"context"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer"
	"github.com/aws/aws-sdk-go-v2/service/costexplorer/types"
	"github.com/elC0mpa/ec2-concierge/model"
)

func NewService(awsconfig aws.Config) *service {
	client := costexplorer.NewFromConfig(awsconfig)
	return &service{
		client: client,
	}
}

// GetMonthToDateSpend returns actual billed spend for the current month,
// grouped by service. The engine's accrual figures are estimates from the
// static price table; this is the ground truth for the admin status surface.
func (s *service) GetMonthToDateSpend(ctx context.Context) (*model.SpendReport, error) {
	now := time.Now()
	firstOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	costsAggregation := "UnblendedCost"

	input := &costexplorer.GetCostAndUsageInput{
		Granularity: types.GranularityMonthly,
		TimePeriod: &types.DateInterval{
			Start: aws.String(firstOfMonth.Format("2006-01-02")),
			End:   aws.String(now.Format("2006-01-02")),
		},
		Metrics: []string{costsAggregation},
		GroupBy: []types.GroupDefinition{
			{
				Key:  aws.String("SERVICE"),
				Type: types.GroupDefinitionTypeDimension,
			},
		},
	}

	output, err := s.client.GetCostAndUsage(ctx, input)
	if err != nil {
		return nil, err
	}
	if len(output.ResultsByTime) == 0 {
		return &model.SpendReport{}, nil
	}

	result := output.ResultsByTime[0]
	report := &model.SpendReport{
		Start: aws.ToString(result.TimePeriod.Start),
		End:   aws.ToString(result.TimePeriod.End),
	}
	for _, group := range result.Groups {
		metric, ok := group.Metrics[costsAggregation]
		if !ok || len(group.Keys) == 0 {
			continue
		}
		amount, err := strconv.ParseFloat(aws.ToString(metric.Amount), 64)
		if err != nil {
			continue
		}
		report.Services = append(report.Services, model.ServiceSpend{
			Service: group.Keys[0],
			Amount:  amount,
			Unit:    aws.ToString(metric.Unit),
		})
		report.Total += amount
	}

	return report, nil
}
