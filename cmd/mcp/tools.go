package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/elC0mpa/ec2-concierge/model"
	awsconfig "github.com/elC0mpa/ec2-concierge/service/aws/config"
	awscostexplorer "github.com/elC0mpa/ec2-concierge/service/aws/costexplorer"
	awsgateway "github.com/elC0mpa/ec2-concierge/service/aws/gateway"
	awssts "github.com/elC0mpa/ec2-concierge/service/aws/sts"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// RegisterTools registers the read-only inspection tools. Lifecycle
// mutations stay behind the command intake; none are exposed here.
func RegisterTools(s *server.MCPServer, cfg *Config) {
	s.AddTool(
		mcp.NewTool("get_account_info",
			mcp.WithDescription("Get AWS account identity information including account ID and ARN"),
		),
		makeAccountInfoHandler(cfg.Region),
	)

	s.AddTool(
		mcp.NewTool("list_managed_instances",
			mcp.WithDescription("List EC2 instances managed by the concierge, with owner, type and state"),
		),
		makeListInstancesHandler(cfg.Region),
	)

	s.AddTool(
		mcp.NewTool("list_managed_volumes",
			mcp.WithDescription("List EBS volumes managed by the concierge, with owner, size and state"),
		),
		makeListVolumesHandler(cfg.Region),
	)

	s.AddTool(
		mcp.NewTool("get_month_to_date_spend",
			mcp.WithDescription("Get actual billed AWS spend for the current month, broken down by service"),
		),
		makeSpendHandler(cfg.Region),
	)
}

func makeAccountInfoHandler(region string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		configSvc := awsconfig.NewService()
		awsCfg, err := configSvc.GetAWSCfg(ctx, region)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to configure AWS: %v", err)), nil
		}

		stsSvc := awssts.NewService(awsCfg)
		identity, err := stsSvc.GetCallerIdentity(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to get account info: %v", err)), nil
		}

		resp := map[string]string{
			"account": *identity.Account,
			"arn":     *identity.Arn,
			"user_id": *identity.UserId,
		}
		data, _ := json.MarshalIndent(resp, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	}
}

func makeListInstancesHandler(region string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		configSvc := awsconfig.NewService()
		awsCfg, err := configSvc.GetAWSCfg(ctx, region)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to configure AWS: %v", err)), nil
		}

		gateway := awsgateway.NewService(awsCfg, "", "")
		snapshots, err := gateway.ListInstances(ctx, model.InstanceFilter{})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to list instances: %v", err)), nil
		}

		type instanceView struct {
			InstanceID   string `json:"instance_id"`
			Owner        string `json:"owner"`
			InstanceType string `json:"instance_type"`
			State        string `json:"state"`
			LaunchTime   string `json:"launch_time"`
			PublicDNS    string `json:"public_dns,omitempty"`
		}
		views := make([]instanceView, 0, len(snapshots))
		for _, snap := range snapshots {
			views = append(views, instanceView{
				InstanceID:   snap.InstanceID,
				Owner:        snap.Tags[model.OwnerTagKey],
				InstanceType: snap.InstanceType,
				State:        string(snap.State),
				LaunchTime:   snap.LaunchTime.Format("2006-01-02 15:04:05"),
				PublicDNS:    snap.PublicDNS,
			})
		}
		data, _ := json.MarshalIndent(views, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	}
}

func makeListVolumesHandler(region string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		configSvc := awsconfig.NewService()
		awsCfg, err := configSvc.GetAWSCfg(ctx, region)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to configure AWS: %v", err)), nil
		}

		gateway := awsgateway.NewService(awsCfg, "", "")
		snapshots, err := gateway.ListVolumes(ctx, model.VolumeFilter{})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to list volumes: %v", err)), nil
		}

		type volumeView struct {
			VolumeID   string `json:"volume_id"`
			Owner      string `json:"owner"`
			SizeGiB    int32  `json:"size_gib"`
			State      string `json:"state"`
			AttachedTo string `json:"attached_to,omitempty"`
		}
		views := make([]volumeView, 0, len(snapshots))
		for _, snap := range snapshots {
			views = append(views, volumeView{
				VolumeID:   snap.VolumeID,
				Owner:      snap.Tags[model.OwnerTagKey],
				SizeGiB:    snap.SizeGiB,
				State:      string(snap.State),
				AttachedTo: snap.AttachedTo,
			})
		}
		data, _ := json.MarshalIndent(views, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	}
}

func makeSpendHandler(region string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		configSvc := awsconfig.NewService()
		awsCfg, err := configSvc.GetAWSCfg(ctx, region)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to configure AWS: %v", err)), nil
		}

		costSvc := awscostexplorer.NewService(awsCfg)
		report, err := costSvc.GetMonthToDateSpend(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to get spend: %v", err)), nil
		}

		data, _ := json.MarshalIndent(report, "", "  ")
		return mcp.NewToolResultText(string(data)), nil
	}
}
