package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/elC0mpa/ec2-concierge/config"
	awsconfig "github.com/elC0mpa/ec2-concierge/service/aws/config"
	awsgateway "github.com/elC0mpa/ec2-concierge/service/aws/gateway"
	awssts "github.com/elC0mpa/ec2-concierge/service/aws/sts"
	"github.com/elC0mpa/ec2-concierge/service/flag"
	"github.com/elC0mpa/ec2-concierge/service/lifecycle"
	"github.com/elC0mpa/ec2-concierge/service/orchestrator"
	"github.com/elC0mpa/ec2-concierge/service/policy"
	"github.com/elC0mpa/ec2-concierge/service/registry"
	"github.com/elC0mpa/ec2-concierge/service/scheduler"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	flagService := flag.NewService()
	flags, err := flagService.GetParsedFlags()
	if err != nil {
		logger.Error("parse flags", "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load(flags.ConfigPath)
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}
	region := cfg.Region
	if flags.Region != "" {
		region = flags.Region
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfgService := awsconfig.NewService()
	awsCfg, err := cfgService.GetAWSCfg(ctx, region)
	if err != nil {
		logger.Error("load aws config", "error", err)
		os.Exit(1)
	}

	stsService := awssts.NewService(awsCfg)
	identity, err := stsService.GetCallerIdentity(ctx)
	if err != nil {
		logger.Error("verify aws credentials", "error", err)
		os.Exit(1)
	}
	logger.Info("aws identity verified", "account", *identity.Account, "arn", *identity.Arn)

	gateway := awsgateway.NewService(awsCfg, cfg.Zone, cfg.SageMakerStudioDomainID)

	reg := registry.NewService()
	if err := reg.Rebuild(ctx, gateway); err != nil {
		logger.Error("rebuild registry from tags", "error", err)
		os.Exit(1)
	}
	logger.Info("registry rebuilt", "instances", len(reg.AllInstances()), "volumes", len(reg.AllVolumes()))

	policyService := policy.NewService(cfg)
	lifecycleService := lifecycle.NewService(gateway, reg, policyService, cfg, logger)
	orchestratorService := orchestrator.NewService(lifecycleService, reg, policyService)
	notifier := &logNotifier{logger: logger}
	schedulerService := scheduler.NewService(gateway, reg, policyService, notifier, cfg, logger)

	intake := newIntakeServer(flags.ListenAddr, orchestratorService, logger)
	go func() {
		if err := intake.ListenAndServe(ctx); err != nil {
			logger.Error("intake server stopped", "error", err)
			stop()
		}
	}()

	logger.Info("scheduler starting", "interval", cfg.CheckInterval())
	if err := schedulerService.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("scheduler stopped", "error", err)
		os.Exit(1)
	}
}
