package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// AMI is one entry of the launchable image catalog.
type AMI struct {
	ID            string `yaml:"id"`
	User          string `yaml:"user"`
	StartupScript string `yaml:"startup_script"`
}

// Config is the engine's full configuration, loaded once at startup.
type Config struct {
	Region             string   `yaml:"region"`
	Zone               string   `yaml:"zone"`
	SubnetID           string   `yaml:"subnet_id"`
	SecurityGroupIDs   []string `yaml:"security_group_ids"`
	IAMInstanceProfile string   `yaml:"iam_instance_profile"`

	AMIs map[string]AMI `yaml:"amis"`

	// InstanceTypes maps instance type to hourly USD cost.
	InstanceTypes map[string]float64 `yaml:"instance_types"`

	EFSIP                   string `yaml:"efs_ip"`
	SageMakerStudioDomainID string `yaml:"sagemaker_studio_domain_id"`

	CheckIntervalSeconds       int     `yaml:"check_interval_seconds"`
	InstanceWarningDays        int     `yaml:"instance_warning_days"`
	LargeInstanceCostThreshold float64 `yaml:"large_instance_cost_threshold"`
	LargeInstanceWarningDays   int     `yaml:"large_instance_warning_days"`

	MaxVolumeSize int32 `yaml:"max_volume_size"`
	RootEBSSize   int32 `yaml:"root_ebs_size"`

	DefaultTags map[string]string `yaml:"default_tags"`

	// AdminUser receives degraded-resource escalations when set.
	AdminUser string `yaml:"admin_user"`
}

// Load reads and validates the YAML configuration at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if cfg.Region == "" {
		return nil, fmt.Errorf("config: region is required")
	}
	if cfg.Zone == "" {
		return nil, fmt.Errorf("config: zone is required")
	}
	if len(cfg.AMIs) == 0 {
		return nil, fmt.Errorf("config: at least one AMI is required")
	}
	if len(cfg.InstanceTypes) == 0 {
		return nil, fmt.Errorf("config: instance type price table is required")
	}
	if cfg.MaxVolumeSize <= 0 {
		return nil, fmt.Errorf("config: max_volume_size must be positive")
	}

	if cfg.CheckIntervalSeconds <= 0 {
		cfg.CheckIntervalSeconds = 3600
	}
	if cfg.RootEBSSize <= 0 {
		cfg.RootEBSSize = 100
	}

	return &cfg, nil
}

// HourlyRate returns the configured hourly cost for an instance type. Types
// missing from the price table are assumed expensive, so unknown hardware
// trips the large-instance threshold rather than evading it.
func (c *Config) HourlyRate(instanceType string) float64 {
	if rate, ok := c.InstanceTypes[instanceType]; ok {
		return rate
	}
	return c.LargeInstanceCostThreshold
}

// CheckInterval returns the sweep interval as a duration.
func (c *Config) CheckInterval() time.Duration {
	return time.Duration(c.CheckIntervalSeconds) * time.Second
}

// EFSEnabled reports whether EFS home-directory mounts are configured.
func (c *Config) EFSEnabled() bool {
	return c.EFSIP != "" && c.SageMakerStudioDomainID != ""
}
