package awsgateway

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/sagemaker"
	"github.com/aws/smithy-go"
	"github.com/elC0mpa/ec2-concierge/model"
)

func NewService(awsconfig aws.Config, zone, studioDomainID string) *service {
	return &service{
		ec2Client:       ec2.NewFromConfig(awsconfig),
		sagemakerClient: sagemaker.NewFromConfig(awsconfig),
		zone:            zone,
		studioDomainID:  studioDomainID,
	}
}

func (s *service) ListInstances(ctx context.Context, filter model.InstanceFilter) ([]model.InstanceSnapshot, error) {
	filters := []ec2types.Filter{ownerFilter(filter.Owner)}
	if len(filter.States) > 0 {
		states := make([]string, 0, len(filter.States))
		for _, st := range filter.States {
			states = append(states, string(st))
		}
		filters = append(filters, ec2types.Filter{
			Name:   aws.String("instance-state-name"),
			Values: states,
		})
	}

	var snapshots []model.InstanceSnapshot
	paginator := ec2.NewDescribeInstancesPaginator(s.ec2Client, &ec2.DescribeInstancesInput{Filters: filters})
	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, wrapCloudError("DescribeInstances", err)
		}
		for _, reservation := range output.Reservations {
			for _, instance := range reservation.Instances {
				snapshots = append(snapshots, instanceSnapshot(instance))
			}
		}
	}

	return snapshots, nil
}

func (s *service) CreateInstance(ctx context.Context, spec model.LaunchSpec) (string, error) {
	input := &ec2.RunInstancesInput{
		ImageId:      aws.String(spec.AMIID),
		InstanceType: ec2types.InstanceType(spec.InstanceType),
		KeyName:      aws.String(spec.KeyName),
		MinCount:     aws.Int32(1),
		MaxCount:     aws.Int32(1),
		UserData:     aws.String(base64.StdEncoding.EncodeToString([]byte(spec.UserData))),
		ClientToken:  aws.String(spec.ClientToken),
		BlockDeviceMappings: []ec2types.BlockDeviceMapping{
			{
				DeviceName: aws.String("/dev/sda1"),
				Ebs: &ec2types.EbsBlockDevice{
					VolumeSize: aws.Int32(spec.RootVolumeSizeGiB),
					VolumeType: ec2types.VolumeTypeGp2,
				},
			},
		},
		TagSpecifications: []ec2types.TagSpecification{
			{
				ResourceType: ec2types.ResourceTypeInstance,
				Tags:         awsTags(spec.Tags),
			},
		},
	}
	if spec.IAMInstanceProfile != "" {
		input.IamInstanceProfile = &ec2types.IamInstanceProfileSpecification{
			Name: aws.String(spec.IAMInstanceProfile),
		}
	}
	if len(spec.SecurityGroupIDs) > 0 {
		input.SecurityGroupIds = spec.SecurityGroupIDs
	}
	if spec.SubnetID != "" {
		input.SubnetId = aws.String(spec.SubnetID)
	}

	output, err := s.ec2Client.RunInstances(ctx, input)
	if err != nil {
		return "", wrapCloudError("RunInstances", err)
	}
	if len(output.Instances) == 0 {
		return "", &model.CloudError{Op: "RunInstances", Err: errors.New("no instance in response")}
	}
	return aws.ToString(output.Instances[0].InstanceId), nil
}

func (s *service) TerminateInstance(ctx context.Context, instanceID string) error {
	_, err := s.ec2Client.TerminateInstances(ctx, &ec2.TerminateInstancesInput{
		InstanceIds: []string{instanceID},
	})
	return wrapCloudError("TerminateInstances", err)
}

func (s *service) StartInstance(ctx context.Context, instanceID string) error {
	_, err := s.ec2Client.StartInstances(ctx, &ec2.StartInstancesInput{
		InstanceIds: []string{instanceID},
	})
	return wrapCloudError("StartInstances", err)
}

func (s *service) StopInstance(ctx context.Context, instanceID string) error {
	_, err := s.ec2Client.StopInstances(ctx, &ec2.StopInstancesInput{
		InstanceIds: []string{instanceID},
	})
	return wrapCloudError("StopInstances", err)
}

func (s *service) ModifyInstanceType(ctx context.Context, instanceID, instanceType string) error {
	_, err := s.ec2Client.ModifyInstanceAttribute(ctx, &ec2.ModifyInstanceAttributeInput{
		InstanceId:   aws.String(instanceID),
		InstanceType: &ec2types.AttributeValue{Value: aws.String(instanceType)},
	})
	return wrapCloudError("ModifyInstanceAttribute", err)
}

func (s *service) ListVolumes(ctx context.Context, filter model.VolumeFilter) ([]model.VolumeSnapshot, error) {
	output, err := s.ec2Client.DescribeVolumes(ctx, &ec2.DescribeVolumesInput{
		Filters: []ec2types.Filter{ownerFilter(filter.Owner)},
	})
	if err != nil {
		return nil, wrapCloudError("DescribeVolumes", err)
	}

	snapshots := make([]model.VolumeSnapshot, 0, len(output.Volumes))
	for _, volume := range output.Volumes {
		snapshots = append(snapshots, volumeSnapshot(volume))
	}
	return snapshots, nil
}

func (s *service) CreateVolume(ctx context.Context, spec model.VolumeSpec) (string, error) {
	output, err := s.ec2Client.CreateVolume(ctx, &ec2.CreateVolumeInput{
		AvailabilityZone: aws.String(s.zone),
		Size:             aws.Int32(spec.SizeGiB),
		VolumeType:       ec2types.VolumeTypeGp2,
		ClientToken:      aws.String(spec.ClientToken),
		TagSpecifications: []ec2types.TagSpecification{
			{
				ResourceType: ec2types.ResourceTypeVolume,
				Tags:         awsTags(spec.Tags),
			},
		},
	})
	if err != nil {
		return "", wrapCloudError("CreateVolume", err)
	}
	return aws.ToString(output.VolumeId), nil
}

func (s *service) AttachVolume(ctx context.Context, volumeID, instanceID, device string) error {
	_, err := s.ec2Client.AttachVolume(ctx, &ec2.AttachVolumeInput{
		VolumeId:   aws.String(volumeID),
		InstanceId: aws.String(instanceID),
		Device:     aws.String(device),
	})
	return wrapCloudError("AttachVolume", err)
}

func (s *service) DetachVolume(ctx context.Context, volumeID string) error {
	_, err := s.ec2Client.DetachVolume(ctx, &ec2.DetachVolumeInput{
		VolumeId: aws.String(volumeID),
		Force:    aws.Bool(false),
	})
	return wrapCloudError("DetachVolume", err)
}

func (s *service) ResizeVolume(ctx context.Context, volumeID string, sizeGiB int32) error {
	_, err := s.ec2Client.ModifyVolume(ctx, &ec2.ModifyVolumeInput{
		VolumeId: aws.String(volumeID),
		Size:     aws.Int32(sizeGiB),
	})
	return wrapCloudError("ModifyVolume", err)
}

func (s *service) DeleteVolume(ctx context.Context, volumeID string) error {
	_, err := s.ec2Client.DeleteVolume(ctx, &ec2.DeleteVolumeInput{
		VolumeId: aws.String(volumeID),
	})
	return wrapCloudError("DeleteVolume", err)
}

func (s *service) ImportKeyPair(ctx context.Context, keyName, publicKey string) error {
	_, err := s.ec2Client.ImportKeyPair(ctx, &ec2.ImportKeyPairInput{
		KeyName:           aws.String(keyName),
		PublicKeyMaterial: []byte(publicKey),
	})
	return wrapCloudError("ImportKeyPair", err)
}

func (s *service) DeleteKeyPair(ctx context.Context, keyName string) error {
	_, err := s.ec2Client.DeleteKeyPair(ctx, &ec2.DeleteKeyPairInput{
		KeyName: aws.String(keyName),
	})
	return wrapCloudError("DeleteKeyPair", err)
}

func (s *service) HasKeyPair(ctx context.Context, keyName string) (bool, error) {
	_, err := s.ec2Client.DescribeKeyPairs(ctx, &ec2.DescribeKeyPairsInput{
		KeyNames: []string{keyName},
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "InvalidKeyPair.NotFound" {
			return false, nil
		}
		return false, wrapCloudError("DescribeKeyPairs", err)
	}
	return true, nil
}

func (s *service) HomeEFSUid(ctx context.Context, user model.User) (string, error) {
	if s.studioDomainID == "" {
		return "", nil
	}

	// Studio profile names cannot contain dots.
	profileName := strings.ReplaceAll(string(user), ".", "-")

	output, err := s.sagemakerClient.DescribeUserProfile(ctx, &sagemaker.DescribeUserProfileInput{
		DomainId:        aws.String(s.studioDomainID),
		UserProfileName: aws.String(profileName),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "ResourceNotFound" {
			return "", nil
		}
		return "", wrapCloudError("DescribeUserProfile", err)
	}
	return aws.ToString(output.HomeEfsFileSystemUid), nil
}

func ownerFilter(owner model.User) ec2types.Filter {
	if owner == "" {
		return ec2types.Filter{
			Name:   aws.String("tag-key"),
			Values: []string{model.OwnerTagKey},
		}
	}
	return ec2types.Filter{
		Name:   aws.String("tag:" + model.OwnerTagKey),
		Values: []string{string(owner)},
	}
}

func instanceSnapshot(instance ec2types.Instance) model.InstanceSnapshot {
	snapshot := model.InstanceSnapshot{
		InstanceID:            aws.ToString(instance.InstanceId),
		InstanceType:          string(instance.InstanceType),
		State:                 model.InstanceState(instance.State.Name),
		PublicDNS:             aws.ToString(instance.PublicDnsName),
		StateTransitionReason: aws.ToString(instance.StateTransitionReason),
		Tags:                  tagMap(instance.Tags),
	}
	if instance.LaunchTime != nil {
		snapshot.LaunchTime = *instance.LaunchTime
	}
	return snapshot
}

func volumeSnapshot(volume ec2types.Volume) model.VolumeSnapshot {
	snapshot := model.VolumeSnapshot{
		VolumeID: aws.ToString(volume.VolumeId),
		SizeGiB:  aws.ToInt32(volume.Size),
		State:    model.VolumeState(volume.State),
		Tags:     tagMap(volume.Tags),
	}
	for _, attachment := range volume.Attachments {
		snapshot.AttachedTo = aws.ToString(attachment.InstanceId)
		switch attachment.State {
		case ec2types.VolumeAttachmentStateAttaching:
			snapshot.State = model.VolumeStateAttaching
		case ec2types.VolumeAttachmentStateDetaching:
			snapshot.State = model.VolumeStateDetaching
		}
	}
	return snapshot
}

func tagMap(tags []ec2types.Tag) map[string]string {
	m := make(map[string]string, len(tags))
	for _, tag := range tags {
		m[aws.ToString(tag.Key)] = aws.ToString(tag.Value)
	}
	return m
}

func awsTags(tags map[string]string) []ec2types.Tag {
	out := make([]ec2types.Tag, 0, len(tags))
	for key, value := range tags {
		out = append(out, ec2types.Tag{Key: aws.String(key), Value: aws.String(value)})
	}
	return out
}
