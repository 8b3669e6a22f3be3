package awsgateway

import (
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/sagemaker"
)

type service struct {
	ec2Client       *ec2.Client
	sagemakerClient *sagemaker.Client
	zone            string
	studioDomainID  string
}
