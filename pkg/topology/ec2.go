package topology

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	log "github.com/sirupsen/logrus"
)

const defaultBrokerIDTag = "kafka-broker-id"

// EC2DescribeInstancesAPI is the subset of the EC2 client used by EC2Source.
type EC2DescribeInstancesAPI interface {
	DescribeInstances(
		ctx context.Context,
		params *ec2.DescribeInstancesInput,
		optFns ...func(*ec2.Options),
	) (*ec2.DescribeInstancesOutput, error)
}

// EC2Source resolves the topology from the running EC2 instances that carry a broker ID
// tag. The availability zone of each instance is its update domain, the partition number
// in its placement group is its fault domain, and the placement group name is its group.
type EC2Source struct {
	// BrokerIDTag is the tag holding the broker ID; defaults to "kafka-broker-id".
	BrokerIDTag string

	// Region overrides the region from the default AWS config.
	Region string

	// Client is used for the EC2 calls; if nil, one is created from the default AWS
	// config.
	Client EC2DescribeInstancesAPI
}

var _ Source = (*EC2Source)(nil)

// Brokers describes the tagged instances and converts them to topology entries.
func (s *EC2Source) Brokers(ctx context.Context) ([]BrokerCoordinates, error) {
	tag := s.BrokerIDTag
	if tag == "" {
		tag = defaultBrokerIDTag
	}

	client := s.Client
	if client == nil {
		var optFns []func(*awsconfig.LoadOptions) error
		if s.Region != "" {
			optFns = append(optFns, awsconfig.WithRegion(s.Region))
		}
		cfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
		if err != nil {
			return nil, fmt.Errorf("Error loading AWS config: %w", err)
		}
		client = ec2.NewFromConfig(cfg)
	}

	input := &ec2.DescribeInstancesInput{
		Filters: []types.Filter{
			{
				Name:   aws.String("tag-key"),
				Values: []string{tag},
			},
			{
				Name:   aws.String("instance-state-name"),
				Values: []string{"running"},
			},
		},
	}

	brokers := []BrokerCoordinates{}
	paginator := ec2.NewDescribeInstancesPaginator(client, input)

	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("Error describing EC2 instances: %w", err)
		}

		for _, reservation := range output.Reservations {
			for _, instance := range reservation.Instances {
				broker, err := instanceCoordinates(instance, tag)
				if err != nil {
					return nil, err
				}
				brokers = append(brokers, broker)
			}
		}
	}

	log.Debugf("Found %d broker instances with tag %s", len(brokers), tag)
	return brokers, nil
}

func instanceCoordinates(instance types.Instance, tag string) (BrokerCoordinates, error) {
	instanceID := aws.ToString(instance.InstanceId)

	var idStr string
	for _, instanceTag := range instance.Tags {
		if aws.ToString(instanceTag.Key) == tag {
			idStr = aws.ToString(instanceTag.Value)
			break
		}
	}

	id, err := strconv.Atoi(idStr)
	if err != nil {
		return BrokerCoordinates{}, configErrorf(
			"instance %s has a non-integer %s tag: %q",
			instanceID,
			tag,
			idStr,
		)
	}

	placement := instance.Placement
	if placement == nil ||
		aws.ToString(placement.AvailabilityZone) == "" ||
		aws.ToString(placement.GroupName) == "" ||
		placement.PartitionNumber == nil {
		return BrokerCoordinates{}, configErrorf(
			"instance %s (broker %d) is not in a partition placement group",
			instanceID,
			id,
		)
	}

	return BrokerCoordinates{
		ID:    id,
		Group: aws.ToString(placement.GroupName),
		Coordinates: []Coordinate{
			Coordinate(aws.ToString(placement.AvailabilityZone)),
			Coordinate(strconv.Itoa(int(aws.ToInt32(placement.PartitionNumber)))),
		},
	}, nil
}
