package aws

import (
	"context"
	"errors"
	"fmt"
	"sort"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

// ErrNoCoordinator is returned when no running instance carries the tag.
var ErrNoCoordinator = errors.New("no running coordinator instance found")

// TagDiscoverer finds coordinator instances by EC2 tag.
type TagDiscoverer struct {
	api      ec2.DescribeInstancesAPIClient
	tagKey   string
	tagValue string
}

// NewTagDiscoverer creates a discoverer using the default credential chain.
func NewTagDiscoverer(ctx context.Context, region, tagKey, tagValue string) (*TagDiscoverer, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewTagDiscovererWithClient(ec2.NewFromConfig(cfg), tagKey, tagValue), nil
}

// NewTagDiscovererWithClient wraps an existing EC2 client.
func NewTagDiscovererWithClient(api ec2.DescribeInstancesAPIClient, tagKey, tagValue string) *TagDiscoverer {
	return &TagDiscoverer{api: api, tagKey: tagKey, tagValue: tagValue}
}

// Discover returns private addresses of running tagged instances, newest
// launch first.
func (d *TagDiscoverer) Discover(ctx context.Context) ([]string, error) {
	input := &ec2.DescribeInstancesInput{
		Filters: []types.Filter{
			{Name: awssdk.String("tag:" + d.tagKey), Values: []string{d.tagValue}},
			{Name: awssdk.String("instance-state-name"), Values: []string{"running"}},
		},
	}

	var instances []types.Instance
	paginator := ec2.NewDescribeInstancesPaginator(d.api, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe instances tagged %s=%s: %w", d.tagKey, d.tagValue, err)
		}
		for _, r := range page.Reservations {
			instances = append(instances, r.Instances...)
		}
	}

	sort.SliceStable(instances, func(i, j int) bool {
		return awssdk.ToTime(instances[i].LaunchTime).After(awssdk.ToTime(instances[j].LaunchTime))
	})

	var addrs []string
	for _, inst := range instances {
		if ip := awssdk.ToString(inst.PrivateIpAddress); ip != "" {
			addrs = append(addrs, ip)
		}
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("%w (tag %s=%s)", ErrNoCoordinator, d.tagKey, d.tagValue)
	}
	return addrs, nil
}
