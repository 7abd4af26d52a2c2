package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/segmentio/topicspread/pkg/admin"
	"github.com/segmentio/topicspread/pkg/topology"
	log "github.com/sirupsen/logrus"
)

// TopologySourceType is a string type for storing where a cluster's topology comes from.
type TopologySourceType string

const (
	// TopologySourceFile reads a topology manifest from a local file.
	TopologySourceFile TopologySourceType = "file"

	// TopologySourceURL fetches a topology manifest from a management API.
	TopologySourceURL TopologySourceType = "url"

	// TopologySourceRack parses the broker.rack setting of each broker.
	TopologySourceRack TopologySourceType = "rack"

	// TopologySourceEC2 uses the placement of each broker's EC2 instance.
	TopologySourceEC2 TopologySourceType = "ec2"
)

var allTopologySources = []TopologySourceType{
	TopologySourceFile,
	TopologySourceURL,
	TopologySourceRack,
	TopologySourceEC2,
}

// TopologyConfig describes how the failure domains of the brokers in a cluster are
// resolved.
type TopologyConfig struct {
	Source TopologySourceType `json:"source"`

	// Dimensions are the names of the failure dimensions, in order; defaults to
	// updateDomain and faultDomain.
	Dimensions []string `json:"dimensions"`

	// Path is the manifest path for the file source.
	Path string `json:"path"`

	// URL is the manifest URL for the url source, and Timeout is the request timeout,
	// e.g. "30s".
	URL     string `json:"url"`
	Timeout string `json:"timeout"`

	// HostGroup, IDField, GroupField, and DimensionFields override the manifest field
	// names for the file and url sources. DimensionFields defaults to Dimensions.
	HostGroup       string   `json:"hostGroup"`
	IDField         string   `json:"idField"`
	GroupField      string   `json:"groupField"`
	DimensionFields []string `json:"dimensionFields"`

	// RackSeparator splits broker racks for the rack source; defaults to "/".
	RackSeparator string `json:"rackSeparator"`

	// BrokerIDTag and Region configure the ec2 source.
	BrokerIDTag string `json:"brokerIdTag"`
	Region      string `json:"region"`
}

// GetDimensions returns the names of the failure dimensions.
func (t TopologyConfig) GetDimensions() []string {
	if len(t.Dimensions) == 0 {
		return topology.DefaultDimensions
	}
	return t.Dimensions
}

// GetTimeout returns the parsed url source timeout, or 0 if it isn't set.
func (t TopologyConfig) GetTimeout() (time.Duration, error) {
	if t.Timeout == "" {
		return 0, nil
	}
	return time.ParseDuration(t.Timeout)
}

func (t TopologyConfig) validate(adminMode AdminMode) error {
	var err error

	switch t.Source {
	case TopologySourceFile:
		if t.Path == "" {
			err = multierror.Append(err, errors.New("Topology path must be set for source file"))
		}
	case TopologySourceURL:
		if t.URL == "" {
			err = multierror.Append(err, errors.New("Topology url must be set for source url"))
		}
		if _, parseErr := t.GetTimeout(); parseErr != nil {
			err = multierror.Append(
				err,
				fmt.Errorf("Error parsing topology timeout: %+v", parseErr),
			)
		}
	case TopologySourceRack:
		if adminMode == AdminModeShell {
			err = multierror.Append(
				err,
				errors.New("Topology source rack requires admin mode zk or broker"),
			)
		}
	case TopologySourceEC2:
		if len(t.GetDimensions()) != 2 {
			err = multierror.Append(
				err,
				errors.New("Topology source ec2 requires exactly two dimensions"),
			)
		}
	default:
		err = multierror.Append(
			err,
			fmt.Errorf(
				"Topology source must be in %+v, got %q",
				allTopologySources,
				t.Source,
			),
		)
	}

	seen := map[string]struct{}{}
	for _, dimension := range t.GetDimensions() {
		if strings.TrimSpace(dimension) == "" {
			err = multierror.Append(err, errors.New("Topology dimensions cannot be blank"))
			continue
		}
		if _, ok := seen[dimension]; ok {
			err = multierror.Append(
				err,
				fmt.Errorf("Topology dimension %s is repeated", dimension),
			)
		}
		seen[dimension] = struct{}{}
	}

	if len(t.DimensionFields) > 0 && len(t.DimensionFields) != len(t.GetDimensions()) {
		err = multierror.Append(
			err,
			fmt.Errorf(
				"Topology has %d dimensions but %d dimension fields",
				len(t.GetDimensions()),
				len(t.DimensionFields),
			),
		)
	}

	return err
}

// NewTopologySource returns the topology source described by the current cluster config.
// The admin client is only used by the rack source.
func (c ClusterConfig) NewTopologySource(adminClient admin.Client) (topology.Source, error) {
	topologyConfig := c.Spec.Topology

	manifestConfig := topology.ManifestConfig{
		HostGroup:       topologyConfig.HostGroup,
		IDField:         topologyConfig.IDField,
		GroupField:      topologyConfig.GroupField,
		DimensionFields: topologyConfig.DimensionFields,
	}
	if len(manifestConfig.DimensionFields) == 0 {
		manifestConfig.DimensionFields = topologyConfig.GetDimensions()
	}

	switch topologyConfig.Source {
	case TopologySourceFile:
		return &topology.FileSource{
			Path:   c.absPath(topologyConfig.Path),
			Config: manifestConfig,
		}, nil
	case TopologySourceURL:
		timeout, err := topologyConfig.GetTimeout()
		if err != nil {
			return nil, err
		}
		return &topology.URLSource{
			URL:     topologyConfig.URL,
			Config:  manifestConfig,
			Timeout: timeout,
		}, nil
	case TopologySourceRack:
		if adminClient == nil {
			return nil, errors.New("Topology source rack requires an admin client")
		}
		return &topology.RackSource{
			Client:     adminClient,
			Separator:  topologyConfig.RackSeparator,
			Dimensions: len(topologyConfig.GetDimensions()),
		}, nil
	case TopologySourceEC2:
		region := topologyConfig.Region
		if region == "" {
			region = c.Meta.Region
		}
		return &topology.EC2Source{
			BrokerIDTag: topologyConfig.BrokerIDTag,
			Region:      region,
		}, nil
	default:
		return nil, fmt.Errorf("Unrecognized topology source: %q", topologyConfig.Source)
	}
}

// LoadTopology resolves the brokers from the configured source and validates them.
func (c ClusterConfig) LoadTopology(
	ctx context.Context,
	adminClient admin.Client,
) (*topology.Topology, error) {
	source, err := c.NewTopologySource(adminClient)
	if err != nil {
		return nil, err
	}

	brokers, err := source.Brokers(ctx)
	if err != nil {
		return nil, fmt.Errorf(
			"Error getting topology from source %s: %w",
			c.Spec.Topology.Source,
			err,
		)
	}
	log.Debugf("Got %d brokers from topology source %s", len(brokers), c.Spec.Topology.Source)

	return topology.NewTopology(c.Spec.Topology.GetDimensions(), brokers)
}
