package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testClusterConfig() ClusterConfig {
	return ClusterConfig{
		Meta: ClusterMeta{
			Name:        "test-cluster",
			Region:      "test-region",
			Environment: "test-environment",
			Description: "test-description",
		},
		Spec: ClusterSpec{
			BootstrapAddrs: []string{"broker-addr"},
			ZKAddrs:        []string{"zk-addr"},
			Topology: TopologyConfig{
				Source: TopologySourceFile,
				Path:   "topology.json",
			},
		},
	}
}

func TestClusterValidate(t *testing.T) {
	type testCase struct {
		description string
		update      func(c *ClusterConfig)
		expError    bool
	}

	testCases := []testCase{
		{
			description: "all good",
			update:      func(c *ClusterConfig) {},
			expError:    false,
		},
		{
			description: "missing meta fields",
			update: func(c *ClusterConfig) {
				c.Meta.Name = ""
				c.Meta.Region = ""
			},
			expError: true,
		},
		{
			description: "shell mode without zk addresses",
			update: func(c *ClusterConfig) {
				c.Spec.ZKAddrs = nil
			},
			expError: true,
		},
		{
			description: "broker mode without zk addresses",
			update: func(c *ClusterConfig) {
				c.Spec.AdminMode = AdminModeBroker
				c.Spec.ZKAddrs = nil
			},
			expError: false,
		},
		{
			description: "broker mode without bootstrap addresses",
			update: func(c *ClusterConfig) {
				c.Spec.AdminMode = AdminModeBroker
				c.Spec.BootstrapAddrs = nil
			},
			expError: true,
		},
		{
			description: "bad admin mode",
			update: func(c *ClusterConfig) {
				c.Spec.AdminMode = "ssh"
			},
			expError: true,
		},
		{
			description: "negative max replicas",
			update: func(c *ClusterConfig) {
				c.Spec.MaxReplicas = -1
			},
			expError: true,
		},
		{
			description: "bad reassign timeout",
			update: func(c *ClusterConfig) {
				c.Spec.ReassignTimeout = "10xxx"
			},
			expError: true,
		},
		{
			description: "cert without key",
			update: func(c *ClusterConfig) {
				c.Spec.TLS.CertPath = "cert.pem"
			},
			expError: true,
		},
		{
			description: "plain SASL without credentials",
			update: func(c *ClusterConfig) {
				c.Spec.AdminMode = AdminModeBroker
				c.Spec.SASL = SASLConfig{Enabled: true, Mechanism: "plain"}
			},
			expError: true,
		},
		{
			description: "IAM SASL without credentials",
			update: func(c *ClusterConfig) {
				c.Spec.AdminMode = AdminModeBroker
				c.Spec.SASL = SASLConfig{Enabled: true, Mechanism: "AWS_MSK_IAM"}
			},
			expError: false,
		},
		{
			description: "SASL in zk mode",
			update: func(c *ClusterConfig) {
				c.Spec.AdminMode = AdminModeZK
				c.Spec.SASL = SASLConfig{Enabled: true, Mechanism: "AWS_MSK_IAM"}
			},
			expError: true,
		},
		{
			description: "bad SASL mechanism",
			update: func(c *ClusterConfig) {
				c.Spec.AdminMode = AdminModeBroker
				c.Spec.SASL = SASLConfig{Enabled: true, Mechanism: "kerberos"}
			},
			expError: true,
		},
		{
			description: "missing topology source",
			update: func(c *ClusterConfig) {
				c.Spec.Topology = TopologyConfig{}
			},
			expError: true,
		},
		{
			description: "file source without path",
			update: func(c *ClusterConfig) {
				c.Spec.Topology.Path = ""
			},
			expError: true,
		},
		{
			description: "url source",
			update: func(c *ClusterConfig) {
				c.Spec.Topology = TopologyConfig{
					Source:  TopologySourceURL,
					URL:     "http://manager/topology",
					Timeout: "5s",
				}
			},
			expError: false,
		},
		{
			description: "url source with bad timeout",
			update: func(c *ClusterConfig) {
				c.Spec.Topology = TopologyConfig{
					Source:  TopologySourceURL,
					URL:     "http://manager/topology",
					Timeout: "5 seconds",
				}
			},
			expError: true,
		},
		{
			description: "rack source in shell mode",
			update: func(c *ClusterConfig) {
				c.Spec.Topology = TopologyConfig{Source: TopologySourceRack}
			},
			expError: true,
		},
		{
			description: "ec2 source with three dimensions",
			update: func(c *ClusterConfig) {
				c.Spec.Topology = TopologyConfig{
					Source:     TopologySourceEC2,
					Dimensions: []string{"zone", "partition", "host"},
				}
			},
			expError: true,
		},
		{
			description: "repeated dimension",
			update: func(c *ClusterConfig) {
				c.Spec.Topology.Dimensions = []string{"zone", "zone"}
			},
			expError: true,
		},
		{
			description: "dimension field count mismatch",
			update: func(c *ClusterConfig) {
				c.Spec.Topology.DimensionFields = []string{"updateDomain"}
			},
			expError: true,
		},
	}

	for _, testCase := range testCases {
		clusterConfig := testClusterConfig()
		testCase.update(&clusterConfig)

		err := clusterConfig.Validate()
		if testCase.expError {
			assert.Error(t, err, testCase.description)
		} else {
			assert.NoError(t, err, testCase.description)
		}
	}
}

func TestClusterGetters(t *testing.T) {
	clusterConfig := testClusterConfig()

	assert.Equal(t, AdminModeShell, clusterConfig.GetAdminMode())
	assert.Equal(t, 3, clusterConfig.GetMaxReplicas())
	assert.Equal(t, "/tmp/_to_move.json", clusterConfig.GetPlanPath())
	assert.Equal(
		t,
		[]string{"updateDomain", "faultDomain"},
		clusterConfig.Spec.Topology.GetDimensions(),
	)

	clusterConfig.RootDir = "/etc/topicspread"
	clusterConfig.Spec.PlanPath = "plan.json"
	assert.Equal(t, "/etc/topicspread/plan.json", clusterConfig.GetPlanPath())
	clusterConfig.Spec.PlanPath = "/var/plan.json"
	assert.Equal(t, "/var/plan.json", clusterConfig.GetPlanPath())
}
