package config

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/segmentio/topicspread/pkg/admin"
	"github.com/segmentio/topicspread/pkg/assignment"
	"github.com/segmentio/topicspread/pkg/plan"
)

// AdminMode is a string type for storing the way that a cluster is administered.
type AdminMode string

const (
	// AdminModeShell runs the kafka-topics.sh and kafka-reassign-partitions.sh tools.
	AdminModeShell AdminMode = "shell"

	// AdminModeZK reads and writes the cluster state in zookeeper directly.
	AdminModeZK AdminMode = "zk"

	// AdminModeBroker uses the broker admin APIs.
	AdminModeBroker AdminMode = "broker"
)

var allAdminModes = []AdminMode{AdminModeShell, AdminModeZK, AdminModeBroker}

// ClusterConfig stores information about a cluster whose topics are being spread across
// failure domains. These configs should reflect the reality of what's been set up
// externally.
type ClusterConfig struct {
	Meta ClusterMeta `json:"meta"`
	Spec ClusterSpec `json:"spec"`

	// RootDir is the directory containing the config file; relative paths in the config
	// are resolved against it.
	RootDir string `json:"-"`
}

// ClusterMeta contains (mostly immutable) metadata about the cluster. Inspired
// by the meta fields in Kubernetes objects.
type ClusterMeta struct {
	Name        string `json:"name"`
	Region      string `json:"region"`
	Environment string `json:"environment"`
	Description string `json:"description"`
}

// ClusterSpec contains the details necessary to communicate with a kafka cluster and
// to resolve its topology.
type ClusterSpec struct {
	// BootstrapAddrs is a list of one or more broker bootstrap addresses. These can use IPs
	// or DNS names.
	BootstrapAddrs []string `json:"bootstrapAddrs"`

	// ZKAddrs is a list of one or more zookeeper addresses. These can use IPs
	// or DNS names.
	ZKAddrs []string `json:"zkAddrs"`

	// ZKPrefix is the prefix under which all zk nodes for the cluster are stored. If blank,
	// these are assumed to be under the zk root.
	ZKPrefix string `json:"zkPrefix"`

	// ZKLockPath indicates where locks are stored in zookeeper. If blank, then
	// no locking will be used when plans are executed.
	ZKLockPath string `json:"zkLockPath"`

	// ClusterID is the value of the [prefix]/cluster/id node in zookeeper. If set, it's used
	// to validate that the cluster we're communicating with is the right one. If blank,
	// this check isn't done.
	ClusterID string `json:"clusterID"`

	// AdminMode is one of "shell" (the default), "zk", or "broker".
	AdminMode AdminMode `json:"adminMode"`

	// AdminToolsDir is the directory containing the kafka shell tools. If blank, the
	// tools are looked up in the PATH.
	AdminToolsDir string `json:"adminToolsDir"`

	// MaxReplicas is the largest supported replication factor; defaults to 3.
	MaxReplicas int `json:"maxReplicas"`

	// PlanPath is where reassignment plans are written; defaults to /tmp/_to_move.json.
	PlanPath string `json:"planPath"`

	// ReassignTimeout is the timeout for reassignment requests made through the broker
	// admin API, e.g. "30s".
	ReassignTimeout string `json:"reassignTimeout"`

	TLS  TLSConfig  `json:"tls"`
	SASL SASLConfig `json:"sasl"`

	Topology TopologyConfig `json:"topology"`
}

// TLSConfig stores the TLS-related configuration for the broker admin client.
type TLSConfig struct {
	Enabled    bool   `json:"enabled"`
	CertPath   string `json:"certPath"`
	KeyPath    string `json:"keyPath"`
	CACertPath string `json:"caCertPath"`
	ServerName string `json:"serverName"`
	SkipVerify bool   `json:"skipVerify"`
}

// SASLConfig stores the SASL-related configuration for the broker admin client.
type SASLConfig struct {
	Enabled   bool   `json:"enabled"`
	Mechanism string `json:"mechanism"`
	Username  string `json:"username"`
	Password  string `json:"password"`

	// SecretsManagerARN is the ARN of an AWS Secrets Manager secret holding the username
	// and password.
	SecretsManagerARN string `json:"secretsManagerArn"`
}

// Validate evaluates whether the cluster config is valid.
func (c ClusterConfig) Validate() error {
	var err error

	if c.Meta.Name == "" {
		err = multierror.Append(err, errors.New("Name must be set"))
	}
	if c.Meta.Region == "" {
		err = multierror.Append(err, errors.New("Region must be set"))
	}
	if c.Meta.Environment == "" {
		err = multierror.Append(err, errors.New("Environment must be set"))
	}

	switch c.GetAdminMode() {
	case AdminModeShell, AdminModeZK:
		if len(c.Spec.ZKAddrs) == 0 {
			err = multierror.Append(
				err,
				fmt.Errorf(
					"At least one zookeeper address must be set for admin mode %s",
					c.GetAdminMode(),
				),
			)
		}
	case AdminModeBroker:
		if len(c.Spec.BootstrapAddrs) == 0 {
			err = multierror.Append(
				err,
				errors.New("At least one bootstrap broker address must be set for admin mode broker"),
			)
		}
	default:
		err = multierror.Append(
			err,
			fmt.Errorf(
				"AdminMode must be in %+v, got %s",
				allAdminModes,
				c.Spec.AdminMode,
			),
		)
	}

	if c.Spec.MaxReplicas < 0 {
		err = multierror.Append(err, errors.New("MaxReplicas cannot be negative"))
	}

	if _, parseErr := c.GetReassignTimeout(); parseErr != nil {
		err = multierror.Append(
			err,
			fmt.Errorf("Error parsing reassign timeout: %+v", parseErr),
		)
	}

	if (c.Spec.TLS.CertPath == "") != (c.Spec.TLS.KeyPath == "") {
		err = multierror.Append(
			err,
			errors.New("TLS certPath and keyPath must be set together"),
		)
	}

	if c.Spec.SASL.Enabled {
		mechanism, mechanismErr := admin.SASLNameToMechanism(c.Spec.SASL.Mechanism)
		if mechanismErr != nil {
			err = multierror.Append(err, mechanismErr)
		} else if mechanism != admin.SASLMechanismAWSMSKIAM &&
			c.Spec.SASL.SecretsManagerARN == "" &&
			(c.Spec.SASL.Username == "" || c.Spec.SASL.Password == "") {
			err = multierror.Append(
				err,
				fmt.Errorf(
					"SASL mechanism %s requires a username and password or a secretsManagerArn",
					mechanism,
				),
			)
		}
		if c.GetAdminMode() != AdminModeBroker {
			err = multierror.Append(
				err,
				errors.New("SASL is only supported in admin mode broker"),
			)
		}
	}

	if topologyErr := c.Spec.Topology.validate(c.GetAdminMode()); topologyErr != nil {
		err = multierror.Append(err, topologyErr)
	}

	return err
}

// GetAdminMode returns the admin mode, defaulting to shell.
func (c ClusterConfig) GetAdminMode() AdminMode {
	if c.Spec.AdminMode == "" {
		return AdminModeShell
	}
	return c.Spec.AdminMode
}

// GetMaxReplicas returns the largest supported replication factor.
func (c ClusterConfig) GetMaxReplicas() int {
	if c.Spec.MaxReplicas == 0 {
		return assignment.DefaultMaxReplicas
	}
	return c.Spec.MaxReplicas
}

// GetPlanPath returns the path that reassignment plans are written to.
func (c ClusterConfig) GetPlanPath() string {
	if c.Spec.PlanPath == "" {
		return plan.DefaultPath
	}
	return c.absPath(c.Spec.PlanPath)
}

// GetReassignTimeout returns the parsed reassign timeout, or 0 if it isn't set.
func (c ClusterConfig) GetReassignTimeout() (time.Duration, error) {
	if c.Spec.ReassignTimeout == "" {
		return 0, nil
	}
	return time.ParseDuration(c.Spec.ReassignTimeout)
}

// NewAdminClient returns a new admin client using the parameters in the current cluster
// config. The planPath argument, if set, overrides the plan path in the config.
func (c ClusterConfig) NewAdminClient(
	ctx context.Context,
	planPath string,
	readOnly bool,
) (admin.Client, error) {
	switch c.GetAdminMode() {
	case AdminModeShell:
		if planPath == "" {
			planPath = c.GetPlanPath()
		}
		binDir := c.Spec.AdminToolsDir
		if binDir != "" {
			binDir = c.absPath(binDir)
		}
		return admin.NewShellAdminClient(
			admin.ShellAdminClientConfig{
				BinDir:   binDir,
				ZKAddrs:  c.Spec.ZKAddrs,
				PlanPath: planPath,
				ReadOnly: readOnly,
			},
		)
	case AdminModeZK:
		return admin.NewZKAdminClient(
			ctx,
			admin.ZKAdminClientConfig{
				ZKAddrs:           c.Spec.ZKAddrs,
				ZKPrefix:          c.Spec.ZKPrefix,
				LockPath:          c.Spec.ZKLockPath,
				ExpectedClusterID: c.Spec.ClusterID,
				ReadOnly:          readOnly,
			},
		)
	case AdminModeBroker:
		reassignTimeout, err := c.GetReassignTimeout()
		if err != nil {
			return nil, err
		}

		var saslMechanism admin.SASLMechanism
		if c.Spec.SASL.Enabled {
			saslMechanism, err = admin.SASLNameToMechanism(c.Spec.SASL.Mechanism)
			if err != nil {
				return nil, err
			}
		}

		return admin.NewBrokerAdminClient(
			ctx,
			admin.BrokerAdminClientConfig{
				ConnectorConfig: admin.ConnectorConfig{
					BrokerAddr: c.Spec.BootstrapAddrs[0],
					TLS: admin.TLSConfig{
						Enabled:    c.Spec.TLS.Enabled,
						CertPath:   c.absPath(c.Spec.TLS.CertPath),
						KeyPath:    c.absPath(c.Spec.TLS.KeyPath),
						CACertPath: c.absPath(c.Spec.TLS.CACertPath),
						ServerName: c.Spec.TLS.ServerName,
						SkipVerify: c.Spec.TLS.SkipVerify,
					},
					SASL: admin.SASLConfig{
						Enabled:           c.Spec.SASL.Enabled,
						Mechanism:         saslMechanism,
						Username:          c.Spec.SASL.Username,
						Password:          c.Spec.SASL.Password,
						SecretsManagerARN: c.Spec.SASL.SecretsManagerARN,
					},
				},
				ReassignTimeout: reassignTimeout,
				ReadOnly:        readOnly,
			},
		)
	default:
		return nil, fmt.Errorf("Unrecognized admin mode: %s", c.Spec.AdminMode)
	}
}

func (c ClusterConfig) absPath(path string) string {
	if path == "" || filepath.IsAbs(path) || c.RootDir == "" {
		return path
	}
	return filepath.Join(c.RootDir, path)
}
