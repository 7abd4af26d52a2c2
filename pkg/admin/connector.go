package admin

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/aws_msk_iam_v2"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/segmentio/kafka-go/sasl/scram"
	log "github.com/sirupsen/logrus"
)

const defaultConnTimeout = 10 * time.Second

// SASLMechanism is the name of a SASL mechanism that will be used for client authentication.
type SASLMechanism string

const (
	SASLMechanismAWSMSKIAM   SASLMechanism = "aws-msk-iam"
	SASLMechanismPlain       SASLMechanism = "plain"
	SASLMechanismScramSHA256 SASLMechanism = "scram-sha-256"
	SASLMechanismScramSHA512 SASLMechanism = "scram-sha-512"
)

// ConnectorConfig contains the configuration used to contruct a connector.
type ConnectorConfig struct {
	BrokerAddr  string
	ConnTimeout time.Duration
	TLS         TLSConfig
	SASL        SASLConfig
}

// TLSConfig stores the TLS-related configuration for a connection.
type TLSConfig struct {
	Enabled    bool
	CertPath   string
	KeyPath    string
	CACertPath string
	ServerName string
	SkipVerify bool
}

// SASLConfig stores the SASL-related configuration for a connection.
type SASLConfig struct {
	Enabled   bool
	Mechanism SASLMechanism
	Username  string
	Password  string

	// SecretsManagerARN, if set, names an AWS Secrets Manager secret holding a JSON object
	// with "username" and "password" keys. It overrides Username and Password.
	SecretsManagerARN string
}

// Connector is a wrapper around the low-level, kafka-go dialer and client.
type Connector struct {
	Config      ConnectorConfig
	Dialer      *kafka.Dialer
	KafkaClient *kafka.Client
}

type secretGetter interface {
	GetSecretValue(
		ctx context.Context,
		params *secretsmanager.GetSecretValueInput,
		optFns ...func(*secretsmanager.Options),
	) (*secretsmanager.GetSecretValueOutput, error)
}

// NewConnector contructs a new Connector instance given the argument config. AWS
// credentials are only loaded if the config needs them.
func NewConnector(ctx context.Context, config ConnectorConfig) (*Connector, error) {
	var awsConfig *aws.Config

	loadAWSConfig := func() (aws.Config, error) {
		if awsConfig == nil {
			cfg, err := awsconfig.LoadDefaultConfig(ctx)
			if err != nil {
				return aws.Config{}, fmt.Errorf("Error loading AWS config: %w", err)
			}
			awsConfig = &cfg
		}
		return *awsConfig, nil
	}

	if config.SASL.Enabled && config.SASL.SecretsManagerARN != "" {
		cfg, err := loadAWSConfig()
		if err != nil {
			return nil, err
		}
		config.SASL, err = resolveSASLSecret(
			ctx,
			secretsmanager.NewFromConfig(cfg),
			config.SASL,
		)
		if err != nil {
			return nil, err
		}
	}

	var msk sasl.Mechanism
	if config.SASL.Enabled && config.SASL.Mechanism == SASLMechanismAWSMSKIAM {
		cfg, err := loadAWSConfig()
		if err != nil {
			return nil, err
		}
		msk = aws_msk_iam_v2.NewMechanism(cfg)
	}

	return newConnector(config, msk)
}

func newConnector(config ConnectorConfig, msk sasl.Mechanism) (*Connector, error) {
	connector := &Connector{
		Config: config,
	}

	connTimeout := config.ConnTimeout
	if connTimeout == 0 {
		connTimeout = defaultConnTimeout
	}

	mechanismClient, err := saslMechanism(config.SASL, msk)
	if err != nil {
		return nil, err
	}

	tlsConfig, err := tlsClientConfig(config.TLS)
	if err != nil {
		return nil, err
	}

	connector.Dialer = &kafka.Dialer{
		SASLMechanism: mechanismClient,
		Timeout:       connTimeout,
		TLS:           tlsConfig,
	}

	log.Debugf("Connecting to cluster on address %s with TLS enabled=%v, SASL enabled=%v",
		config.BrokerAddr,
		config.TLS.Enabled,
		config.SASL.Enabled,
	)
	connector.KafkaClient = &kafka.Client{
		Addr:    kafka.TCP(config.BrokerAddr),
		Timeout: connTimeout,
		Transport: &kafka.Transport{
			Dial:        connector.Dialer.DialFunc,
			DialTimeout: connTimeout,
			SASL:        mechanismClient,
			TLS:         tlsConfig,
			MetadataTTL: 10 * time.Minute,
		},
	}

	return connector, nil
}

func saslMechanism(config SASLConfig, msk sasl.Mechanism) (sasl.Mechanism, error) {
	if !config.Enabled {
		return nil, nil
	}

	switch config.Mechanism {
	case SASLMechanismAWSMSKIAM:
		if msk == nil {
			return nil, errors.New("AWS MSK IAM mechanism requires AWS credentials")
		}
		return msk, nil
	case SASLMechanismPlain:
		return plain.Mechanism{
			Username: config.Username,
			Password: config.Password,
		}, nil
	case SASLMechanismScramSHA256:
		return scram.Mechanism(scram.SHA256, config.Username, config.Password)
	case SASLMechanismScramSHA512:
		return scram.Mechanism(scram.SHA512, config.Username, config.Password)
	default:
		return nil, fmt.Errorf("Unrecognized SASL mechanism: %s", config.Mechanism)
	}
}

func tlsClientConfig(config TLSConfig) (*tls.Config, error) {
	if !config.Enabled {
		return nil, nil
	}

	var certs []tls.Certificate
	var caCertPool *x509.CertPool

	if config.CertPath != "" && config.KeyPath != "" {
		log.Debugf(
			"Loading key pair from %s and %s",
			config.CertPath,
			config.KeyPath,
		)
		cert, err := tls.LoadX509KeyPair(config.CertPath, config.KeyPath)
		if err != nil {
			return nil, err
		}
		certs = append(certs, cert)
	}

	if config.CACertPath != "" {
		log.Debugf("Adding CA certs from %s", config.CACertPath)
		caCertPool = x509.NewCertPool()
		caCertContents, err := ioutil.ReadFile(config.CACertPath)
		if err != nil {
			return nil, err
		}
		if ok := caCertPool.AppendCertsFromPEM(caCertContents); !ok {
			return nil, fmt.Errorf(
				"Could not append CA certs from %s",
				config.CACertPath,
			)
		}
	}

	return &tls.Config{
		Certificates:       certs,
		RootCAs:            caCertPool,
		InsecureSkipVerify: config.SkipVerify,
		ServerName:         config.ServerName,
	}, nil
}

type saslSecret struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func resolveSASLSecret(
	ctx context.Context,
	getter secretGetter,
	config SASLConfig,
) (SASLConfig, error) {
	log.Debugf("Getting SASL credentials from secret %s", config.SecretsManagerARN)

	output, err := getter.GetSecretValue(
		ctx,
		&secretsmanager.GetSecretValueInput{
			SecretId: aws.String(config.SecretsManagerARN),
		},
	)
	if err != nil {
		return config, fmt.Errorf(
			"Error getting secret %s: %w",
			config.SecretsManagerARN,
			err,
		)
	}

	secret := saslSecret{}
	if err := json.Unmarshal([]byte(aws.ToString(output.SecretString)), &secret); err != nil {
		return config, fmt.Errorf(
			"Secret %s is not a JSON object with username and password: %w",
			config.SecretsManagerARN,
			err,
		)
	}
	if secret.Username == "" || secret.Password == "" {
		return config, fmt.Errorf(
			"Secret %s is missing a username or password",
			config.SecretsManagerARN,
		)
	}

	config.Username = secret.Username
	config.Password = secret.Password
	return config, nil
}

// SASLNameToMechanism converts the argument SASL mechanism name string to a valid instance of
// the SASLMechanism enum.
func SASLNameToMechanism(name string) (SASLMechanism, error) {
	normalizedName := strings.ReplaceAll(strings.ToLower(name), "_", "-")
	mechanism := SASLMechanism(normalizedName)

	switch mechanism {
	case SASLMechanismAWSMSKIAM,
		SASLMechanismPlain,
		SASLMechanismScramSHA256,
		SASLMechanismScramSHA512:
		return mechanism, nil
	default:
		return mechanism, fmt.Errorf(
			"SASL mechanism '%s' is not valid; choices are AWS-MSK-IAM, PLAIN, SCRAM-SHA-256, and SCRAM-SHA-512",
			mechanism,
		)
	}
}
