package topology

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	defaultHostGroup  = "workerNode"
	defaultIDField    = "vmId"
	defaultGroupField = "availabilitySetId"
	defaultURLTimeout = 30 * time.Second
)

// Source is an interface for things that can resolve the topology entries of the
// brokers in a cluster.
type Source interface {
	Brokers(ctx context.Context) ([]BrokerCoordinates, error)
}

// ManifestConfig controls how a topology manifest is decoded. Blank fields are
// replaced by the defaults for the cluster management API, i.e. a "workerNode" host
// group whose entries carry "vmId", "updateDomain", "faultDomain" and
// "availabilitySetId".
//
// Field values that are numbers, or strings holding a finite number, are compared by
// numeric value: 1, 1.0, "1" and "01" all become the coordinate "1". Other strings are
// used as-is after trimming.
type ManifestConfig struct {
	HostGroup  string
	IDField    string
	GroupField string

	// DimensionFields is the name of the field holding the coordinate for each
	// dimension, in dimension order.
	DimensionFields []string
}

func (c ManifestConfig) withDefaults() ManifestConfig {
	if c.HostGroup == "" {
		c.HostGroup = defaultHostGroup
	}
	if c.IDField == "" {
		c.IDField = defaultIDField
	}
	if c.GroupField == "" {
		c.GroupField = defaultGroupField
	}
	if len(c.DimensionFields) == 0 {
		c.DimensionFields = DefaultDimensions
	}
	return c
}

type manifest struct {
	HostGroups map[string][]map[string]interface{} `json:"hostGroups"`
}

// ParseManifest decodes the topology entries in the argument manifest JSON. Numeric
// and string coordinates are both accepted; see ManifestConfig for how they're
// normalized.
func ParseManifest(contents []byte, config ManifestConfig) ([]BrokerCoordinates, error) {
	config = config.withDefaults()

	decoder := json.NewDecoder(bytes.NewReader(contents))
	decoder.UseNumber()

	var m manifest
	if err := decoder.Decode(&m); err != nil {
		return nil, fmt.Errorf("Error decoding topology manifest: %w", err)
	}

	nodes, ok := m.HostGroups[config.HostGroup]
	if !ok {
		return nil, configErrorf("host group %s not found in manifest", config.HostGroup)
	}

	brokers := []BrokerCoordinates{}

	for n, node := range nodes {
		idValue, err := fieldValue(node, config.IDField)
		if err != nil {
			return nil, configErrorf("node %d: %s", n, err.Error())
		}
		id, err := strconv.Atoi(idValue)
		if err != nil {
			return nil, configErrorf(
				"node %d: %s value %q is not an integer",
				n,
				config.IDField,
				idValue,
			)
		}

		group, err := fieldValue(node, config.GroupField)
		if err != nil {
			return nil, configErrorf("broker %d: %s", id, err.Error())
		}

		coordinates := []Coordinate{}
		for _, field := range config.DimensionFields {
			value, err := fieldValue(node, field)
			if err != nil {
				return nil, configErrorf("broker %d: %s", id, err.Error())
			}
			coordinates = append(coordinates, Coordinate(value))
		}

		brokers = append(
			brokers,
			BrokerCoordinates{
				ID:          id,
				Group:       group,
				Coordinates: coordinates,
			},
		)
	}

	return brokers, nil
}

func fieldValue(node map[string]interface{}, field string) (string, error) {
	raw, ok := node[field]
	if !ok || raw == nil {
		return "", fmt.Errorf("missing field %s", field)
	}

	switch value := raw.(type) {
	case json.Number:
		return canonicalNumber(value.String()), nil
	case string:
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			return "", fmt.Errorf("field %s is blank", field)
		}
		return canonicalNumber(trimmed), nil
	case bool:
		return strconv.FormatBool(value), nil
	default:
		return "", fmt.Errorf("field %s has unsupported type %T", field, raw)
	}
}

// canonicalNumber returns the shortest decimal form of value if it's a finite number,
// and value unchanged otherwise. Integers are parsed exactly so that large IDs don't
// lose precision.
func canonicalNumber(value string) string {
	if i, err := strconv.ParseInt(value, 10, 64); err == nil {
		return strconv.FormatInt(i, 10)
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return value
	}
	if f == 0 {
		// Drop the sign of -0
		return "0"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// FileSource reads a topology manifest from a local file.
type FileSource struct {
	Path   string
	Config ManifestConfig
}

var _ Source = (*FileSource)(nil)

// Brokers returns the topology entries in the file.
func (s *FileSource) Brokers(ctx context.Context) ([]BrokerCoordinates, error) {
	contents, err := ioutil.ReadFile(s.Path)
	if err != nil {
		return nil, err
	}
	log.Debugf("Read %d bytes of topology from %s", len(contents), s.Path)
	return ParseManifest(contents, s.Config)
}

// URLSource fetches a topology manifest from a management API endpoint.
type URLSource struct {
	URL     string
	Config  ManifestConfig
	Timeout time.Duration

	// Client is used for the request; if nil, a client with Timeout is created.
	Client *http.Client
}

var _ Source = (*URLSource)(nil)

// Brokers fetches the manifest and returns the topology entries in it.
func (s *URLSource) Brokers(ctx context.Context) ([]BrokerCoordinates, error) {
	client := s.Client
	if client == nil {
		timeout := s.Timeout
		if timeout == 0 {
			timeout = defaultURLTimeout
		}
		client = &http.Client{Timeout: timeout}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	log.Debugf("Fetching topology from %s", s.URL)
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("Error fetching topology from %s: %w", s.URL, err)
	}
	defer resp.Body.Close()

	contents, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf(
			"Unexpected status fetching topology from %s: %s",
			s.URL,
			resp.Status,
		)
	}

	return ParseManifest(contents, s.Config)
}
