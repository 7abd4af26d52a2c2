package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"

	"github.com/ghodss/yaml"
	"github.com/segmentio/topicspread/pkg/util"
	log "github.com/sirupsen/logrus"
)

// LoadClusterFile loads a ClusterConfig from a path to a YAML file. Relative paths in the
// config are resolved against the directory that contains the file.
//
// If expandEnv is set, $VAR and ${VAR} references are replaced with values from the
// environment. Unset variables expand to empty strings and are logged.
func LoadClusterFile(path string, expandEnv bool) (ClusterConfig, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return ClusterConfig{}, err
	}

	contents, err := ioutil.ReadFile(absPath)
	if err != nil {
		return ClusterConfig{}, fmt.Errorf("Error reading cluster config: %w", err)
	}

	if expandEnv {
		contents = expandEnvVars(contents)
	}

	config, err := LoadClusterBytes(contents)
	if err != nil {
		return ClusterConfig{}, fmt.Errorf("Error parsing cluster config %s: %w", path, err)
	}

	config.RootDir = filepath.Dir(absPath)
	return config, nil
}

// LoadClusterBytes loads a ClusterConfig from YAML bytes. Fields that aren't part of the
// config are rejected. The admin mode and topology source are case-insensitive.
func LoadClusterBytes(contents []byte) (ClusterConfig, error) {
	config := ClusterConfig{}
	if err := unmarshalYAMLStrict(contents, &config); err != nil {
		return ClusterConfig{}, err
	}

	config.Spec.AdminMode = AdminMode(
		strings.ToLower(strings.TrimSpace(string(config.Spec.AdminMode))),
	)
	config.Spec.Topology.Source = TopologySourceType(
		strings.ToLower(strings.TrimSpace(string(config.Spec.Topology.Source))),
	)
	return config, nil
}

func expandEnvVars(contents []byte) []byte {
	unset := map[string]struct{}{}

	expanded := os.Expand(string(contents), func(key string) string {
		value, ok := os.LookupEnv(key)
		if !ok {
			unset[key] = struct{}{}
		}
		return value
	})

	for _, key := range util.SortedStrings(unset) {
		log.Warnf("Environment variable %s in cluster config is not set", key)
	}
	return []byte(expanded)
}

func unmarshalYAMLStrict(y []byte, o interface{}) error {
	jsonBytes, err := yaml.YAMLToJSON(y)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(jsonBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(o)
}
