package util

import (
	"os"
)

// TestZKAddr returns a zookeeper address for integration testing purposes.
func TestZKAddr() string {
	// Inside docker-compose (i.e., in CI), we need to use a different
	// address
	testZkAddr, ok := os.LookupEnv("TOPICSPREAD_TEST_ZK_ADDR")
	if !ok {
		return "localhost:2181"
	}

	return testZkAddr
}

// TestKafkaAddr returns a kafka bootstrap address for integration testing purposes.
func TestKafkaAddr() string {
	testKafkaAddr, ok := os.LookupEnv("TOPICSPREAD_TEST_KAFKA_ADDR")
	if !ok {
		return "localhost:9092"
	}

	return testKafkaAddr
}

// CanTestZK returns whether a zookeeper instance is available for integration tests.
func CanTestZK() bool {
	value, ok := os.LookupEnv("TOPICSPREAD_TEST_ZK")
	return ok && value != ""
}

// CanTestBrokerAdmin returns whether we can test the broker-only admin client.
func CanTestBrokerAdmin() bool {
	value, ok := os.LookupEnv("TOPICSPREAD_TEST_BROKER_ADMIN")
	return ok && value != ""
}
