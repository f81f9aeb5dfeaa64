package util

import (
	"os"
	"testing"
)

func TestConfigConstants(t *testing.T) {
	if Name != "loxodon" {
		t.Errorf("Expected Name 'loxodon', got '%s'", Name)
	}

	if ConfigFileName != "config.yaml" {
		t.Errorf("Expected ConfigFileName 'config.yaml', got '%s'", ConfigFileName)
	}
}

func TestReadConfWithYaml(t *testing.T) {
	yamlContent := `
conf:
  host: 127.0.0.1
  httpPort: 9999
  sslDomain: example.com
  dbFile: test.db
  closed: true
`
	err := os.WriteFile("config.yaml", []byte(yamlContent), 0644)
	if err != nil {
		t.Fatalf("Failed to create test config: %v", err)
	}
	defer os.Remove("config.yaml")

	config, err := ReadConf()
	if err != nil {
		t.Fatalf("ReadConf failed: %v", err)
	}

	if config.Conf.Host != "127.0.0.1" {
		t.Errorf("Expected Host '127.0.0.1', got '%s'", config.Conf.Host)
	}

	if config.Conf.HttpPort != 9999 {
		t.Errorf("Expected HttpPort 9999, got %d", config.Conf.HttpPort)
	}

	if config.Conf.SslDomain != "example.com" {
		t.Errorf("Expected SslDomain 'example.com', got '%s'", config.Conf.SslDomain)
	}

	if config.Conf.DbFile != "test.db" {
		t.Errorf("Expected DbFile 'test.db', got '%s'", config.Conf.DbFile)
	}

	if !config.Conf.Closed {
		t.Error("Expected Closed to be true")
	}
}

func TestReadConfWithEnvOverrides(t *testing.T) {
	yamlContent := `
conf:
  host: 127.0.0.1
  httpPort: 9999
  sslDomain: example.com
  dbFile: test.db
  closed: false
`
	err := os.WriteFile("config.yaml", []byte(yamlContent), 0644)
	if err != nil {
		t.Fatalf("Failed to create test config: %v", err)
	}
	defer os.Remove("config.yaml")

	os.Setenv("LOXODON_HOST", "192.168.1.1")
	os.Setenv("LOXODON_HTTPPORT", "8080")
	os.Setenv("LOXODON_SSLDOMAIN", "test.example.com")
	os.Setenv("LOXODON_DBFILE", "other.db")
	os.Setenv("LOXODON_CLOSED", "true")

	defer func() {
		os.Unsetenv("LOXODON_HOST")
		os.Unsetenv("LOXODON_HTTPPORT")
		os.Unsetenv("LOXODON_SSLDOMAIN")
		os.Unsetenv("LOXODON_DBFILE")
		os.Unsetenv("LOXODON_CLOSED")
	}()

	config, err := ReadConf()
	if err != nil {
		t.Fatalf("ReadConf failed: %v", err)
	}

	// Environment variables override YAML values
	if config.Conf.Host != "192.168.1.1" {
		t.Errorf("Expected Host '192.168.1.1' from env, got '%s'", config.Conf.Host)
	}

	if config.Conf.HttpPort != 8080 {
		t.Errorf("Expected HttpPort 8080 from env, got %d", config.Conf.HttpPort)
	}

	if config.Conf.SslDomain != "test.example.com" {
		t.Errorf("Expected SslDomain 'test.example.com' from env, got '%s'", config.Conf.SslDomain)
	}

	if config.Conf.DbFile != "other.db" {
		t.Errorf("Expected DbFile 'other.db' from env, got '%s'", config.Conf.DbFile)
	}

	if !config.Conf.Closed {
		t.Error("Expected Closed to be true from env")
	}
}
