package server

import (
	"net"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Port != 0 {
		t.Errorf("Port = %d, want 0", config.Port)
	}
	if !config.BindAddress4.Equal(net.IPv4zero) {
		t.Errorf("BindAddress4 = %v, want 0.0.0.0", config.BindAddress4)
	}
	if !config.BindAddress6.Equal(net.IPv6unspecified) {
		t.Errorf("BindAddress6 = %v, want ::", config.BindAddress6)
	}
	if config.MaxLineBytes != DefaultMaxLineBytes {
		t.Errorf("MaxLineBytes = %d, want %d", config.MaxLineBytes, DefaultMaxLineBytes)
	}
	if config.MaxBodyBytes <= 0 {
		t.Error("MaxBodyBytes should be positive")
	}
	if !config.LogRequests {
		t.Error("LogRequests should default to true")
	}
	if config.RequireIPv6 {
		t.Error("RequireIPv6 should default to false")
	}
}

func TestConfigChaining(t *testing.T) {
	logger := quietLogger()
	config := DefaultConfig().
		WithPort(8080).
		WithLogger(logger).
		WithReadTimeout(5 * time.Second).
		WithLogRequests(false)

	if config.Port != 8080 {
		t.Errorf("Port = %d, want 8080", config.Port)
	}
	if config.Logger != logger {
		t.Error("Logger not set")
	}
	if config.ReadTimeout != 5*time.Second {
		t.Errorf("ReadTimeout = %v, want 5s", config.ReadTimeout)
	}
	if config.LogRequests {
		t.Error("LogRequests should be false")
	}
}

func TestConfigClone(t *testing.T) {
	original := DefaultConfig().WithPort(9000)
	original.TrustedProxies = []string{"10.0.0.1"}
	clone := original.Clone()

	clone.Port = 1
	clone.BindAddress4[0] = 10
	clone.TrustedProxies[0] = "10.0.0.2"

	if original.Port != 9000 {
		t.Error("Clone should not share Port")
	}
	if !original.BindAddress4.Equal(net.IPv4zero) {
		t.Error("Clone should deep-copy BindAddress4")
	}
	if original.TrustedProxies[0] != "10.0.0.1" {
		t.Error("Clone should deep-copy TrustedProxies")
	}

	var nilConfig *Config
	if nilConfig.Clone() != nil {
		t.Error("nil Clone should return nil")
	}
}

func TestFillDefaults(t *testing.T) {
	config := &Config{Port: 1234}
	config.fillDefaults()

	if config.BindAddress4 == nil || config.BindAddress6 == nil {
		t.Error("bind addresses should be filled")
	}
	if config.Hostname4 != "127.0.0.1" || config.Hostname6 != "::1" {
		t.Errorf("hostnames = %q/%q", config.Hostname4, config.Hostname6)
	}
	if config.MaxLineBytes != DefaultMaxLineBytes {
		t.Errorf("MaxLineBytes = %d", config.MaxLineBytes)
	}
	if config.Logger == nil {
		t.Error("Logger should be filled")
	}
	if config.Port != 1234 {
		t.Error("fillDefaults must keep explicit values")
	}
}

func TestNewCopiesConfig(t *testing.T) {
	config := DefaultConfig().WithLogger(quietLogger())
	s := New(config)
	config.Port = 4242

	if s.Config().Port == 4242 {
		t.Error("New should copy the config")
	}
}
