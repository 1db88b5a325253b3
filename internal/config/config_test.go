package config

import "testing"

func validConfig() *Config {
	c := Default()
	c.Session.Secret = "server-secret"
	return c
}

func TestValidateAcceptsDefaultConfigWithSecretSet(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}
}

func TestValidateRejectsMissingSessionSecret(t *testing.T) {
	c := validConfig()
	c.Session.Secret = ""

	err := c.Validate()
	if err == nil {
		t.Fatal("Validate() = nil, want an error for an empty session secret")
	}
	cfgErr, ok := err.(*ConfigError)
	if !ok {
		t.Fatalf("Validate() error type = %T, want *ConfigError", err)
	}
	if cfgErr.Field != "session.secret" {
		t.Fatalf("ConfigError.Field = %q, want %q", cfgErr.Field, "session.secret")
	}
}

func TestValidateRejectsMissingCookieName(t *testing.T) {
	c := validConfig()
	c.Session.CookieName = ""

	err := c.Validate()
	if err == nil {
		t.Fatal("Validate() = nil, want an error for an empty cookie name")
	}
	cfgErr, ok := err.(*ConfigError)
	if !ok {
		t.Fatalf("Validate() error type = %T, want *ConfigError", err)
	}
	if cfgErr.Field != "session.cookie_name" {
		t.Fatalf("ConfigError.Field = %q, want %q", cfgErr.Field, "session.cookie_name")
	}
}

func TestValidateRejectsInvalidPort(t *testing.T) {
	c := validConfig()
	c.Server.Port = 0

	if err := c.Validate(); err == nil {
		t.Fatal("Validate() = nil, want an error for an invalid port")
	}
}
