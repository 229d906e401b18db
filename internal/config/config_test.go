package config

import "testing"

func validBase() Config {
	return Config{
		App:   AppConfig{Env: "local", Port: 8080},
		DB:    DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "crm", SSLMode: ""},
		Redis: RedisConfig{Host: "localhost", Port: 6379},
		Auth:  AuthConfig{JWTSecret: "secret"},
		Vox: VoxConfig{
			AccountName:     "acme",
			ApplicationName: "call",
			UserName:        "agent1",
			UserPassword:    "pw",
		},
	}
}

func TestValidate_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidate_ProductionRequiresSSLMode(t *testing.T) {
	c := validBase()
	c.App.Env = "production"
	c.Auth.JWTIssuer = "crm"
	c.Auth.JWTAudience = "softphone"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for production without DB_SSLMODE")
	}
}

func TestValidate_LocalDefaultsSSLMode(t *testing.T) {
	c := validBase()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
}

func TestValidate_RequiresSomeVoxCredential(t *testing.T) {
	c := validBase()
	c.Vox.UserPassword = ""
	c.Vox.OneTimeToken = ""
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error without password or token")
	}

	c.Vox.OneTimeToken = "tok"
	if err := c.Validate(); err != nil {
		t.Fatalf("token alone should satisfy credentials, got %v", err)
	}
}

func TestSDKUserName_FullyQualified(t *testing.T) {
	v := VoxConfig{AccountName: "acme", ApplicationName: "call", UserName: "agent1"}
	want := "agent1@call.acme.voximplant.com"
	if got := v.SDKUserName(); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
