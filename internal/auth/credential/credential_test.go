package credential

import (
	"errors"
	"strings"
	"testing"
	"time"

	"vidtube/internal/identity"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.AccessSecret = []byte("access-secret-0123456789-0123456789-abc")
	cfg.RefreshSecret = []byte("refresh-secret-0123456789-0123456789-ab")
	return cfg
}

func testUser() identity.User {
	return identity.User{
		ID:       "01J0000000000000000000USER",
		Username: "alice",
		Email:    "alice@example.com",
		FullName: "Alice Example",
	}
}

func TestIssueAndVerifyAccess(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	iss, err := NewIssuer(cfg)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}
	ver, err := NewVerifier(cfg)
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}

	now := time.Now().UTC()
	u := testUser()

	signed, exp, err := iss.IssueAccess(u, now)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if got, want := exp, now.Add(cfg.AccessTTL); !got.Equal(want) {
		t.Fatalf("expiry = %v, want %v", got, want)
	}

	claims, err := ver.Verify(signed, PurposeAccess, now)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Subject != u.ID {
		t.Errorf("subject = %q, want %q", claims.Subject, u.ID)
	}
	if claims.Username != u.Username || claims.Email != u.Email || claims.FullName != u.FullName {
		t.Errorf("identity claims = %q/%q/%q", claims.Username, claims.Email, claims.FullName)
	}
	if claims.Purpose != PurposeAccess {
		t.Errorf("purpose = %q, want access", claims.Purpose)
	}
}

func TestRefreshCredentialCarriesBareSubject(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	iss, _ := NewIssuer(cfg)
	ver, _ := NewVerifier(cfg)
	now := time.Now().UTC()

	signed, _, err := iss.IssueRefresh(testUser(), now)
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}
	claims, err := ver.Verify(signed, PurposeRefresh, now)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Username != "" || claims.Email != "" || claims.FullName != "" {
		t.Errorf("refresh claims should not embed identity fields, got %+v", claims)
	}
	if claims.Subject != testUser().ID {
		t.Errorf("subject = %q", claims.Subject)
	}
}

func TestPurposeIsolation(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	iss, _ := NewIssuer(cfg)
	ver, _ := NewVerifier(cfg)
	now := time.Now().UTC()

	access, _, err := iss.IssueAccess(testUser(), now)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	refresh, _, err := iss.IssueRefresh(testUser(), now)
	if err != nil {
		t.Fatalf("IssueRefresh: %v", err)
	}

	if _, err := ver.Verify(access, PurposeRefresh, now); !errors.Is(err, ErrCredentialInvalid) {
		t.Errorf("access-as-refresh: err = %v, want ErrCredentialInvalid", err)
	}
	if _, err := ver.Verify(refresh, PurposeAccess, now); !errors.Is(err, ErrCredentialInvalid) {
		t.Errorf("refresh-as-access: err = %v, want ErrCredentialInvalid", err)
	}
}

func TestExpiry(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	iss, _ := NewIssuer(cfg)
	ver, _ := NewVerifier(cfg)
	now := time.Now().UTC()

	signed, _, err := iss.IssueAccess(testUser(), now)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}

	later := now.Add(cfg.AccessTTL + cfg.ClockSkew + time.Second)
	if _, err := ver.Verify(signed, PurposeAccess, later); !errors.Is(err, ErrCredentialExpired) {
		t.Errorf("err = %v, want ErrCredentialExpired", err)
	}

	// Within leeway the credential is still accepted.
	within := now.Add(cfg.AccessTTL + cfg.ClockSkew - time.Second)
	if _, err := ver.Verify(signed, PurposeAccess, within); err != nil {
		t.Errorf("within leeway: %v", err)
	}
}

func TestWrongSecretRejected(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	iss, _ := NewIssuer(cfg)
	now := time.Now().UTC()

	signed, _, err := iss.IssueAccess(testUser(), now)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}

	other := testConfig()
	other.AccessSecret = []byte("a-completely-different-access-secret-xyz")
	ver, _ := NewVerifier(other)

	if _, err := ver.Verify(signed, PurposeAccess, now); !errors.Is(err, ErrCredentialInvalid) {
		t.Errorf("err = %v, want ErrCredentialInvalid", err)
	}
}

func TestTamperedCredentialRejected(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	iss, _ := NewIssuer(cfg)
	ver, _ := NewVerifier(cfg)
	now := time.Now().UTC()

	signed, _, err := iss.IssueAccess(testUser(), now)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}

	parts := strings.Split(signed, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected credential shape")
	}
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]
	if _, err := ver.Verify(tampered, PurposeAccess, now); !errors.Is(err, ErrCredentialInvalid) {
		t.Errorf("err = %v, want ErrCredentialInvalid", err)
	}

	if _, err := ver.Verify("", PurposeAccess, now); !errors.Is(err, ErrCredentialInvalid) {
		t.Errorf("empty: err = %v, want ErrCredentialInvalid", err)
	}
	if _, err := ver.Verify("not-a-credential", PurposeAccess, now); !errors.Is(err, ErrCredentialInvalid) {
		t.Errorf("garbage: err = %v, want ErrCredentialInvalid", err)
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing secrets", func(c *Config) { c.AccessSecret = nil; c.RefreshSecret = nil }},
		{"short access secret", func(c *Config) { c.AccessSecret = []byte("short") }},
		{"identical secrets", func(c *Config) { c.RefreshSecret = c.AccessSecret }},
		{"empty issuer", func(c *Config) { c.Issuer = "" }},
		{"zero access ttl", func(c *Config) { c.AccessTTL = 0 }},
		{"access ttl above refresh ttl", func(c *Config) { c.AccessTTL = c.RefreshTTL + time.Hour }},
		{"negative skew", func(c *Config) { c.ClockSkew = -time.Second }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := testConfig()
			tc.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrConfig) {
				t.Errorf("err = %v, want ErrConfig", err)
			}
		})
	}

	if err := testConfig().Validate(); err != nil {
		t.Errorf("valid config: %v", err)
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("VIDTUBE_ACCESS_TOKEN_SECRET", "env-access-secret-0123456789-0123456789")
	t.Setenv("VIDTUBE_REFRESH_TOKEN_SECRET", "env-refresh-secret-0123456789-012345678")
	t.Setenv("VIDTUBE_AUTH_ISSUER", "vidtube-test")
	t.Setenv("VIDTUBE_AUTH_ACCESS_TTL", "5m")
	t.Setenv("VIDTUBE_AUTH_REFRESH_TTL", "72h")
	t.Setenv("VIDTUBE_AUTH_CLOCK_SKEW", "10s")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("LoadConfigFromEnv: %v", err)
	}
	if cfg.Issuer != "vidtube-test" {
		t.Errorf("issuer = %q", cfg.Issuer)
	}
	if cfg.AccessTTL != 5*time.Minute || cfg.RefreshTTL != 72*time.Hour || cfg.ClockSkew != 10*time.Second {
		t.Errorf("durations = %v/%v/%v", cfg.AccessTTL, cfg.RefreshTTL, cfg.ClockSkew)
	}
}

func TestLoadConfigFromEnvMissingSecrets(t *testing.T) {
	t.Setenv("VIDTUBE_ACCESS_TOKEN_SECRET", "")
	t.Setenv("VIDTUBE_REFRESH_TOKEN_SECRET", "")
	if _, err := LoadConfigFromEnv(); !errors.Is(err, ErrConfig) {
		t.Fatalf("err = %v, want ErrConfig", err)
	}
}

func TestLoadConfigFromEnvBadDuration(t *testing.T) {
	t.Setenv("VIDTUBE_ACCESS_TOKEN_SECRET", "env-access-secret-0123456789-0123456789")
	t.Setenv("VIDTUBE_REFRESH_TOKEN_SECRET", "env-refresh-secret-0123456789-012345678")
	t.Setenv("VIDTUBE_AUTH_ACCESS_TTL", "soon")
	if _, err := LoadConfigFromEnv(); !errors.Is(err, ErrConfig) {
		t.Fatalf("err = %v, want ErrConfig", err)
	}
}
