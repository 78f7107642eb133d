package password

import "testing"

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.Policy.MinLength != 8 {
		t.Fatalf("default min length: %d", cfg.Policy.MinLength)
	}
	if cfg.Params.MemoryKiB != 64*1024 {
		t.Fatalf("default memory: %d", cfg.Params.MemoryKiB)
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("VIDTUBE_PASSWORD_MIN_LEN", "12")
	t.Setenv("VIDTUBE_ARGON2_ITERATIONS", "4")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.Policy.MinLength != 12 {
		t.Fatalf("min length override: %d", cfg.Policy.MinLength)
	}
	if cfg.Params.Iterations != 4 {
		t.Fatalf("iterations override: %d", cfg.Params.Iterations)
	}
}

func TestFromEnv_Invalid(t *testing.T) {
	cases := map[string]string{
		"VIDTUBE_PASSWORD_MIN_LEN":  "zero",
		"VIDTUBE_ARGON2_MEMORY_KIB": "1",
		"VIDTUBE_ARGON2_KEY_LEN":    "4",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, val)
			if _, err := FromEnv(); err == nil {
				t.Fatalf("expected error for %s=%s", key, val)
			}
		})
	}
}

func TestFromEnv_MinGreaterThanMax(t *testing.T) {
	t.Setenv("VIDTUBE_PASSWORD_MIN_LEN", "64")
	t.Setenv("VIDTUBE_PASSWORD_MAX_LEN", "32")
	if _, err := FromEnv(); err == nil {
		t.Fatalf("expected error for min > max")
	}
}
