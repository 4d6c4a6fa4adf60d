package config

import (
	"testing"
)

func TestResolveValue_AWSSM_NoCredentials(t *testing.T) {
	t.Setenv("AWS_ACCESS_KEY_ID", "")
	t.Setenv("AWS_SECRET_ACCESS_KEY", "")
	t.Setenv("AWS_PROFILE", "tabledoc-test-missing-profile")
	t.Setenv("AWS_EC2_METADATA_DISABLED", "true")

	if _, err := ResolveValue("${AWS_SM:nonexistent-secret}"); err == nil {
		t.Error("expected error when AWS credentials are not configured")
	}
}

func TestSecretField(t *testing.T) {
	secret := `{"dsn":"postgres://app@db/app","port":5432}`

	got, err := secretField("db", secret, "dsn")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "postgres://app@db/app" {
		t.Errorf("got %q", got)
	}

	if _, err := secretField("db", secret, "missing"); err == nil {
		t.Error("expected error for missing key")
	}
	if _, err := secretField("db", secret, "port"); err == nil {
		t.Error("expected error for non-string value")
	}
	if _, err := secretField("db", "plain", "dsn"); err == nil {
		t.Error("expected error for non-JSON secret")
	}
}
