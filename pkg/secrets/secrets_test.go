package secrets

import (
	"context"
	"errors"
	"testing"
)

// fakeSource is a scriptable secret source for chain tests.
type fakeSource struct {
	name   string
	values map[string]string
	err    error
	calls  int
}

func (s *fakeSource) Name() string { return s.name }

func (s *fakeSource) Get(ctx context.Context, key string) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	if v, ok := s.values[key]; ok && v != "" {
		return v, nil
	}
	return "", ErrNotFound
}

func TestResolver_FirstHitWins(t *testing.T) {
	managed := &fakeSource{name: "managed", values: map[string]string{"LLM_API_KEY": "from-managed"}}
	env := &fakeSource{name: "env", values: map[string]string{"LLM_API_KEY": "from-env"}}

	r := NewResolver(managed, env)

	v, err := r.Resolve(context.Background(), "LLM_API_KEY")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "from-managed" {
		t.Errorf("value = %q, want from-managed", v)
	}
	if env.calls != 0 {
		t.Errorf("env source should not be consulted, got %d calls", env.calls)
	}
}

func TestResolver_FallsThroughToEnv(t *testing.T) {
	managed := &fakeSource{name: "managed", values: map[string]string{}}
	env := &fakeSource{name: "env", values: map[string]string{"SIGNING_KEY": "s3cret"}}

	r := NewResolver(managed, env)

	v, err := r.Resolve(context.Background(), "SIGNING_KEY")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "s3cret" {
		t.Errorf("value = %q", v)
	}
}

func TestResolver_SourceFailureSkipped(t *testing.T) {
	broken := &fakeSource{name: "managed", err: errors.New("connection refused")}
	env := &fakeSource{name: "env", values: map[string]string{"SIGNING_KEY": "s3cret"}}

	r := NewResolver(broken, env)

	v, err := r.Resolve(context.Background(), "SIGNING_KEY")
	if err != nil {
		t.Fatalf("source failure should not be fatal: %v", err)
	}
	if v != "s3cret" {
		t.Errorf("value = %q", v)
	}
}

func TestResolver_CachesResolvedValues(t *testing.T) {
	src := &fakeSource{name: "env", values: map[string]string{"LLM_API_KEY": "v1"}}
	r := NewResolver(src)

	for i := 0; i < 3; i++ {
		if _, err := r.Resolve(context.Background(), "LLM_API_KEY"); err != nil {
			t.Fatal(err)
		}
	}
	if src.calls != 1 {
		t.Errorf("source consulted %d times, want 1", src.calls)
	}

	src.values["LLM_API_KEY"] = "v2"
	r.Invalidate("LLM_API_KEY")

	v, err := r.Resolve(context.Background(), "LLM_API_KEY")
	if err != nil {
		t.Fatal(err)
	}
	if v != "v2" {
		t.Errorf("value after invalidate = %q, want v2", v)
	}
	if src.calls != 2 {
		t.Errorf("source consulted %d times, want 2", src.calls)
	}
}

func TestResolver_NotFound(t *testing.T) {
	r := NewResolver(&fakeSource{name: "env", values: map[string]string{}})

	_, err := r.Resolve(context.Background(), "ABSENT")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestResolver_RequireCollectsAllMissing(t *testing.T) {
	r := NewResolver(&fakeSource{name: "env", values: map[string]string{"LLM_API_KEY": "key"}})

	_, err := r.Require(context.Background(), KeyLLMAPIKey, KeySigningKey)
	if err == nil {
		t.Fatal("expected error")
	}

	var fatal *FatalConfigError
	if !errors.As(err, &fatal) {
		t.Fatalf("expected FatalConfigError, got %T", err)
	}
	if len(fatal.Missing) != 1 || fatal.Missing[0] != KeySigningKey {
		t.Errorf("missing = %v, want [SIGNING_KEY]", fatal.Missing)
	}
	if !IsFatalConfigError(err) {
		t.Error("IsFatalConfigError should be true")
	}
}

func TestResolver_RequireSuccess(t *testing.T) {
	r := NewResolver(&fakeSource{name: "env", values: map[string]string{
		KeyLLMAPIKey:  "llm-key",
		KeySigningKey: "sign-key",
	}})

	resolved, err := r.Require(context.Background(), KeyLLMAPIKey, KeySigningKey)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved[KeyLLMAPIKey] != "llm-key" || resolved[KeySigningKey] != "sign-key" {
		t.Errorf("resolved = %v", resolved)
	}
}

func TestEnvSource(t *testing.T) {
	t.Setenv("COMPASS_TEST_SECRET", "value")

	var src EnvSource
	v, err := src.Get(context.Background(), "COMPASS_TEST_SECRET")
	if err != nil {
		t.Fatal(err)
	}
	if v != "value" {
		t.Errorf("value = %q", v)
	}

	if _, err := src.Get(context.Background(), "COMPASS_TEST_SECRET_MISSING"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
