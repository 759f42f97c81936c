package authn

import (
	"context"
	"testing"
)

func TestRandToken_LengthAndUniqueness(t *testing.T) {
	t.Parallel()
	a, err := randToken(16)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := randToken(16)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a == b {
		t.Fatalf("expected distinct tokens, got %q twice", a)
	}
	if a == "" || b == "" {
		t.Fatalf("expected non-empty tokens")
	}
}

func TestPKCEChallenge_DeterministicForSameVerifier(t *testing.T) {
	t.Parallel()
	v := "a-fixed-verifier-value"
	c1 := pkceChallenge(v)
	c2 := pkceChallenge(v)
	if c1 != c2 {
		t.Fatalf("expected deterministic challenge, got %q and %q", c1, c2)
	}
	if c1 == v {
		t.Fatalf("challenge should not equal the raw verifier")
	}
}

func TestWithClaimsAndCurrentClaims(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	if _, ok := CurrentClaims(ctx); ok {
		t.Fatalf("expected no claims on a bare context")
	}

	want := &Claims{Subject: "sub-1", Email: "a@example.com"}
	ctx = WithClaims(ctx, want)
	got, ok := CurrentClaims(ctx)
	if !ok {
		t.Fatalf("expected claims to be present")
	}
	if got.Subject != want.Subject || got.Email != want.Email {
		t.Fatalf("unexpected claims: %+v", got)
	}
}

func TestCurrentClaims_NilClaimsTreatedAsAbsent(t *testing.T) {
	t.Parallel()
	ctx := WithClaims(context.Background(), nil)
	if _, ok := CurrentClaims(ctx); ok {
		t.Fatalf("expected nil claims to report absent")
	}
}
