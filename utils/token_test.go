package utils

import (
	"testing"
)

func TestJwtRoundTrip(t *testing.T) {
	token, err := JwtGenerate(42, "gerente")
	if err != nil {
		t.Fatal(err)
	}

	parsed, err := JwtValidate(token)
	if err != nil {
		t.Fatal(err)
	}
	if !parsed.Valid {
		t.Fatal("freshly issued token must validate")
	}
	claims, ok := parsed.Claims.(*JwtCustomClaim)
	if !ok {
		t.Fatalf("claims type = %T", parsed.Claims)
	}
	if claims.ID != 42 || claims.Role != "gerente" {
		t.Fatalf("claims = %+v", claims)
	}
}

func TestJwtValidate_RejectsTamperedToken(t *testing.T) {
	token, err := JwtGenerate(1, "admin")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := JwtValidate(token + "x"); err == nil {
		t.Fatal("tampered signature accepted")
	}
}

func TestJwtValidate_RejectsExpiredToken(t *testing.T) {
	t.Setenv("TOKEN_HOUR_LIFESPAN", "-1")
	token, err := JwtGenerate(1, "admin")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := JwtValidate(token); err == nil {
		t.Fatal("expired token accepted")
	}
}
