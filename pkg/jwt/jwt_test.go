package jwt

import (
	"errors"
	"strings"
	"testing"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"

	"conduzauto/backend/config"
)

const testSecret = "test-secret-key-for-unit-testing-2026"

func newTestManager() *Manager {
	return NewManager(&config.AuthConfig{
		JWTSecret: testSecret,
		TokenTTL:  72 * time.Hour,
		Issuer:    "conduzauto",
	})
}

func TestGenerateAndVerify(t *testing.T) {
	m := newTestManager()

	token, expiresAt, err := m.GenerateToken("subject-1")
	if err != nil {
		t.Fatalf("GenerateToken 失败: %v", err)
	}

	id, err := m.Verify(token)
	if err != nil {
		t.Fatalf("Verify 失败: %v", err)
	}

	if id.SubjectID != "subject-1" {
		t.Errorf("期望 SubjectID=subject-1，实际=%s", id.SubjectID)
	}
	if id.TokenID == "" {
		t.Error("TokenID 不应为空")
	}
	if !id.ExpiresAt.Equal(expiresAt.Truncate(time.Second)) {
		t.Errorf("期望 ExpiresAt=%v，实际=%v", expiresAt, id.ExpiresAt)
	}
}

func TestVerify_Missing(t *testing.T) {
	m := newTestManager()
	if _, err := m.Verify(""); !errors.Is(err, ErrTokenMissing) {
		t.Errorf("期望 ErrTokenMissing，实际: %v", err)
	}
}

func TestVerify_Malformed(t *testing.T) {
	m := newTestManager()
	if _, err := m.Verify("not-a-jwt"); !errors.Is(err, ErrTokenMalformed) {
		t.Errorf("期望 ErrTokenMalformed，实际: %v", err)
	}
}

func TestVerify_Expired(t *testing.T) {
	m := newTestManager()
	m.now = func() time.Time { return time.Now().Add(-100 * time.Hour) }

	token, _, err := m.GenerateToken("subject-1")
	if err != nil {
		t.Fatalf("GenerateToken 失败: %v", err)
	}

	m.now = time.Now
	if _, err := m.Verify(token); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("期望 ErrTokenExpired，实际: %v", err)
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	m := newTestManager()
	token, _, _ := m.GenerateToken("subject-1")

	other := NewManager(&config.AuthConfig{JWTSecret: "another-secret-key-0123456789", TokenTTL: time.Hour})
	if _, err := other.Verify(token); !errors.Is(err, ErrTokenSignature) {
		t.Errorf("期望 ErrTokenSignature，实际: %v", err)
	}
}

func TestVerify_TamperedPayload(t *testing.T) {
	m := newTestManager()
	token, _, _ := m.GenerateToken("subject-1")

	parts := strings.Split(token, ".")
	forged, _, _ := m.GenerateToken("subject-2")
	forgedParts := strings.Split(forged, ".")
	tampered := parts[0] + "." + forgedParts[1] + "." + parts[2]

	if _, err := m.Verify(tampered); !errors.Is(err, ErrTokenSignature) {
		t.Errorf("期望 ErrTokenSignature，实际: %v", err)
	}
}

func TestVerify_WrongAlgorithm(t *testing.T) {
	m := newTestManager()
	claims := jwtv5.RegisteredClaims{
		Subject:   "subject-1",
		ExpiresAt: jwtv5.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token, err := jwtv5.NewWithClaims(jwtv5.SigningMethodHS512, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("签名失败: %v", err)
	}

	if _, err := m.Verify(token); !errors.Is(err, ErrTokenSignature) {
		t.Errorf("期望 ErrTokenSignature，实际: %v", err)
	}
}

func TestVerify_MissingSubject(t *testing.T) {
	m := newTestManager()
	claims := jwtv5.RegisteredClaims{
		ExpiresAt: jwtv5.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token, _ := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims).SignedString([]byte(testSecret))

	if _, err := m.Verify(token); !errors.Is(err, ErrTokenMalformed) {
		t.Errorf("期望 ErrTokenMalformed，实际: %v", err)
	}
}

func TestVerify_MissingExpiry(t *testing.T) {
	m := newTestManager()
	claims := jwtv5.RegisteredClaims{Subject: "subject-1"}
	token, _ := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims).SignedString([]byte(testSecret))

	if _, err := m.Verify(token); !errors.Is(err, ErrTokenMalformed) {
		t.Errorf("期望 ErrTokenMalformed，实际: %v", err)
	}
}
