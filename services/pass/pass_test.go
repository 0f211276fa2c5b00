package pass

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"
)

var passNumberPattern = regexp.MustCompile(`^VMS-[0-9A-Z]+-[0-9A-F]{6}$`)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestGeneratePassNumberFormat(t *testing.T) {
	c := NewCodec("test-secret")

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		n, err := c.GeneratePassNumber()
		if err != nil {
			t.Fatalf("GeneratePassNumber: %v", err)
		}
		if !passNumberPattern.MatchString(n) {
			t.Fatalf("pass number %q does not match expected format", n)
		}
		if seen[n] {
			t.Fatalf("duplicate pass number %q in 50 generations", n)
		}
		seen[n] = true
	}
}

func TestTokenRoundTrip(t *testing.T) {
	issued := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	c := NewCodecWithClock("test-secret", fixedClock(issued))

	token, issuedAt, err := c.IssueToken("visit-123", "VMS-ABC-DEF123")
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if !issuedAt.Equal(issued) {
		t.Errorf("issuedAt = %v, want %v", issuedAt, issued)
	}

	visitID, passNumber, err := c.VerifyToken(token)
	if err != nil {
		t.Fatalf("VerifyToken: %v", err)
	}
	if visitID != "visit-123" {
		t.Errorf("visitID = %q, want %q", visitID, "visit-123")
	}
	if passNumber != "VMS-ABC-DEF123" {
		t.Errorf("passNumber = %q, want %q", passNumber, "VMS-ABC-DEF123")
	}
}

func TestTokenDeterministic(t *testing.T) {
	clock := fixedClock(time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC))
	a := NewCodecWithClock("test-secret", clock)
	b := NewCodecWithClock("test-secret", clock)

	tokenA, _, err := a.IssueToken("visit-123", "VMS-ABC-DEF123")
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	tokenB, _, err := b.IssueToken("visit-123", "VMS-ABC-DEF123")
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	if tokenA != tokenB {
		t.Errorf("same inputs produced different tokens:\n%s\n%s", tokenA, tokenB)
	}
}

func TestVerifyRejectsTampering(t *testing.T) {
	issued := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	c := NewCodecWithClock("test-secret", fixedClock(issued))

	token, _, err := c.IssueToken("visit-123", "VMS-ABC-DEF123")
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	// Swap the visit id inside the signed payload and re-serialize.
	var fields map[string]any
	if err := json.Unmarshal([]byte(token), &fields); err != nil {
		t.Fatalf("unmarshal token: %v", err)
	}
	fields["visitId"] = "visit-456"
	tampered, err := json.Marshal(fields)
	if err != nil {
		t.Fatalf("marshal tampered token: %v", err)
	}

	if _, _, err := c.VerifyToken(string(tampered)); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("tampered token: err = %v, want ErrInvalidSignature", err)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	issued := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	issuer := NewCodecWithClock("secret-a", fixedClock(issued))
	verifier := NewCodecWithClock("secret-b", fixedClock(issued))

	token, _, err := issuer.IssueToken("visit-123", "VMS-ABC-DEF123")
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	if _, _, err := verifier.VerifyToken(token); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("wrong secret: err = %v, want ErrInvalidSignature", err)
	}
}

func TestVerifyExpiry(t *testing.T) {
	issued := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	c := NewCodecWithClock("test-secret", fixedClock(issued))

	token, _, err := c.IssueToken("visit-123", "VMS-ABC-DEF123")
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	cases := []struct {
		name    string
		at      time.Time
		wantErr error
	}{
		{"just inside window", issued.Add(MaxTokenAge - time.Minute), nil},
		{"just past window", issued.Add(MaxTokenAge + time.Minute), ErrExpired},
		{"long past window", issued.Add(30 * 24 * time.Hour), ErrExpired},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			late := NewCodecWithClock("test-secret", fixedClock(tc.at))
			_, _, err := late.VerifyToken(token)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("err = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestVerifyMalformed(t *testing.T) {
	c := NewCodec("test-secret")

	cases := []struct {
		name string
		raw  string
	}{
		{"not json", "VMS-ABC-DEF123"},
		{"empty object", "{}"},
		{"missing signature", `{"visitId":"v","passNumber":"p","timestamp":1}`},
		{"empty string", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, _, err := c.VerifyToken(tc.raw); !errors.Is(err, ErrMalformed) {
				t.Errorf("err = %v, want ErrMalformed", err)
			}
		})
	}
}

func TestQRDataURL(t *testing.T) {
	c := NewCodec("test-secret")

	url, err := c.QRDataURL(`{"visitId":"v","passNumber":"p"}`)
	if err != nil {
		t.Fatalf("QRDataURL: %v", err)
	}
	if !strings.HasPrefix(url, "data:image/png;base64,") {
		t.Errorf("QRDataURL = %.40q..., want data:image/png;base64 prefix", url)
	}
}
