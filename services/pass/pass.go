package pass

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	qrcode "github.com/skip2/go-qrcode"
)

// PassPrefix is the human-visible prefix on every pass number.
const PassPrefix = "VMS"

// MaxTokenAge is how long an issued pass token stays verifiable. Expiry is
// enforced at verification time only; there is no background sweep.
const MaxTokenAge = 7 * 24 * time.Hour

const signatureLength = 16

var (
	ErrMalformed        = errors.New("pass: malformed token")
	ErrInvalidSignature = errors.New("pass: invalid token signature")
	ErrExpired          = errors.New("pass: token expired")
)

// payload is the canonical serialization the signature covers. Field order
// matters: the HMAC is computed over this exact JSON encoding.
type payload struct {
	VisitID    string `json:"visitId"`
	PassNumber string `json:"passNumber"`
	Timestamp  int64  `json:"timestamp"`
}

type signedPayload struct {
	payload
	Signature string `json:"signature"`
}

// Codec issues and verifies pass tokens bound to a visit. It holds no state
// beyond the server secret and never touches storage: verification is purely
// cryptographic, and the caller cross-checks the embedded pass number
// against the stored one.
type Codec struct {
	secret []byte
	now    func() time.Time
}

// NewCodec builds a codec around the server-held secret.
func NewCodec(secret string) *Codec {
	return &Codec{secret: []byte(secret), now: time.Now}
}

// NewCodecWithClock is NewCodec with an injected clock, for tests.
func NewCodecWithClock(secret string, now func() time.Time) *Codec {
	return &Codec{secret: []byte(secret), now: now}
}

// GeneratePassNumber returns PREFIX-<base36 ms timestamp>-<random hex>.
// Collisions are negligible by construction but not impossible; the store
// enforces uniqueness at write time and the caller retries with a fresh
// number on conflict.
func (c *Codec) GeneratePassNumber() (string, error) {
	ts := strings.ToUpper(strconv.FormatInt(c.now().UnixMilli(), 36))

	random := make([]byte, 3)
	if _, err := rand.Read(random); err != nil {
		return "", fmt.Errorf("generate pass number: %w", err)
	}

	return fmt.Sprintf("%s-%s-%s", PassPrefix, ts, strings.ToUpper(hex.EncodeToString(random))), nil
}

// IssueToken builds the signed token string for a visit/pass pair and
// returns it with the embedded issue timestamp. Deterministic given
// identical inputs, secret and clock.
func (c *Codec) IssueToken(visitID, passNumber string) (string, time.Time, error) {
	issuedAt := c.now()
	p := payload{
		VisitID:    visitID,
		PassNumber: passNumber,
		Timestamp:  issuedAt.UnixMilli(),
	}

	sig, err := c.sign(p)
	if err != nil {
		return "", time.Time{}, err
	}

	token, err := json.Marshal(signedPayload{payload: p, Signature: sig})
	if err != nil {
		return "", time.Time{}, fmt.Errorf("marshal token: %w", err)
	}

	return string(token), issuedAt, nil
}

// VerifyToken parses a token string, recomputes the signature over the
// embedded payload and checks the expiry window. On success it returns the
// embedded visit id and pass number.
func (c *Codec) VerifyToken(raw string) (visitID, passNumber string, err error) {
	var sp signedPayload
	if err := json.Unmarshal([]byte(raw), &sp); err != nil {
		return "", "", ErrMalformed
	}
	if sp.VisitID == "" || sp.PassNumber == "" || sp.Signature == "" {
		return "", "", ErrMalformed
	}

	expected, err := c.sign(sp.payload)
	if err != nil {
		return "", "", err
	}
	if !hmac.Equal([]byte(expected), []byte(sp.Signature)) {
		return "", "", ErrInvalidSignature
	}

	issuedAt := time.UnixMilli(sp.Timestamp)
	if c.now().Sub(issuedAt) > MaxTokenAge {
		return "", "", ErrExpired
	}

	return sp.VisitID, sp.PassNumber, nil
}

// QRDataURL renders the token as a QR PNG data URL suitable for embedding
// in the approval email and the printable pass document.
func (c *Codec) QRDataURL(token string) (string, error) {
	png, err := qrcode.Encode(token, qrcode.High, 300)
	if err != nil {
		return "", fmt.Errorf("encode qr: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}

func (c *Codec) sign(p payload) (string, error) {
	canonical, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	mac := hmac.New(sha256.New, c.secret)
	mac.Write(canonical)
	return hex.EncodeToString(mac.Sum(nil))[:signatureLength], nil
}
