package billplz_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/url"
	"sort"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kadkita/kadkita/internal/billplz"
	"github.com/kadkita/kadkita/internal/billplz/domain"
	"github.com/kadkita/kadkita/internal/config"
)

func newVerifier(t *testing.T, key, endpoint string) *billplz.Verifier {
	t.Helper()
	return billplz.NewVerifier(billplz.VerifierParams{
		Config: config.Config{
			Billplz: config.BillplzConfig{
				APIKey:        "test-key",
				CollectionID:  "col_1",
				Endpoint:      endpoint,
				XSignatureKey: key,
			},
		},
		Log: zap.NewNop(),
	})
}

func signWith(key string, raw map[string]string) string {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		if strings.EqualFold(k, "x_signature") {
			continue
		}
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return strings.ToLower(keys[i]) < strings.ToLower(keys[j])
	})
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+raw[k])
	}
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(strings.Join(pairs, "|")))
	return hex.EncodeToString(mac.Sum(nil))
}

func callbackValues() url.Values {
	return url.Values{
		"id":          {"bill_abc"},
		"paid":        {"true"},
		"state":       {"paid"},
		"amount":      {"4410"},
		"paid_at":     {"2026-03-01 12:00:00 +0800"},
		"reference_1": {"1234567890"},
	}
}

func TestVerifyAcceptsSignedPayload(t *testing.T) {
	v := newVerifier(t, "secret", "https://www.billplz.com/api")

	values := callbackValues()
	payload := billplz.ParseForm(values)
	payload.XSignature = signWith("secret", payload.Raw)
	payload.Raw["x_signature"] = payload.XSignature

	if err := v.Verify(payload, ""); err != nil {
		t.Fatalf("expected valid signature, got %v", err)
	}
}

func TestVerifyAcceptsHeaderSignature(t *testing.T) {
	v := newVerifier(t, "secret", "https://www.billplz.com/api")

	payload := billplz.ParseForm(callbackValues())
	sig := signWith("secret", payload.Raw)

	if err := v.Verify(payload, sig); err != nil {
		t.Fatalf("expected header signature to be accepted, got %v", err)
	}
}

func TestVerifyHeaderRecoversMangledBodySignature(t *testing.T) {
	v := newVerifier(t, "secret", "https://www.billplz.com/api")

	payload := billplz.ParseForm(callbackValues())
	sig := signWith("secret", payload.Raw)

	// Body channel garbled in transit, header channel intact.
	payload.XSignature = sig[:len(sig)-4] + "0000"
	payload.Raw["x_signature"] = payload.XSignature

	if err := v.Verify(payload, sig); err != nil {
		t.Fatalf("expected header channel to recover the delivery, got %v", err)
	}
}

func TestVerifyBothChannelsWrong(t *testing.T) {
	v := newVerifier(t, "secret", "https://www.billplz.com/api")

	payload := billplz.ParseForm(callbackValues())
	bad := signWith("other-key", payload.Raw)
	payload.XSignature = bad
	payload.Raw["x_signature"] = bad

	err := v.Verify(payload, bad)
	if !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestVerifyRejectsWrongKey(t *testing.T) {
	v := newVerifier(t, "secret", "https://www.billplz.com/api")

	payload := billplz.ParseForm(callbackValues())
	payload.XSignature = signWith("other-key", payload.Raw)
	payload.Raw["x_signature"] = payload.XSignature

	err := v.Verify(payload, "")
	if !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestVerifyRejectsTamperedPayload(t *testing.T) {
	v := newVerifier(t, "secret", "https://www.billplz.com/api")

	payload := billplz.ParseForm(callbackValues())
	sig := signWith("secret", payload.Raw)
	payload.Raw["amount"] = "100"
	payload.XSignature = sig
	payload.Raw["x_signature"] = sig

	err := v.Verify(payload, "")
	if !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
}

func TestVerifyMissingSignatureProduction(t *testing.T) {
	v := newVerifier(t, "secret", "https://www.billplz.com/api")

	payload := billplz.ParseForm(callbackValues())
	err := v.Verify(payload, "")
	if !errors.Is(err, domain.ErrMissingSignature) {
		t.Fatalf("expected ErrMissingSignature, got %v", err)
	}
}

func TestVerifyMissingSignatureSandbox(t *testing.T) {
	v := newVerifier(t, "secret", "https://www.billplz-sandbox.com/api")

	payload := billplz.ParseForm(callbackValues())
	if err := v.Verify(payload, ""); err != nil {
		t.Fatalf("expected sandbox leniency for unsigned callback, got %v", err)
	}
}

func TestVerifyPermissiveWithoutKey(t *testing.T) {
	v := newVerifier(t, "", "https://www.billplz.com/api")

	payload := billplz.ParseForm(callbackValues())
	if err := v.Verify(payload, ""); err != nil {
		t.Fatalf("expected permissive mode without key, got %v", err)
	}
}

func TestVerifyUppercaseSignatureAccepted(t *testing.T) {
	v := newVerifier(t, "secret", "https://www.billplz.com/api")

	payload := billplz.ParseForm(callbackValues())
	sig := strings.ToUpper(signWith("secret", payload.Raw))

	if err := v.Verify(payload, sig); err != nil {
		t.Fatalf("expected case-insensitive signature match, got %v", err)
	}
}

func TestParseFormUnwrapsBillplzKeys(t *testing.T) {
	values := url.Values{
		"billplz[id]":          {"bill_xyz"},
		"billplz[paid]":        {"true"},
		"billplz[state]":       {"paid"},
		"billplz[amount]":      {"2900"},
		"billplz[reference_1]": {"42"},
	}

	payload := billplz.ParseForm(values)
	if payload.BillID != "bill_xyz" {
		t.Fatalf("expected bill id unwrapped, got %q", payload.BillID)
	}
	if !payload.Paid {
		t.Fatal("expected paid=true")
	}
	if payload.Reference1 != "42" {
		t.Fatalf("expected reference_1 42, got %q", payload.Reference1)
	}
}

func TestParseJSON(t *testing.T) {
	body := []byte(`{"id":"bill_j","paid":true,"state":"paid","amount":4900,"reference_1":"77"}`)

	payload, err := billplz.ParseJSON(body)
	if err != nil {
		t.Fatalf("parse json: %v", err)
	}
	if payload.BillID != "bill_j" {
		t.Fatalf("expected bill_j, got %q", payload.BillID)
	}
	if !payload.Paid {
		t.Fatal("expected paid=true")
	}
	if payload.Amount != "4900" {
		t.Fatalf("expected amount 4900, got %q", payload.Amount)
	}
}
