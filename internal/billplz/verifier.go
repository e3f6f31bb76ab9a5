package billplz

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/kadkita/kadkita/internal/billplz/domain"
	"github.com/kadkita/kadkita/internal/config"
)

type VerifierParams struct {
	fx.In

	Config config.Config
	Log    *zap.Logger
}

// Verifier authenticates inbound callbacks with the collection's X Signature
// key. With no key configured every callback passes; this is a deliberate
// degraded mode for environments where the key was never issued.
type Verifier struct {
	key     string
	sandbox bool
	log     *zap.Logger
}

func NewVerifier(p VerifierParams) *Verifier {
	return &Verifier{
		key:     p.Config.Billplz.XSignatureKey,
		sandbox: p.Config.Billplz.Sandbox(),
		log:     p.Log.Named("billplz.verifier"),
	}
}

// Verify checks the payload signature. The signature may arrive in the body
// (x_signature) or in the X-Signature header; the channels are compared
// independently and either one matching is enough, so a body mangled by a
// proxy's form re-encoding does not reject a delivery whose header is intact.
func (v *Verifier) Verify(payload *domain.CallbackPayload, headerSignature string) error {
	if v.key == "" {
		v.log.Warn("signature verification skipped: no x-signature key configured",
			zap.String("bill_id", payload.BillID),
		)
		return nil
	}

	bodySig := strings.TrimSpace(payload.XSignature)
	headerSig := strings.TrimSpace(headerSignature)
	if bodySig == "" && headerSig == "" {
		if v.sandbox {
			v.log.Warn("accepting unsigned callback from sandbox endpoint",
				zap.String("bill_id", payload.BillID),
			)
			return nil
		}
		return domain.ErrMissingSignature
	}

	computed := v.sign(payload.Raw)
	for _, received := range []string{bodySig, headerSig} {
		if received == "" {
			continue
		}
		if hmac.Equal([]byte(computed), []byte(strings.ToLower(received))) {
			return nil
		}
	}

	v.log.Error("callback signature mismatch",
		zap.String("bill_id", payload.BillID),
		zap.String("reference_1", payload.Reference1),
		zap.String("computed", computed),
		zap.String("body_signature", bodySig),
		zap.String("header_signature", headerSig),
	)
	return domain.ErrInvalidSignature
}

// sign canonicalizes the payload as key+value pairs sorted case-insensitively
// and joined by "|", excluding the signature field itself.
func (v *Verifier) sign(raw map[string]string) string {
	keys := make([]string, 0, len(raw))
	for key := range raw {
		if strings.EqualFold(key, "x_signature") {
			continue
		}
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		return strings.ToLower(keys[i]) < strings.ToLower(keys[j])
	})

	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, key+raw[key])
	}

	mac := hmac.New(sha256.New, []byte(v.key))
	mac.Write([]byte(strings.Join(pairs, "|")))
	return hex.EncodeToString(mac.Sum(nil))
}

var Module = fx.Module("billplz",
	fx.Provide(NewClient),
	fx.Provide(NewVerifier),
)
