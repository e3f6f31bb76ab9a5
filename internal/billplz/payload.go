package billplz

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/kadkita/kadkita/internal/billplz/domain"
)

// ParseForm flattens an application/x-www-form-urlencoded callback. Billplz
// delivers either bare keys or billplz[...]-wrapped keys depending on the
// collection settings; both map to the same canonical names.
func ParseForm(values url.Values) *domain.CallbackPayload {
	raw := make(map[string]string, len(values))
	for key := range values {
		raw[normalizeKey(key)] = values.Get(key)
	}
	return fromRaw(raw)
}

// ParseJSON flattens a JSON callback body.
func ParseJSON(body []byte) (*domain.CallbackPayload, error) {
	var decoded map[string]interface{}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, err
	}
	raw := make(map[string]string, len(decoded))
	for key, value := range decoded {
		raw[normalizeKey(key)] = stringify(value)
	}
	return fromRaw(raw), nil
}

func fromRaw(raw map[string]string) *domain.CallbackPayload {
	return &domain.CallbackPayload{
		BillID:     raw["id"],
		Paid:       strings.EqualFold(raw["paid"], "true"),
		State:      raw["state"],
		Amount:     raw["amount"],
		PaidAt:     raw["paid_at"],
		Reference1: raw["reference_1"],
		XSignature: raw["x_signature"],
		Raw:        raw,
	}
}

func normalizeKey(key string) string {
	key = strings.TrimSpace(key)
	if strings.HasPrefix(key, "billplz[") && strings.HasSuffix(key, "]") {
		key = key[len("billplz[") : len(key)-1]
	}
	return key
}

func stringify(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		if v {
			return "true"
		}
		return "false"
	case float64:
		return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%f", v), "0"), ".")
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(encoded)
	}
}
