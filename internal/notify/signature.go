package notify

import (
    "crypto/hmac"
    "crypto/sha256"
    "encoding/hex"
)

// Sign returns the hex HMAC-SHA256 of body under secret. Receivers verify
// it against the X-Signature header.
func Sign(secret string, body []byte) string {
    mac := hmac.New(sha256.New, []byte(secret))
    mac.Write(body)
    return hex.EncodeToString(mac.Sum(nil))
}
