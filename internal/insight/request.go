package insight

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

type Request struct {
	ID          string
	Fingerprint string
	Domain      DomainTag
	Prompt      string
	// Facts are locally known values used only by fallback content.
	Facts     map[string]string
	CreatedAt time.Time
}

// Fingerprint identifies logically identical requests. The prompt is used
// byte for byte.
func Fingerprint(domain DomainTag, prompt string) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0})
	h.Write([]byte(prompt))
	return hex.EncodeToString(h.Sum(nil))
}

func NewRequest(domain DomainTag, prompt string, facts map[string]string) Request {
	return Request{
		ID:          uuid.NewString(),
		Fingerprint: Fingerprint(domain, prompt),
		Domain:      domain,
		Prompt:      prompt,
		Facts:       facts,
		CreatedAt:   time.Now().UTC(),
	}
}
