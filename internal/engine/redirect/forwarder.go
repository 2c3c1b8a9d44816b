package redirect

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// Forwarder pushes click events to an external analytics collaborator over
// HTTP, signed so the receiver can verify origin. Delivery is best-effort:
// a failed POST is logged and dropped, never retried.
type Forwarder struct {
	url    string
	secret string
	client *http.Client
}

func NewForwarder(url, secret string) *Forwarder {
	if url == "" {
		return nil
	}
	return &Forwarder{
		url:    url,
		secret: secret,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (f *Forwarder) Forward(ev *ClickEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}

	req, err := http.NewRequest(http.MethodPost, f.url, bytes.NewBuffer(payload))
	if err != nil {
		return
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-EdgeLink-Signature", Sign(f.secret, payload))
	req.Header.Set("X-EdgeLink-Event", "link.clicked")

	resp, err := f.client.Do(req)
	if err != nil {
		log.Warn().Err(err).Str("slug", ev.Slug).Msg("analytics sink unreachable")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		log.Warn().Int("status", resp.StatusCode).Str("slug", ev.Slug).Msg("analytics sink rejected event")
	}
}

func Sign(secret string, payload []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}
