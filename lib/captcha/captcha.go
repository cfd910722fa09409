// Package captcha validates reCAPTCHA tokens sent by web clients.
package captcha

import (
	"context"

	"github.com/go-resty/resty/v2"
	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("captcha")

// VerifyURL is the reCAPTCHA token verification endpoint.
const VerifyURL = "https://www.google.com/recaptcha/api/siteverify"

// Validator reports whether a captcha token was solved by a human.
type Validator interface {
	Validate(ctx context.Context, token string) bool
}

type verifyResponse struct {
	Success    bool     `json:"success"`
	Hostname   string   `json:"hostname"`
	ErrorCodes []string `json:"error-codes"`
}

// Recaptcha validates tokens against the reCAPTCHA API.
type Recaptcha struct {
	secret string
	url    string
	c      *resty.Client
}

// New returns a Recaptcha using the site secret. An empty url uses VerifyURL.
func New(secret, url string) *Recaptcha {
	if url == "" {
		url = VerifyURL
	}

	return &Recaptcha{secret: secret, url: url, c: resty.New()}
}

// Validate returns false when the token is rejected, when no secret is configured or when the verification call fails.
func (r *Recaptcha) Validate(ctx context.Context, token string) bool {
	if r.secret == "" {
		log.Warn("Recaptcha secret not configured, rejecting token")

		return false
	}

	if token == "" {
		return false
	}

	var v verifyResponse

	res, err := r.c.R().
		SetContext(ctx).
		SetFormData(map[string]string{"secret": r.secret, "response": token}).
		SetResult(&v).
		Post(r.url)
	if err != nil {
		log.Errorf("Error validating captcha: %s", err)

		return false
	}

	if res.IsError() {
		log.Errorf("Error validating captcha: status %s", res.Status())

		return false
	}

	if !v.Success {
		log.Debugf("Captcha rejected: %v", v.ErrorCodes)
	}

	return v.Success
}
