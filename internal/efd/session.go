// Package efd scrapes periodic transaction reports from the Senate
// financial-disclosure portal.
package efd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/captrades/captrades/internal/infra"
)

const (
	homePath   = "/search/home/"
	searchPath = "/search/report/data/"
	csrfCookie = "csrftoken"
)

// ErrNoToken indicates the portal did not set the CSRF cookie the filing
// access protocol depends on.
var ErrNoToken = errors.New("efd: csrf token cookie not set")

// Session holds an agreed-to portal session. The portal gates every search
// and filing behind a prohibition-of-use agreement; Agree performs the
// checkbox POST and afterwards every request carries the validated CSRF
// token alongside the session cookies.
type Session struct {
	client  *http.Client
	baseURL string
	token   string
	log     zerolog.Logger
}

// NewSession creates a session against the given portal base URL.
func NewSession(baseURL string, log zerolog.Logger) *Session {
	jar, _ := cookiejar.New(nil)
	return &Session{
		client: &http.Client{
			Timeout: 30 * time.Second,
			Jar:     jar,
		},
		baseURL: baseURL,
		log:     log.With().Str("component", "efd").Logger(),
	}
}

// Agree accepts the portal's prohibition-of-use agreement. The home page
// sets an unvalidated CSRF cookie; posting it back with the agreement flag
// makes the server rotate it to a validated token, which is kept for all
// subsequent requests.
func (s *Session) Agree(ctx context.Context) error {
	homeURL := s.baseURL + homePath

	body, _, err := infra.DoGetWith(ctx, s.client, homeURL, nil)
	if err != nil {
		return fmt.Errorf("efd home page: %w", err)
	}
	drain(body)

	token, err := s.cookieToken()
	if err != nil {
		return err
	}

	form := url.Values{
		"csrfmiddlewaretoken":   {token},
		"prohibition_agreement": {"1"},
	}
	body, _, err = infra.DoPostForm(ctx, s.client, homeURL, form, map[string]string{
		"Referer": homeURL,
	})
	if err != nil {
		return fmt.Errorf("efd agreement: %w", err)
	}
	drain(body)

	// The server rotates the cookie on a successful agreement.
	s.token, err = s.cookieToken()
	if err != nil {
		return err
	}

	s.log.Debug().Msg("portal agreement accepted")
	return nil
}

// postForm posts a form to a portal path with the validated token's cookies
// attached. The caller closes the returned body.
func (s *Session) postForm(ctx context.Context, path string, form url.Values, referer string) (io.ReadCloser, error) {
	body, _, err := infra.DoPostForm(ctx, s.client, s.baseURL+path, form, map[string]string{
		"Referer": referer,
	})
	return body, err
}

func (s *Session) cookieToken() (string, error) {
	u, err := url.Parse(s.baseURL + homePath)
	if err != nil {
		return "", fmt.Errorf("parse portal url: %w", err)
	}
	for _, c := range s.client.Jar.Cookies(u) {
		if c.Name == csrfCookie {
			return c.Value, nil
		}
	}
	return "", ErrNoToken
}

func drain(rc io.ReadCloser) {
	io.Copy(io.Discard, rc) //nolint:errcheck
	rc.Close()
}
