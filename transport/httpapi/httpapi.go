// Package httpapi implements contacts.Transport against a JSON REST service
// exposing /users (GET list, POST create, DELETE /users/{id}).
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.trai.ch/zerr"
	"golang.org/x/time/rate"

	"github.com/unkn0wn-root/optcache/contacts"
)

const (
	DefaultBaseURL   = "https://jsonplaceholder.typicode.com"
	DefaultUserAgent = "optcache-contacts/1"

	defaultTimeout = 10 * time.Second
	maxErrorBody   = 512
)

var (
	// ErrStatus marks a non-2xx response. The status code and URL are attached
	// as metadata; see StatusCode.
	ErrStatus = errors.New("httpapi: unexpected status")

	// ErrMalformed marks a 2xx response whose body could not be used.
	ErrMalformed = errors.New("httpapi: malformed response")
)

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type Config struct {
	BaseURL   string        // default DefaultBaseURL
	Client    HTTPClient    // nil => *http.Client with Timeout
	Timeout   time.Duration // only for the default client; 0 => 10s
	Limit     int           // List page size sent as _limit; 0 => server default
	UserAgent string

	// RequestsPerSecond caps outgoing requests; 0 => unlimited.
	RequestsPerSecond float64
	Burst             int // 0 => 1
}

type Transport struct {
	base      *url.URL
	client    HTTPClient
	limit     int
	userAgent string
	limiter   *rate.Limiter // nil => unlimited
}

var _ contacts.Transport = (*Transport)(nil)

func New(cfg Config) (*Transport, error) {
	raw := cfg.BaseURL
	if raw == "" {
		raw = DefaultBaseURL
	}
	base, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "invalid base url"), "base_url", raw)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, zerr.With(zerr.New("base url must be http or https"), "base_url", raw)
	}

	client := cfg.Client
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	t := &Transport{base: base, client: client, limit: cfg.Limit, userAgent: ua}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		t.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return t, nil
}

// user is the wire shape; fields other than these are ignored.
type user struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

func (u user) record() contacts.Record {
	return contacts.Record{ID: contacts.ID(u.ID), Name: u.Name, Phone: u.Phone}
}

func (t *Transport) List(ctx context.Context) (contacts.Collection, error) {
	q := url.Values{}
	if t.limit > 0 {
		q.Set("_limit", strconv.Itoa(t.limit))
	}
	var users []user
	if err := t.do(ctx, http.MethodGet, t.endpoint(q, "users"), nil, &users); err != nil {
		return nil, zerr.Wrap(err, "failed to list contacts")
	}
	out := make(contacts.Collection, 0, len(users))
	for _, u := range users {
		out = append(out, u.record())
	}
	return out, nil
}

func (t *Transport) Create(ctx context.Context, in contacts.Input) (contacts.Record, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return contacts.Record{}, zerr.Wrap(err, "failed to encode contact")
	}
	var u user
	if err := t.do(ctx, http.MethodPost, t.endpoint(nil, "users"), body, &u); err != nil {
		return contacts.Record{}, zerr.Wrap(err, "failed to create contact")
	}
	if u.ID <= 0 {
		return contacts.Record{}, zerr.With(zerr.Wrap(ErrMalformed, "created contact has no id"), "id", u.ID)
	}
	// some services echo only the id
	rec := u.record()
	if rec.Name == "" {
		rec.Name = in.Name
	}
	if rec.Phone == "" {
		rec.Phone = in.Phone
	}
	return rec, nil
}

func (t *Transport) Remove(ctx context.Context, id contacts.ID) (contacts.ID, error) {
	path := strconv.FormatInt(int64(id), 10)
	if err := t.do(ctx, http.MethodDelete, t.endpoint(nil, "users", path), nil, nil); err != nil {
		return 0, zerr.With(zerr.Wrap(err, "failed to delete contact"), "id", id)
	}
	return id, nil
}

func (t *Transport) endpoint(q url.Values, segments ...string) string {
	u := *t.base
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.Join(segments, "/")
	u.RawQuery = q.Encode()
	return u.String()
}

// do sends one request and decodes a 2xx JSON body into out (nil = discard).
func (t *Transport) do(ctx context.Context, method, target string, body []byte, out any) error {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return zerr.With(zerr.Wrap(err, "rate limit wait"), "url", target)
		}
	}
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, rd)
	if err != nil {
		return zerr.Wrap(err, "failed to create request")
	}
	req.Header.Set("User-Agent", t.userAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to send request"), "url", target)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		err := zerr.With(ErrStatus, "status", resp.StatusCode)
		err = zerr.With(err, "url", target)
		return zerr.With(err, "body", string(snippet))
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return zerr.With(zerr.Wrap(errors.Join(ErrMalformed, err), "failed to decode response"), "url", target)
	}
	return nil
}

// StatusCode returns the HTTP status carried by an ErrStatus error, or 0.
func StatusCode(err error) int {
	if !errors.Is(err, ErrStatus) {
		return 0
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		if z, ok := e.(*zerr.Error); ok {
			if code, ok := z.Metadata()["status"].(int); ok {
				return code
			}
		}
	}
	return 0
}

func (t *Transport) String() string { return fmt.Sprintf("httpapi(%s)", t.base) }
