package resource

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/sendgrid/rest"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/auth"
)

const RequestIDHeader = "X-Request-ID"

// AuthStrategy returns the header used to authenticate a request with `token`.
type AuthStrategy func(token string) (header, value string)

// Bearer is the default AuthStrategy: "Authorization: Bearer <token>".
func Bearer(token string) (string, string) {
	return "Authorization", "Bearer " + token
}

type TransportOptions struct {
	BaseURL string
	Session *auth.Session
	Auth    AuthStrategy  // defaults to Bearer
	Timeout time.Duration // defaults to 15s; ignored if HTTP is set
	HTTP    *http.Client
	Logger  core.Logger
}

// Transport sends authenticated requests to the API.
// It is shared by all resource clients of a Session.
type Transport struct {
	baseURL string
	session *auth.Session
	auth    AuthStrategy
	client  *rest.Client
	logger  core.Logger
}

func NewTransport(opts TransportOptions) (tr *Transport, err error) {
	if err = vala.BeginValidation().Validate(
		vala.StringNotEmpty(opts.BaseURL, "BaseURL"),
		vala.IsNotNil(opts.Session, "Session"),
	).Check(); err != nil {
		return nil, err
	}

	tr = &Transport{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		session: opts.Session,
		auth:    opts.Auth,
		logger:  opts.Logger,
	}
	if tr.auth == nil {
		tr.auth = Bearer
	}
	if tr.logger == nil {
		tr.logger = core.NopLogger
	}
	httpClient := opts.HTTP
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	tr.client = &rest.Client{HTTPClient: httpClient}
	return tr, nil
}

func (tr *Transport) Session() *auth.Session { return tr.session }

type Request struct {
	Method      rest.Method
	Path        string // eg. /api/courses
	QueryParams map[string]string
	Headers     map[string]string
	Body        []byte
	Public      bool // do not require nor send the token (eg. login)
}

// JSONRequest builds a Request with `body` encoded as JSON (nil body is allowed).
func JSONRequest(method rest.Method, path string, body interface{}) (Request, error) {
	req := Request{Method: method, Path: path}
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return req, errors.Wrap(err, "encoding request body")
		}
		req.Body = b
		req.Headers = map[string]string{"Content-Type": "application/json"}
	}
	return req, nil
}

// Send sends `req` and returns the response of a 2xx status.
//  - missing or malformed token: the request is not sent and the token error is returned.
//  - 401: the session is logged out and core.ErrSessionExpired is returned.
//  - any other non-2xx status: *core.HTTPError.
func (tr *Transport) Send(ctx context.Context, req Request) (*rest.Response, error) {
	headers := map[string]string{
		"Accept":        "application/json",
		RequestIDHeader: uuid.NewString(),
	}
	for k, v := range req.Headers {
		headers[k] = v
	}

	if !req.Public {
		token, err := tr.session.Token(ctx)
		if err != nil {
			return nil, err
		}
		if err := auth.ValidateToken(token); err != nil {
			if err == core.ErrSessionExpired {
				tr.expire(ctx)
			}
			return nil, err
		}
		key, val := tr.auth(token)
		headers[key] = val
	}

	res, err := tr.client.SendWithContext(ctx, rest.Request{
		Method:      req.Method,
		BaseURL:     tr.baseURL + req.Path,
		Headers:     headers,
		QueryParams: req.QueryParams,
		Body:        req.Body,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, errors.Wrapf(err, "%s %s", req.Method, req.Path)
	}
	tr.logger.Debug(fmt.Sprintf("%s %s -> %d [%s]", req.Method, req.Path, res.StatusCode, headers[RequestIDHeader]))

	switch {
	case res.StatusCode == http.StatusUnauthorized && !req.Public:
		tr.expire(ctx)
		return nil, core.ErrSessionExpired
	case res.StatusCode < 200 || res.StatusCode > 299:
		return nil, core.NewHTTPError(res.StatusCode, res.Body)
	}
	return res, nil
}

// Do sends a JSON request and decodes the response body (if any) into `out` (if not nil).
func (tr *Transport) Do(ctx context.Context, method rest.Method, path string, body, out interface{}) error {
	req, err := JSONRequest(method, path, body)
	if err != nil {
		return err
	}
	res, err := tr.Send(ctx, req)
	if err != nil {
		return err
	}
	return DecodeRecord([]byte(res.Body), out)
}

func (tr *Transport) expire(ctx context.Context) {
	if err := tr.session.Logout(ctx, auth.LogoutExpired); err != nil {
		tr.logger.Error(fmt.Sprintf("logging out expired session: %v", err), err)
	}
}

// DecodeRecord decodes a JSON object into `out`. Objects wrapped in {"data": {...}} are unwrapped.
func DecodeRecord(body []byte, out interface{}) error {
	body = bytes.TrimSpace(body)
	if out == nil || len(body) == 0 {
		return nil
	}
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if body[0] == '{' && json.Unmarshal(body, &envelope) == nil {
		if d := bytes.TrimSpace(envelope.Data); len(d) > 0 && d[0] == '{' {
			body = d
		}
	}
	return errors.Wrap(json.Unmarshal(body, out), "decoding response")
}

// DecodeList decodes a JSON array. Anything that is not a valid array decodes into an empty list.
func DecodeList[T any](body []byte) ([]T, bool) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || body[0] != '[' {
		return []T{}, false
	}
	var items []T
	if err := json.Unmarshal(body, &items); err != nil {
		return []T{}, false
	}
	if items == nil {
		items = []T{}
	}
	return items, true
}
