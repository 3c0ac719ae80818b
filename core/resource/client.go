package resource

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"sync"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/sendgrid/rest"

	"github.com/trezcool/masomo-portal/core"
)

// Notifier shows short-lived messages (toasts) to the user.
type Notifier interface {
	Success(msg string)
	Error(msg string)
}

type nopNotifier struct{}

func (nopNotifier) Success(string) {}
func (nopNotifier) Error(string)   {}

// Labels are the success messages shown after each mutation.
type Labels struct {
	Created string
	Updated string
	Deleted string
}

var defaultLabels = Labels{
	Created: "Créé avec succès",
	Updated: "Mis à jour avec succès",
	Deleted: "Supprimé avec succès",
}

type Options[T any] struct {
	Transport    *Transport
	Endpoint     string                 // collection path, eg. /api/courses
	ListEndpoint string                 // defaults to Endpoint, eg. /api/my-courses
	ItemPath     func(id string) string // defaults to Endpoint/{id}
	UpdateMethod rest.Method            // defaults to PUT
	ID           func(T) string
	Notifier     Notifier
	Labels       Labels
}

type DeleteOptions struct {
	Force bool // delete despite dependent records
}

// File is a file uploaded with a multipart request.
type File struct {
	Field   string // form field name, eg. "image"
	Name    string // file name
	Content io.Reader
}

// Client holds the list of one API resource and keeps it in sync after each mutation.
// It is safe for concurrent use.
type Client[T any] struct {
	opts Options[T]
	tr   *Transport

	mu      sync.RWMutex
	items   []T
	err     string
	loading bool
	gen     uint64 // incremented by each fetch, only the latest one updates the list
}

// New instantiates a resource client.
func New[T any](opts Options[T]) (*Client[T], error) {
	if err := vala.BeginValidation().Validate(
		vala.IsNotNil(opts.Transport, "Transport"),
		vala.StringNotEmpty(opts.Endpoint, "Endpoint"),
		vala.IsNotNil(opts.ID, "ID"),
	).Check(); err != nil {
		return nil, err
	}

	if opts.ListEndpoint == "" {
		opts.ListEndpoint = opts.Endpoint
	}
	if opts.ItemPath == nil {
		endpoint := opts.Endpoint
		opts.ItemPath = func(id string) string { return endpoint + "/" + id }
	}
	if opts.UpdateMethod == "" {
		opts.UpdateMethod = rest.Put
	}
	if opts.Notifier == nil {
		opts.Notifier = nopNotifier{}
	}
	if opts.Labels.Created == "" {
		opts.Labels.Created = defaultLabels.Created
	}
	if opts.Labels.Updated == "" {
		opts.Labels.Updated = defaultLabels.Updated
	}
	if opts.Labels.Deleted == "" {
		opts.Labels.Deleted = defaultLabels.Deleted
	}
	return &Client[T]{opts: opts, tr: opts.Transport, items: []T{}}, nil
}

func (c *Client[T]) Transport() *Transport { return c.tr }
func (c *Client[T]) Notifier() Notifier    { return c.opts.Notifier }

// Items returns a copy of the current list.
func (c *Client[T]) Items() []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshot()
}

// Err returns the message of the last failure ("" after a success).
func (c *Client[T]) Err() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

func (c *Client[T]) Loading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loading
}

// Find returns the listed item with the given id.
func (c *Client[T]) Find(id string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, it := range c.items {
		if c.opts.ID(it) == id {
			return it, true
		}
	}
	var zero T
	return zero, false
}

// UpdateLocal applies fn to the listed item with the given id, without any request.
// Used after calls that change a record as a side effect (eg. marking a chapter as read).
func (c *Client[T]) UpdateLocal(id string, fn func(*T)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.items {
		if c.opts.ID(c.items[i]) == id {
			fn(&c.items[i])
			return true
		}
	}
	return false
}

// must be called with c.mu held
func (c *Client[T]) snapshot() []T {
	items := make([]T, len(c.items))
	copy(items, c.items)
	return items
}

// Fetch replaces the list with the one returned by the API.
// A body that is not a JSON array results in an empty list.
func (c *Client[T]) Fetch(ctx context.Context) ([]T, error) {
	items, err := c.fetch(ctx)
	if err != nil {
		return nil, c.fail(ctx, err)
	}
	return items, nil
}

func (c *Client[T]) fetch(ctx context.Context) ([]T, error) {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.loading = true
	c.mu.Unlock()

	res, err := c.tr.Send(ctx, Request{Method: rest.Get, Path: c.opts.ListEndpoint})

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen == c.gen {
		c.loading = false
	}
	if err != nil {
		if ctx.Err() == nil && core.IsAuthError(err) {
			c.items = []T{} // never show data without a valid session
		}
		return nil, err
	}
	if ctx.Err() != nil { // the caller went away
		return nil, ctx.Err()
	}

	items, ok := DecodeList[T]([]byte(res.Body))
	if !ok {
		c.tr.logger.Warn(fmt.Sprintf("GET %s: response is not a list", c.opts.ListEndpoint))
	}
	if gen == c.gen {
		c.items = items
		c.err = ""
	}
	return c.snapshot(), nil
}

// Get fetches one record. The list is left untouched.
func (c *Client[T]) Get(ctx context.Context, id string) (T, error) {
	var rec T
	if err := c.tr.Do(ctx, rest.Get, c.opts.ItemPath(id), nil, &rec); err != nil {
		return rec, c.fail(ctx, err)
	}
	return rec, nil
}

// Create posts `data` as JSON, refreshes the list and returns the created record.
// A *RefreshError means the record was created: do not post it again.
func (c *Client[T]) Create(ctx context.Context, data interface{}) (T, error) {
	req, err := JSONRequest(rest.Post, c.opts.Endpoint, data)
	if err != nil {
		var zero T
		return zero, c.fail(ctx, err)
	}
	return c.mutate(ctx, req, c.opts.Labels.Created)
}

// CreateMultipart posts `fields` and `file` as multipart/form-data.
// Without a file, the fields are posted as JSON.
func (c *Client[T]) CreateMultipart(ctx context.Context, fields map[string]string, file *File) (T, error) {
	if file == nil {
		return c.Create(ctx, fields)
	}
	req, err := MultipartRequest(rest.Post, c.opts.Endpoint, fields, file)
	if err != nil {
		var zero T
		return zero, c.fail(ctx, err)
	}
	return c.mutate(ctx, req, c.opts.Labels.Created)
}

// Update sends `data` to the record path, refreshes the list and returns the updated record.
// A *RefreshError means the update was saved.
func (c *Client[T]) Update(ctx context.Context, id string, data interface{}) (T, error) {
	req, err := JSONRequest(c.opts.UpdateMethod, c.opts.ItemPath(id), data)
	if err != nil {
		var zero T
		return zero, c.fail(ctx, err)
	}
	return c.mutate(ctx, req, c.opts.Labels.Updated)
}

func (c *Client[T]) mutate(ctx context.Context, req Request, successMsg string) (T, error) {
	var rec T
	res, err := c.tr.Send(ctx, req)
	if err != nil {
		return rec, c.fail(ctx, err)
	}
	if err := DecodeRecord([]byte(res.Body), &rec); err != nil {
		return rec, c.fail(ctx, err)
	}
	if _, err := c.fetch(ctx); err != nil {
		return rec, c.fail(ctx, &RefreshError{Err: err})
	}
	c.opts.Notifier.Success(successMsg)
	return rec, nil
}

// RefreshError is returned by Create and Update when the record was saved on the API
// but the list could not be refreshed. The saved record is returned along with it.
type RefreshError struct {
	Err error
}

func (e *RefreshError) Error() string { return "refreshing list: " + e.Err.Error() }
func (e *RefreshError) Cause() error  { return e.Err }
func (e *RefreshError) Unwrap() error { return e.Err }

// IsRefreshError reports whether the record behind `err` was saved despite the error.
func IsRefreshError(err error) bool {
	var rErr *RefreshError
	return errors.As(err, &rErr)
}

// Delete removes the record from the list right away, then deletes it on the API and refreshes the list.
// The previous list is restored if either request fails.
func (c *Client[T]) Delete(ctx context.Context, id string, opts ...DeleteOptions) error {
	var body interface{}
	if len(opts) > 0 && opts[0].Force {
		body = map[string]bool{"force": true}
	}
	req, err := JSONRequest(rest.Delete, c.opts.ItemPath(id), body)
	if err != nil {
		return c.fail(ctx, err)
	}

	c.mu.Lock()
	prev := c.snapshot()
	kept := make([]T, 0, len(c.items))
	for _, it := range c.items {
		if c.opts.ID(it) != id {
			kept = append(kept, it)
		}
	}
	c.items = kept
	c.mu.Unlock()

	rollback := func(err error) {
		if core.IsAuthError(err) {
			return // the session is gone, keep the list empty
		}
		c.mu.Lock()
		c.gen++ // discard in-flight fetches
		c.loading = false
		c.items = prev
		c.mu.Unlock()
	}

	if _, err := c.tr.Send(ctx, req); err != nil {
		rollback(err)
		return c.fail(ctx, err)
	}
	if _, err := c.fetch(ctx); err != nil {
		rollback(err)
		return c.fail(ctx, errors.Wrap(err, "refreshing list"))
	}
	c.opts.Notifier.Success(c.opts.Labels.Deleted)
	return nil
}

// fail records the error for the view, notifies the user and returns the error.
func (c *Client[T]) fail(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return err // cancelled by the caller: nobody is looking anymore
	}
	msg := UserMessage(err)
	c.mu.Lock()
	c.err = msg
	c.mu.Unlock()
	c.opts.Notifier.Error(msg)
	return err
}

// UserMessage returns the message shown to the user for `err`.
func UserMessage(err error) string {
	switch cause := errors.Cause(err).(type) {
	case *core.AuthError, *core.HTTPError, *core.ValidationError:
		return cause.Error()
	default:
		if errors.Is(err, context.DeadlineExceeded) {
			return "Le serveur ne répond pas, réessayez plus tard"
		}
		return "Erreur réseau: " + err.Error()
	}
}

// MultipartRequest builds a multipart/form-data request.
func MultipartRequest(method rest.Method, path string, fields map[string]string, file *File) (Request, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return Request{}, errors.Wrap(err, "writing form field")
		}
	}
	if file != nil {
		fw, err := w.CreateFormFile(file.Field, file.Name)
		if err != nil {
			return Request{}, errors.Wrap(err, "creating form file")
		}
		if _, err := io.Copy(fw, file.Content); err != nil {
			return Request{}, errors.Wrap(err, "copying form file")
		}
	}
	if err := w.Close(); err != nil {
		return Request{}, errors.Wrap(err, "closing form")
	}
	return Request{
		Method:  method,
		Path:    path,
		Headers: map[string]string{"Content-Type": w.FormDataContentType()},
		Body:    buf.Bytes(),
	}, nil
}
