package resource

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/auth"
)

type item struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
}

type recordingNotifier struct {
	mu      sync.Mutex
	success []string
	errors  []string
}

func (n *recordingNotifier) Success(msg string) {
	n.mu.Lock()
	n.success = append(n.success, msg)
	n.mu.Unlock()
}

func (n *recordingNotifier) Error(msg string) {
	n.mu.Lock()
	n.errors = append(n.errors, msg)
	n.mu.Unlock()
}

// fakeAPI is a minimal in-memory /api/items backend.
type fakeAPI struct {
	mu        sync.Mutex
	items     []item
	nextID    int
	listBody  string // overrides the GET response body when set
	status    int    // overrides every response status when set
	failList  bool   // GET answers 500
	listGate  chan struct{}
	requests  int32
	lastAuth  string
	lastBody  []byte
	lastForm  map[string]string
	lastFiles map[string]string
}

func newFakeAPI(items ...item) *fakeAPI {
	return &fakeAPI{items: items, nextID: len(items) + 1}
}

func (f *fakeAPI) locked(fn func(f *fakeAPI)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt32(&f.requests, 1)
	f.mu.Lock()
	f.lastAuth = r.Header.Get("Authorization")
	status, listBody, failList, gate := f.status, f.listBody, f.failList, f.listGate
	f.mu.Unlock()

	if status != 0 {
		w.WriteHeader(status)
		return
	}

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/api/items":
		if gate != nil {
			<-gate
		}
		if failList {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if listBody != "" {
			_, _ = io.WriteString(w, listBody)
			return
		}
		f.mu.Lock()
		_ = json.NewEncoder(w).Encode(f.items)
		f.mu.Unlock()
	case r.Method == http.MethodPost && r.URL.Path == "/api/items":
		var it item
		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			_ = r.ParseMultipartForm(1 << 20)
			f.mu.Lock()
			f.lastForm = map[string]string{}
			for k, v := range r.MultipartForm.Value {
				f.lastForm[k] = v[0]
			}
			f.lastFiles = map[string]string{}
			for k, fhs := range r.MultipartForm.File {
				fh, _ := fhs[0].Open()
				b, _ := io.ReadAll(fh)
				f.lastFiles[k] = fhs[0].Filename + ":" + string(b)
			}
			f.mu.Unlock()
			it.Title = r.FormValue("title")
		} else {
			b, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(b, &it)
		}
		f.mu.Lock()
		it.ID = f.nextID
		f.nextID++
		f.items = append(f.items, it)
		f.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": it})
	case strings.HasPrefix(r.URL.Path, "/api/items/"):
		id, _ := strconv.Atoi(strings.TrimPrefix(r.URL.Path, "/api/items/"))
		b, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		defer f.mu.Unlock()
		f.lastBody = b
		for i, it := range f.items {
			if it.ID != id {
				continue
			}
			switch r.Method {
			case http.MethodGet:
				_ = json.NewEncoder(w).Encode(it)
			case http.MethodPut:
				_ = json.Unmarshal(b, &f.items[i])
				f.items[i].ID = id
				_ = json.NewEncoder(w).Encode(f.items[i])
			case http.MethodDelete:
				f.items = append(f.items[:i], f.items[i+1:]...)
				w.WriteHeader(http.StatusNoContent)
			}
			return
		}
		w.WriteHeader(http.StatusNotFound)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func setup(t *testing.T, api *fakeAPI, token string) (*Client[item], *auth.Session, *recordingNotifier) {
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	ctx := context.Background()
	session := auth.NewSession(auth.NewMemoryStore(), nil)
	if token != "" {
		require.NoError(t, session.SetCredentials(ctx, token, auth.User{ID: 1, Email: "prof@ecole.cd"}))
	}
	tr, err := NewTransport(TransportOptions{BaseURL: srv.URL, Session: session})
	require.NoError(t, err)

	notifier := new(recordingNotifier)
	c, err := New(Options[item]{
		Transport: tr,
		Endpoint:  "/api/items",
		ID:        func(it item) string { return strconv.Itoa(it.ID) },
		Notifier:  notifier,
	})
	require.NoError(t, err)
	return c, session, notifier
}

func TestClient_Fetch(t *testing.T) {
	api := newFakeAPI(item{1, "Algèbre"}, item{2, "Chimie"})
	c, _, _ := setup(t, api, "tok")

	items, err := c.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []item{{1, "Algèbre"}, {2, "Chimie"}}, items)
	assert.Equal(t, items, c.Items())
	assert.Empty(t, c.Err())
	assert.False(t, c.Loading())
	api.locked(func(f *fakeAPI) { assert.Equal(t, "Bearer tok", f.lastAuth) })

	found, ok := c.Find("2")
	assert.True(t, ok)
	assert.Equal(t, "Chimie", found.Title)
}

func TestClient_Fetch_notAList(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "object", body: `{"message": "ok"}`},
		{name: "wrapped list", body: `{"data": [{"id": 1}]}`},
		{name: "null", body: `null`},
		{name: "string", body: `"hello"`},
		{name: "garbage", body: `<html>oops</html>`},
		{name: "broken array", body: `[{"id": 1},`},
		{name: "empty", body: ` `},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newFakeAPI(item{1, "Algèbre"})
			c, _, notifier := setup(t, api, "tok")
			_, err := c.Fetch(context.Background()) // fill the list first
			require.NoError(t, err)
			require.Len(t, c.Items(), 1)

			api.locked(func(f *fakeAPI) { f.listBody = tt.body })
			items, err := c.Fetch(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, []item{}, items)
			assert.Equal(t, []item{}, c.Items())
			assert.Empty(t, notifier.errors)
		})
	}
}

func TestClient_Fetch_unauthorized(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI(item{1, "Algèbre"})
	c, session, notifier := setup(t, api, "tok")
	_, err := c.Fetch(ctx)
	require.NoError(t, err)

	var logouts []auth.LogoutEvent
	session.Subscribe(func(evt auth.LogoutEvent) { logouts = append(logouts, evt) })

	api.locked(func(f *fakeAPI) { f.status = http.StatusUnauthorized })
	_, err = c.Fetch(ctx)
	assert.Equal(t, core.ErrSessionExpired, err)
	assert.NotEmpty(t, c.Err())
	assert.Equal(t, []item{}, c.Items())
	assert.Equal(t, []string{core.ErrSessionExpired.Error()}, notifier.errors)

	token, _ := session.Token(ctx)
	assert.Empty(t, token)
	_, ok, _ := session.User(ctx)
	assert.False(t, ok)
	require.Len(t, logouts, 1)
	assert.Equal(t, auth.LogoutExpired, logouts[0].Reason)
}

func TestClient_Fetch_httpError(t *testing.T) {
	api := newFakeAPI()
	c, _, notifier := setup(t, api, "tok")
	api.locked(func(f *fakeAPI) { f.status = http.StatusInternalServerError })

	_, err := c.Fetch(context.Background())
	assert.True(t, core.IsHTTPStatus(err, http.StatusInternalServerError))
	assert.Equal(t, "Erreur HTTP: 500", c.Err())
	assert.Equal(t, []string{"Erreur HTTP: 500"}, notifier.errors)
}

func TestClient_noToken(t *testing.T) {
	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{name: "missing", wantErr: core.ErrNoToken},
		{name: "malformed", token: "undefined", wantErr: core.ErrMalformedToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newFakeAPI(item{1, "Algèbre"})
			c, _, _ := setup(t, api, tt.token)

			_, err := c.Fetch(context.Background())
			assert.Equal(t, tt.wantErr, err)
			_, err = c.Create(context.Background(), item{Title: "x"})
			assert.Equal(t, tt.wantErr, err)
			assert.Equal(t, int32(0), atomic.LoadInt32(&api.requests), "no request must be sent")
			assert.Equal(t, []item{}, c.Items())
			assert.NotEmpty(t, c.Err())
		})
	}
}

func TestClient_Create(t *testing.T) {
	api := newFakeAPI(item{1, "Algèbre"})
	c, _, notifier := setup(t, api, "tok")

	created, err := c.Create(context.Background(), item{Title: "Physique"})
	require.NoError(t, err)
	assert.Equal(t, item{2, "Physique"}, created)
	assert.Equal(t, []item{{1, "Algèbre"}, {2, "Physique"}}, c.Items(), "list refreshed")
	assert.Equal(t, []string{"Créé avec succès"}, notifier.success)
}

func TestClient_Create_failure(t *testing.T) {
	api := newFakeAPI()
	c, _, notifier := setup(t, api, "tok")
	api.locked(func(f *fakeAPI) { f.status = http.StatusUnprocessableEntity })

	_, err := c.Create(context.Background(), item{Title: "Physique"})
	assert.True(t, core.IsHTTPStatus(err, http.StatusUnprocessableEntity), "error is returned to the caller")
	assert.Equal(t, []string{"Erreur HTTP: 422"}, notifier.errors)
	assert.Empty(t, notifier.success)
}

func TestClient_saved_refreshFails(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI(item{1, "Algèbre"})
	c, _, notifier := setup(t, api, "tok")
	api.locked(func(f *fakeAPI) { f.failList = true })

	created, err := c.Create(ctx, item{Title: "Physique"})
	require.Error(t, err)
	assert.True(t, IsRefreshError(err))
	assert.True(t, core.IsHTTPStatus(err, http.StatusInternalServerError))
	assert.Equal(t, item{2, "Physique"}, created, "the saved record is returned")

	updated, err := c.Update(ctx, "1", item{Title: "Algèbre linéaire"})
	assert.True(t, IsRefreshError(err))
	assert.Equal(t, item{1, "Algèbre linéaire"}, updated)

	api.locked(func(f *fakeAPI) { assert.Len(t, f.items, 2) })
	assert.Equal(t, []string{"Erreur HTTP: 500", "Erreur HTTP: 500"}, notifier.errors)
	assert.Empty(t, notifier.success)

	// the request itself failing is not a refresh error
	api.locked(func(f *fakeAPI) { f.status = http.StatusUnprocessableEntity })
	_, err = c.Create(ctx, item{Title: "Chimie"})
	assert.False(t, IsRefreshError(err))
}

func TestClient_CreateMultipart(t *testing.T) {
	api := newFakeAPI()
	c, _, _ := setup(t, api, "tok")

	created, err := c.CreateMultipart(context.Background(),
		map[string]string{"title": "Géographie", "formation_id": "3"},
		&File{Field: "image", Name: "carte.png", Content: strings.NewReader("PNG")},
	)
	require.NoError(t, err)
	assert.Equal(t, "Géographie", created.Title)
	api.locked(func(f *fakeAPI) {
		assert.Equal(t, map[string]string{"title": "Géographie", "formation_id": "3"}, f.lastForm)
		assert.Equal(t, map[string]string{"image": "carte.png:PNG"}, f.lastFiles)
	})
}

func TestClient_Update(t *testing.T) {
	api := newFakeAPI(item{1, "Algèbre"})
	c, _, _ := setup(t, api, "tok")

	updated, err := c.Update(context.Background(), "1", item{Title: "Algèbre linéaire"})
	require.NoError(t, err)
	assert.Equal(t, item{1, "Algèbre linéaire"}, updated)
	assert.Equal(t, []item{{1, "Algèbre linéaire"}}, c.Items())

	_, err = c.Update(context.Background(), "9", item{Title: "?"})
	assert.True(t, core.IsNotFound(err))
}

func TestClient_Get(t *testing.T) {
	api := newFakeAPI(item{1, "Algèbre"})
	c, _, _ := setup(t, api, "tok")

	got, err := c.Get(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, item{1, "Algèbre"}, got)
	assert.Empty(t, c.Items(), "list untouched")
}

func TestClient_Delete_optimistic(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI(item{1, "Algèbre"}, item{2, "Chimie"})
	c, _, notifier := setup(t, api, "tok")
	_, err := c.Fetch(ctx)
	require.NoError(t, err)

	gate := make(chan struct{})
	api.locked(func(f *fakeAPI) { f.listGate = gate })

	done := make(chan error)
	go func() { done <- c.Delete(ctx, "1") }()

	// the refetch is blocked: the item must already be gone
	assert.Eventually(t, func() bool {
		items := c.Items()
		return len(items) == 1 && items[0].ID == 2
	}, 2*time.Second, 5*time.Millisecond)

	close(gate)
	require.NoError(t, <-done)
	assert.Equal(t, []item{{2, "Chimie"}}, c.Items())
	assert.Equal(t, []string{"Supprimé avec succès"}, notifier.success)
}

func TestClient_Delete_rollback(t *testing.T) {
	ctx := context.Background()

	t.Run("delete fails", func(t *testing.T) {
		api := newFakeAPI(item{1, "Algèbre"}, item{2, "Chimie"})
		c, _, notifier := setup(t, api, "tok")
		_, err := c.Fetch(ctx)
		require.NoError(t, err)

		err = c.Delete(ctx, "7")
		assert.True(t, core.IsNotFound(err))
		assert.Len(t, c.Items(), 2)
		assert.Equal(t, []string{"Erreur HTTP: 404"}, notifier.errors)
	})

	t.Run("refetch fails", func(t *testing.T) {
		api := newFakeAPI(item{1, "Algèbre"}, item{2, "Chimie"})
		c, _, notifier := setup(t, api, "tok")
		_, err := c.Fetch(ctx)
		require.NoError(t, err)

		api.locked(func(f *fakeAPI) { f.failList = true })

		err = c.Delete(ctx, "1")
		assert.True(t, core.IsHTTPStatus(err, http.StatusInternalServerError))
		assert.Equal(t, []item{{1, "Algèbre"}, {2, "Chimie"}}, c.Items(), "previous list restored")
		assert.Equal(t, []string{"Erreur HTTP: 500"}, notifier.errors)
	})
}

func TestClient_Delete_force(t *testing.T) {
	api := newFakeAPI(item{1, "Algèbre"})
	c, _, _ := setup(t, api, "tok")

	require.NoError(t, c.Delete(context.Background(), "1", DeleteOptions{Force: true}))
	api.locked(func(f *fakeAPI) { assert.JSONEq(t, `{"force": true}`, string(f.lastBody)) })

	api = newFakeAPI(item{1, "Algèbre"})
	c, _, _ = setup(t, api, "tok")
	require.NoError(t, c.Delete(context.Background(), "1"))
	api.locked(func(f *fakeAPI) { assert.Empty(t, f.lastBody) })
}

func TestClient_Fetch_cancelled(t *testing.T) {
	api := newFakeAPI(item{1, "Algèbre"})
	c, _, notifier := setup(t, api, "tok")
	_, err := c.Fetch(context.Background())
	require.NoError(t, err)

	gate := make(chan struct{})
	defer close(gate)
	api.locked(func(f *fakeAPI) {
		f.listBody = `[]`
		f.listGate = gate
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.Fetch(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, []item{{1, "Algèbre"}}, c.Items(), "state untouched")
	assert.Empty(t, notifier.errors)
}

func TestNewTransport_validation(t *testing.T) {
	_, err := NewTransport(TransportOptions{})
	assert.Error(t, err)
}
