package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photomemo/internal/apperr"
	"photomemo/internal/auth"
	"photomemo/internal/blob"
	"photomemo/internal/config"
	"photomemo/internal/journal"
	"photomemo/internal/journal/memstore"
	"photomemo/internal/logging"
	"photomemo/internal/sequence"
)

// users is an in-memory auth.UserStore and journal.Directory.
type users struct {
	mu   sync.Mutex
	rows []auth.User
}

func (u *users) Create(_ context.Context, nu *auth.User) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, r := range u.rows {
		if r.Email == nu.Email {
			return apperr.Conflict("user already exists", nil)
		}
	}
	nu.ID = uint64(len(u.rows) + 1)
	u.rows = append(u.rows, *nu)
	return nil
}

func (u *users) find(match func(auth.User) bool) (*auth.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, r := range u.rows {
		if match(r) {
			return &r, nil
		}
	}
	return nil, apperr.NotFound("user")
}

func (u *users) ByID(_ context.Context, id uint64) (*auth.User, error) {
	return u.find(func(r auth.User) bool { return r.ID == id })
}

func (u *users) ByEmail(_ context.Context, email string) (*auth.User, error) {
	return u.find(func(r auth.User) bool { return r.Email == email })
}

func (u *users) Save(_ context.Context, su *auth.User) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.rows[su.ID-1] = *su
	return nil
}

func (u *users) List(_ context.Context) ([]auth.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]auth.User(nil), u.rows...), nil
}

func (u *users) DisplayNames(_ context.Context, ids []uint64) (map[uint64]string, error) {
	out := map[uint64]string{}
	for _, id := range ids {
		if r, err := u.ByID(context.Background(), id); err == nil {
			out[id] = r.DisplayName
		}
	}
	return out, nil
}

type presigner struct{}

func (presigner) PresignPut(_ context.Context, key, _ string) (string, error) {
	return "https://signed.example/" + key, nil
}

type api struct {
	t *testing.T
	h http.Handler
}

func newAPI(t *testing.T) *api {
	t.Helper()
	log := logging.Discard()
	us := &users{}
	jwtSvc := auth.NewJWT("test-secret")
	base := "https://cdn.example"
	return &api{t: t, h: NewRouter(config.Config{CORSAllowedOrigins: []string{"https://app.example"}}, Services{
		JWT:  jwtSvc,
		Auth: &auth.Service{Users: us, JWT: jwtSvc, Log: log},
		Journal: &journal.Service{
			Store:     memstore.New(),
			Seq:       sequence.NewMemory(),
			Users:     us,
			Log:       log,
			PublicURL: func(key string) string { return blob.PublicURL(base, key) },
		},
		Uploads: &blob.Uploads{Presigner: presigner{}, BaseURL: base},
		Log:     log,
	})}
}

func (a *api) do(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	r := httptest.NewRequest(method, path, &buf)
	r.Header.Set("Content-Type", "application/json")
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.h.ServeHTTP(rec, r)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// signup registers and logs in, returning the token.
func (a *api) signup(email, name string) string {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/api/auth/register", "", map[string]any{
		"email": email, "password": "password1", "displayName": name,
	})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = a.do(http.MethodPost, "/api/auth/login", "", map[string]any{"email": email, "password": "password1"})
	require.Equal(a.t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[struct {
		Token string `json:"token"`
	}](a.t, rec).Token
}

type memoResp struct {
	ID           uint64  `json:"id"`
	Title        string  `json:"title"`
	ImageURL     string  `json:"imageUrl"`
	ThumbnailURL *string `json:"thumbnailUrl"`
	GroupID      string  `json:"groupId"`
	GroupTitle   *string `json:"groupTitle"`
}

type batchResp struct {
	GroupID    string     `json:"groupId"`
	GroupTitle string     `json:"groupTitle"`
	Items      []memoResp `json:"items"`
}

type postResp struct {
	ID                uint64   `json:"id"`
	Number            int64    `json:"number"`
	Author            string   `json:"author"`
	Title             string   `json:"title"`
	FileURL           []string `json:"fileUrl"`
	ResolvedThumbnail *string  `json:"resolvedThumbnail"`
	GroupThumbnail    *string  `json:"groupThumbnail"`
	ViewCount         int      `json:"viewCount"`
	GroupID           string   `json:"groupId"`
}

type errResp struct {
	Error     string   `json:"error"`
	Message   string   `json:"message"`
	Fields    []string `json:"fields"`
	Retryable bool     `json:"retryable"`
}

func TestHealth(t *testing.T) {
	a := newAPI(t)
	rec := a.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestAuthFlow(t *testing.T) {
	a := newAPI(t)
	token := a.signup("mina@example.com", "Mina")

	rec := a.do(http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"displayName":"Mina"`)
	assert.NotContains(t, rec.Body.String(), "password")

	rec = a.do(http.MethodGet, "/api/auth/users", token, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(http.MethodPost, "/api/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cookie := rec.Result().Cookies()
	require.Len(t, cookie, 1)
	assert.Equal(t, auth.CookieName, cookie[0].Name)
	assert.Equal(t, -1, cookie[0].MaxAge)

	rec = a.do(http.MethodGet, "/api/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginSetsCookieAndLocks(t *testing.T) {
	a := newAPI(t)
	a.signup("mina@example.com", "Mina")

	rec := a.do(http.MethodPost, "/api/auth/login", "", map[string]any{"email": "mina@example.com", "password": "password1"})
	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.True(t, cookies[0].HttpOnly)

	for i := 1; i < auth.MaxLoginAttempts; i++ {
		rec = a.do(http.MethodPost, "/api/auth/login", "", map[string]any{"email": "mina@example.com", "password": "nope"})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		body := decode[struct {
			Remaining int `json:"remainingAttempts"`
		}](t, rec)
		assert.Equal(t, auth.MaxLoginAttempts-i, body.Remaining)
	}
	rec = a.do(http.MethodPost, "/api/auth/login", "", map[string]any{"email": "mina@example.com", "password": "nope"})
	assert.Equal(t, http.StatusLocked, rec.Code)
}

func TestRegisterErrors(t *testing.T) {
	a := newAPI(t)
	a.signup("mina@example.com", "Mina")

	rec := a.do(http.MethodPost, "/api/auth/register", "", map[string]any{
		"email": "mina@example.com", "password": "password1", "displayName": "Again",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.True(t, decode[errResp](t, rec).Retryable)

	rec = a.do(http.MethodPost, "/api/auth/register", "", map[string]any{"email": "bad"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[errResp](t, rec).Fields, "email")
}

func TestMemoAndPostFlow(t *testing.T) {
	a := newAPI(t)
	token := a.signup("mina@example.com", "Mina")

	rec := a.do(http.MethodPost, "/api/memo", token, map[string]any{
		"category":      "trip",
		"tripName":      "Jeju",
		"tripStartDate": "2026-04-01",
		"tripEndDate":   "2026-04-03T00:00:00Z",
		"day":           "day1",
		"items": []map[string]any{
			{"title": "airport", "imageUrl": "uploads/a.png"},
			{"title": "beach", "imageUrl": "uploads/b.png", "isThumbnail": true},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	batch := decode[batchResp](t, rec)
	require.Len(t, batch.Items, 2)
	assert.Equal(t, "Jeju", batch.GroupTitle)
	assert.Equal(t, "uploads/b.png", *batch.Items[1].ThumbnailURL)

	rec = a.do(http.MethodGet, "/api/memo/group/"+batch.GroupID, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	group := decode[struct {
		ThumbnailURL *string    `json:"thumbnailUrl"`
		Items        []memoResp `json:"items"`
	}](t, rec)
	assert.Equal(t, "uploads/b.png", *group.ThumbnailURL)
	assert.Equal(t, "airport", group.Items[0].Title)

	rec = a.do(http.MethodGet, "/api/posts?groupId="+batch.GroupID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	posts := decode[struct {
		Posts []postResp `json:"posts"`
	}](t, rec).Posts
	require.Len(t, posts, 2)
	assert.Equal(t, "Mina", posts[0].Author)
	assert.Equal(t, "https://cdn.example/uploads/b.png", *posts[0].ResolvedThumbnail)
	assert.Equal(t, []string{"https://cdn.example/uploads/b.png"}, posts[0].FileURL)
	assert.NotEqual(t, posts[0].Number, posts[1].Number)

	rec = a.do(http.MethodGet, "/api/posts/"+itoa(posts[1].ID), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[postResp](t, rec).ViewCount)

	rec = a.do(http.MethodPut, "/api/memo/group/"+batch.GroupID, token, map[string]any{
		"groupTitle": "Jeju 2026",
		"items":      []map[string]any{{"id": batch.Items[0].ID, "thumbnail": "set"}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	edited := decode[batchResp](t, rec)
	assert.Equal(t, "Jeju 2026", *edited.Items[0].GroupTitle)
	assert.Equal(t, "uploads/a.png", *edited.Items[0].ThumbnailURL)
	assert.Nil(t, edited.Items[1].ThumbnailURL)

	rec = a.do(http.MethodPut, "/api/memo/"+itoa(batch.Items[0].ID), token, map[string]any{"title": "terminal"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "terminal", decode[memoResp](t, rec).Title)

	rec = a.do(http.MethodGet, "/api/posts/my", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[struct {
		Posts []postResp `json:"posts"`
	}](t, rec).Posts, 2)

	rec = a.do(http.MethodDelete, "/api/memo/"+itoa(batch.Items[0].ID), token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = a.do(http.MethodGet, "/api/memo/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[batchResp](t, rec).Items, 1)

	rec = a.do(http.MethodDelete, "/api/memo/group/"+batch.GroupID, token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = a.do(http.MethodGet, "/api/memo/group/"+batch.GroupID, token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSingleItemCreate(t *testing.T) {
	a := newAPI(t)
	token := a.signup("mina@example.com", "Mina")

	rec := a.do(http.MethodPost, "/api/memo", token, map[string]any{
		"category": "daily",
		"date":     "2026-03-01",
		"title":    "coffee",
		"imageUrl": "uploads/c.png",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	batch := decode[batchResp](t, rec)
	require.Len(t, batch.Items, 1)
	assert.Equal(t, "2026-03-01", batch.GroupTitle)
}

func TestMemoErrors(t *testing.T) {
	a := newAPI(t)
	mina := a.signup("mina@example.com", "Mina")
	joon := a.signup("joon@example.com", "Joon")

	rec := a.do(http.MethodPost, "/api/memo", "", map[string]any{})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(http.MethodPost, "/api/memo", mina, map[string]any{
		"category": "daily",
		"items":    []map[string]any{{"title": "no image"}},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[errResp](t, rec)
	assert.Equal(t, "validation", body.Error)
	assert.Equal(t, []string{"items[0].imageUrl"}, body.Fields)
	assert.False(t, body.Retryable)

	rec = a.do(http.MethodPost, "/api/memo", mina, map[string]any{
		"category": "daily", "date": "March 1st", "title": "t", "imageUrl": "i.png",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(http.MethodPost, "/api/memo", mina, map[string]any{
		"category": "daily", "title": "t", "imageUrl": "i.png",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	batch := decode[batchResp](t, rec)

	rec = a.do(http.MethodGet, "/api/memo/group/"+batch.GroupID, joon, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(http.MethodDelete, "/api/memo/"+itoa(batch.Items[0].ID), joon, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(http.MethodDelete, "/api/memo/abc", mina, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(http.MethodGet, "/api/posts/abc", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = a.do(http.MethodGet, "/api/posts/9999", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPresign(t *testing.T) {
	a := newAPI(t)
	token := a.signup("mina@example.com", "Mina")

	rec := a.do(http.MethodPost, "/api/upload/presign", token, map[string]any{
		"filename": "beach.webp", "contentType": "image/webp",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	up := decode[blob.Upload](t, rec)
	assert.Regexp(t, `^uploads/\d+-[0-9a-f-]{36}\.webp$`, up.Key)
	assert.Equal(t, "https://signed.example/"+up.Key, up.URL)
	assert.Equal(t, "https://cdn.example/"+up.Key, up.PublicURL)

	rec = a.do(http.MethodPost, "/api/upload/presign", token, map[string]any{
		"filename": "run.exe", "contentType": "application/octet-stream",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(http.MethodPost, "/api/upload/presign", "", map[string]any{"filename": "a.png"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func itoa(id uint64) string {
	b, _ := json.Marshal(id)
	return string(b)
}
