package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/wuwenbin0122/recipebox/internal/audit"
	"github.com/wuwenbin0122/recipebox/internal/auth"
	"github.com/wuwenbin0122/recipebox/internal/db"
	"github.com/wuwenbin0122/recipebox/internal/models"
	"github.com/wuwenbin0122/recipebox/internal/utils"
)

var fiftyChars = strings.Repeat("x", 50)

type testEnv struct {
	router   *gin.Engine
	store    *db.MemoryStore
	recorder *audit.Memory
}

func setupTestRouter(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := db.NewMemoryStore()
	recorder := &audit.Memory{}
	sessions := auth.NewSessionManager(auth.NewMemoryBindings(), time.Hour)
	handler := NewHandler(store, auth.NewHasher(bcrypt.MinCost), sessions, recorder, nil)

	router := gin.New()
	router.Use(auth.CookieSessions(utils.SessionConfig{
		Secret:     "test-secret",
		CookieName: "recipebox_session",
		MaxAge:     time.Hour,
	}))
	handler.RegisterRoutes(router)

	return &testEnv{router: router, store: store, recorder: recorder}
}

// client replays the cookies the server sets, like a browser would.
type client struct {
	t       *testing.T
	env     *testEnv
	cookies map[string]*http.Cookie
}

func (e *testEnv) newClient(t *testing.T) *client {
	return &client{t: t, env: e, cookies: make(map[string]*http.Cookie)}
}

func (cl *client) do(method, path string, body any) *httptest.ResponseRecorder {
	cl.t.Helper()

	var req *http.Request
	if body != nil {
		req = newJSONRequest(cl.t, method, path, body)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for _, cookie := range cl.cookies {
		req.AddCookie(cookie)
	}

	rec := httptest.NewRecorder()
	cl.env.router.ServeHTTP(rec, req)

	for _, cookie := range rec.Result().Cookies() {
		cl.cookies[cookie.Name] = cookie
	}
	return rec
}

func (cl *client) signup(username, password string) *httptest.ResponseRecorder {
	cl.t.Helper()
	return cl.do(http.MethodPost, "/signup", map[string]any{
		"username": username,
		"password": password,
	})
}

func (cl *client) createRecipe(title, instructions string, minutes int) *httptest.ResponseRecorder {
	cl.t.Helper()
	return cl.do(http.MethodPost, "/recipes", map[string]any{
		"title":               title,
		"instructions":        instructions,
		"minutes_to_complete": minutes,
	})
}

func TestSignupStartsSession(t *testing.T) {
	env := setupTestRouter(t)
	cl := env.newClient(t)

	rec := cl.do(http.MethodPost, "/signup", map[string]any{
		"username":  "alice",
		"password":  "s3cret!",
		"image_url": "https://example.com/alice.png",
		"bio":       "home cook",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var created map[string]any
	decodeBody(t, rec.Body.Bytes(), &created)
	assertUserShape(t, created)
	if created["username"] != "alice" || created["image_url"] != "https://example.com/alice.png" || created["bio"] != "home cook" {
		t.Fatalf("unexpected signup response: %v", created)
	}

	rec = cl.do(http.MethodGet, "/check_session", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var current map[string]any
	decodeBody(t, rec.Body.Bytes(), &current)
	if current["id"] != created["id"] {
		t.Fatalf("expected session user %v, got %v", created["id"], current["id"])
	}
}

func TestSignupOptionalFieldsAreNull(t *testing.T) {
	env := setupTestRouter(t)

	rec := env.newClient(t).signup("bob", "pw")
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", rec.Code)
	}

	var created map[string]any
	decodeBody(t, rec.Body.Bytes(), &created)
	assertUserShape(t, created)
	if created["image_url"] != nil || created["bio"] != nil {
		t.Fatalf("expected null optional fields, got %v", created)
	}
}

func TestSignupDuplicateUsername(t *testing.T) {
	env := setupTestRouter(t)

	if rec := env.newClient(t).signup("alice", "first"); rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", rec.Code)
	}

	second := env.newClient(t)
	rec := second.signup("alice", "second")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d", rec.Code)
	}
	assertErrors(t, rec, "Username must be unique")

	if got := env.store.CountUsers(); got != 1 {
		t.Fatalf("expected 1 user row, got %d", got)
	}

	// the losing client must not have gained a session
	if rec := second.do(http.MethodGet, "/check_session", nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
}

func TestSignupMissingFields(t *testing.T) {
	env := setupTestRouter(t)

	rec := env.newClient(t).do(http.MethodPost, "/signup", map[string]any{"password": "pw"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422 for missing username, got %d", rec.Code)
	}
	assertErrors(t, rec, msgUsernameUnique)

	rec = env.newClient(t).do(http.MethodPost, "/signup", map[string]any{"username": "carol"})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422 for missing password, got %d", rec.Code)
	}
	assertErrors(t, rec, msgPasswordRequired)

	req := httptest.NewRequest(http.MethodPost, "/signup", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422 for malformed body, got %d", rec.Code)
	}

	if got := env.store.CountUsers(); got != 0 {
		t.Fatalf("expected no users, got %d", got)
	}
}

func TestSignupAcceptsEmptyStrings(t *testing.T) {
	env := setupTestRouter(t)

	cl := env.newClient(t)
	rec := cl.signup("alice", "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201 for empty password, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = cl.do(http.MethodPost, "/login", map[string]string{"username": "alice", "password": ""})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected empty password to log in, got %d", rec.Code)
	}

	rec = env.newClient(t).signup("", "pw")
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201 for empty username, got %d: %s", rec.Code, rec.Body.String())
	}
	var created map[string]any
	decodeBody(t, rec.Body.Bytes(), &created)
	if created["username"] != "" {
		t.Fatalf("expected empty username, got %v", created["username"])
	}

	rec = env.newClient(t).signup("", "other")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422 for second empty username, got %d", rec.Code)
	}
	assertErrors(t, rec, msgUsernameUnique)

	if got := env.store.CountUsers(); got != 2 {
		t.Fatalf("expected 2 users, got %d", got)
	}
}

func TestLogin(t *testing.T) {
	env := setupTestRouter(t)
	if rec := env.newClient(t).signup("alice", "s3cret!"); rec.Code != http.StatusCreated {
		t.Fatalf("signup failed: %d", rec.Code)
	}

	cl := env.newClient(t)
	rec := cl.do(http.MethodPost, "/login", map[string]string{"username": "alice", "password": "s3cret!"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	var user map[string]any
	decodeBody(t, rec.Body.Bytes(), &user)
	assertUserShape(t, user)

	if rec := cl.do(http.MethodGet, "/check_session", nil); rec.Code != http.StatusOK {
		t.Fatalf("expected login to establish a session, got %d", rec.Code)
	}

	wrongPassword := env.newClient(t).do(http.MethodPost, "/login", map[string]string{"username": "alice", "password": "nope"})
	unknownUser := env.newClient(t).do(http.MethodPost, "/login", map[string]string{"username": "mallory", "password": "s3cret!"})

	for _, rec := range []*httptest.ResponseRecorder{wrongPassword, unknownUser} {
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected status 401, got %d", rec.Code)
		}
	}
	if wrongPassword.Body.String() != unknownUser.Body.String() {
		t.Fatalf("expected identical failure bodies, got %q and %q", wrongPassword.Body.String(), unknownUser.Body.String())
	}
	assertUnauthorized(t, wrongPassword)
}

func TestLogout(t *testing.T) {
	env := setupTestRouter(t)

	anonymous := env.newClient(t)
	rec := anonymous.do(http.MethodDelete, "/logout", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
	assertUnauthorized(t, rec)

	cl := env.newClient(t)
	cl.signup("alice", "pw")
	rec = cl.do(http.MethodPost, "/login", map[string]string{"username": "alice", "password": "pw"})
	if rec.Code != http.StatusOK {
		t.Fatalf("login failed: %d", rec.Code)
	}

	rec = cl.do(http.MethodDelete, "/logout", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Fatalf("expected empty body, got %q", rec.Body.String())
	}

	rec = cl.do(http.MethodGet, "/check_session", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401 after logout, got %d", rec.Code)
	}
	assertUnauthorized(t, rec)
}

func TestRecipesRequireSession(t *testing.T) {
	env := setupTestRouter(t)
	cl := env.newClient(t)

	rec := cl.do(http.MethodGet, "/recipes", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
	assertUnauthorized(t, rec)

	rec = cl.createRecipe("Soup", fiftyChars, 10)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", rec.Code)
	}
	assertUnauthorized(t, rec)

	if got := env.store.CountRecipes(); got != 0 {
		t.Fatalf("expected no recipes, got %d", got)
	}
}

func TestCreateRecipeValidation(t *testing.T) {
	env := setupTestRouter(t)
	cl := env.newClient(t)
	cl.signup("alice", "pw")

	invalid := []map[string]any{
		{"title": "Soup", "instructions": "  " + fiftyChars[:49] + "  ", "minutes_to_complete": 10},
		{"title": "   ", "instructions": fiftyChars, "minutes_to_complete": 10},
		{"instructions": fiftyChars, "minutes_to_complete": 10},
		{"title": "Soup", "instructions": fiftyChars},
		{"title": "Soup", "instructions": fiftyChars, "minutes_to_complete": "ten"},
	}
	for _, body := range invalid {
		rec := cl.do(http.MethodPost, "/recipes", body)
		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected status 422 for %v, got %d", body, rec.Code)
		}
		assertErrors(t, rec, "validation errors")
	}

	if got := env.store.CountRecipes(); got != 0 {
		t.Fatalf("expected no recipes after rejected creates, got %d", got)
	}

	rec := cl.createRecipe("Soup", fiftyChars, 10)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201 for exactly 50 characters, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCreatedRecipeBelongsToSessionUser(t *testing.T) {
	env := setupTestRouter(t)
	cl := env.newClient(t)

	rec := cl.signup("alice", "pw")
	var user map[string]any
	decodeBody(t, rec.Body.Bytes(), &user)

	rec = cl.createRecipe("Pancakes", fiftyChars+" and then flip them.", 20)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d", rec.Code)
	}

	var recipe map[string]any
	decodeBody(t, rec.Body.Bytes(), &recipe)
	if recipe["title"] != "Pancakes" || recipe["minutes_to_complete"] != float64(20) {
		t.Fatalf("unexpected recipe response: %v", recipe)
	}

	owner, ok := recipe["user"].(map[string]any)
	if !ok {
		t.Fatalf("expected nested user object, got %v", recipe["user"])
	}
	assertUserShape(t, owner)
	if owner["id"] != user["id"] {
		t.Fatalf("expected owner %v, got %v", user["id"], owner["id"])
	}
}

func TestListRecipesAcrossUsers(t *testing.T) {
	env := setupTestRouter(t)

	alice := env.newClient(t)
	alice.signup("alice", "pw")
	alice.createRecipe("Alice's stew", fiftyChars, 90)

	bob := env.newClient(t)
	bob.signup("bob", "pw")
	bob.createRecipe("Bob's salad", fiftyChars, 5)

	rec := alice.do(http.MethodGet, "/recipes", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	var recipes []map[string]any
	decodeBody(t, rec.Body.Bytes(), &recipes)
	if len(recipes) != 2 {
		t.Fatalf("expected 2 recipes, got %d", len(recipes))
	}

	owners := map[string]bool{}
	for _, recipe := range recipes {
		owner, ok := recipe["user"].(map[string]any)
		if !ok || owner == nil {
			t.Fatalf("expected non-null user on %v", recipe)
		}
		assertUserShape(t, owner)
		owners[owner["username"].(string)] = true
	}
	if !owners["alice"] || !owners["bob"] {
		t.Fatalf("expected recipes from both users, got %v", owners)
	}
}

func TestListRecipesEmptyIsArray(t *testing.T) {
	env := setupTestRouter(t)
	cl := env.newClient(t)
	cl.signup("alice", "pw")

	rec := cl.do(http.MethodGet, "/recipes", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("expected empty array, got %s", rec.Body.String())
	}
}

type failingListStore struct {
	*db.MemoryStore
}

func (failingListStore) ListRecipes(context.Context) ([]models.Recipe, error) {
	return nil, errors.New("connection reset")
}

func TestListRecipesStoreFailure(t *testing.T) {
	gin.SetMode(gin.TestMode)

	store := failingListStore{MemoryStore: db.NewMemoryStore()}
	sessions := auth.NewSessionManager(auth.NewMemoryBindings(), time.Hour)
	handler := NewHandler(store, auth.NewHasher(bcrypt.MinCost), sessions, nil, nil)

	router := gin.New()
	router.Use(auth.CookieSessions(utils.SessionConfig{Secret: "test-secret", CookieName: "recipebox_session", MaxAge: time.Hour}))
	handler.RegisterRoutes(router)

	cl := (&testEnv{router: router, store: store.MemoryStore}).newClient(t)
	if rec := cl.signup("alice", "pw"); rec.Code != http.StatusCreated {
		t.Fatalf("signup failed: %d", rec.Code)
	}

	rec := cl.do(http.MethodGet, "/recipes", nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d: %s", rec.Code, rec.Body.String())
	}
	assertErrors(t, rec, msgListFailed)
}

func TestStaleSessionIsRejected(t *testing.T) {
	env := setupTestRouter(t)
	cl := env.newClient(t)

	rec := cl.signup("ghost", "pw")
	var user map[string]any
	decodeBody(t, rec.Body.Bytes(), &user)

	if err := env.store.DeleteUser(context.Background(), int64(user["id"].(float64))); err != nil {
		t.Fatalf("delete user: %v", err)
	}

	rec = cl.createRecipe("Haunted soup", fiftyChars, 10)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401 for recipe by deleted user, got %d", rec.Code)
	}

	rec = cl.do(http.MethodGet, "/check_session", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401 for deleted user, got %d", rec.Code)
	}
	if env.store.CountRecipes() != 0 {
		t.Fatalf("expected no recipe rows")
	}
}

func TestAuditTrail(t *testing.T) {
	env := setupTestRouter(t)
	cl := env.newClient(t)

	cl.signup("alice", "pw")
	cl.do(http.MethodPost, "/login", map[string]string{"username": "alice", "password": "bad"})
	cl.createRecipe("Soup", fiftyChars, 10)
	cl.do(http.MethodDelete, "/logout", nil)

	var kinds []audit.Kind
	for _, event := range env.recorder.Events() {
		kinds = append(kinds, event.Kind)
	}

	want := []audit.Kind{audit.KindSignup, audit.KindLoginFailed, audit.KindRecipeCreated, audit.KindLogout}
	if len(kinds) != len(want) {
		t.Fatalf("expected events %v, got %v", want, kinds)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Fatalf("expected events %v, got %v", want, kinds)
		}
	}
}

func assertUserShape(t *testing.T, user map[string]any) {
	t.Helper()
	for _, key := range []string{"id", "username", "image_url", "bio"} {
		if _, ok := user[key]; !ok {
			t.Fatalf("expected key %q in user %v", key, user)
		}
	}
	for key := range user {
		if strings.Contains(strings.ToLower(key), "password") {
			t.Fatalf("user payload leaks %q", key)
		}
	}
	if len(user) != 4 {
		t.Fatalf("expected exactly 4 user fields, got %v", user)
	}
}

func assertErrors(t *testing.T, rec *httptest.ResponseRecorder, want string) {
	t.Helper()
	var body struct {
		Errors []string `json:"errors"`
	}
	decodeBody(t, rec.Body.Bytes(), &body)
	if len(body.Errors) != 1 || body.Errors[0] != want {
		t.Fatalf("expected errors [%q], got %v", want, body.Errors)
	}
}

func assertUnauthorized(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()
	var body map[string]string
	decodeBody(t, rec.Body.Bytes(), &body)
	if body["error"] != "401 Unauthorized" || len(body) != 1 {
		t.Fatalf("expected 401 Unauthorized body, got %v", body)
	}
}

func newJSONRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal body: %v", err)
	}

	req, err := http.NewRequest(method, path, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeBody(t *testing.T, data []byte, out any) {
	t.Helper()
	if err := json.Unmarshal(data, out); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}
