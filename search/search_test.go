package search

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"hearth/auth"
	"hearth/models"
)

func setupTestDB() *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		panic("failed to connect database")
	}

	db.AutoMigrate(&models.User{}, &SuggestionTerm{})
	return db
}

func setupTestRouter(db *gorm.DB, index *Index) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	store := cookie.NewStore([]byte("secret"))
	router.Use(sessions.Sessions("test-session", store))

	authModule := auth.NewAuthModule(db)
	authModule.RegisterRoutes(router)

	searchModule := NewSearchModule(db, authModule, index)
	searchModule.RegisterRoutes(router)
	return router
}

// chScratchDir moves the test into a throwaway working directory so the
// file cache never leaves entries behind in the package tree.
func chScratchDir(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(wd) })
}

func authCookies(t *testing.T, router *gin.Engine) []*http.Cookie {
	t.Setenv("ADMIN_BYPASS", "1")
	t.Setenv("ADMIN_USER", "admin")
	t.Setenv("ADMIN_PASSWORD", "admin")

	req, _ := http.NewRequest("POST", "/login", strings.NewReader(`{"email":"admin","password":"admin"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", w.Code, w.Body.String())
	}
	return w.Result().Cookies()
}

func doRequest(router *gin.Engine, cookies []*http.Cookie, method, path string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(method, path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func suggestionsFrom(t *testing.T, w *httptest.ResponseRecorder) []string {
	var suggestions []string
	if err := json.Unmarshal(w.Body.Bytes(), &suggestions); err != nil {
		t.Fatalf("failed to decode response %q: %v", w.Body.String(), err)
	}
	return suggestions
}

func seedTerm(db *gorm.DB, term string, updatedAt time.Time) {
	db.Create(&SuggestionTerm{Term: term, UpdatedAt: updatedAt})
}

func TestAutocompleteRequiresAuth(t *testing.T) {
	db := setupTestDB()
	router := setupTestRouter(db, &Index{db: db})

	w := doRequest(router, nil, "GET", "/autocomplete?q=flour")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAutocompleteShortQuery(t *testing.T) {
	chScratchDir(t)
	db := setupTestDB()
	router := setupTestRouter(db, &Index{db: db})
	cookies := authCookies(t, router)

	seedTerm(db, "flour", time.Now())

	for _, q := range []string{"", "f"} {
		w := doRequest(router, cookies, "GET", "/autocomplete?q="+q)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, suggestionsFrom(t, w))
	}
}

func TestAutocompletePrefixMatch(t *testing.T) {
	chScratchDir(t)
	db := setupTestDB()
	router := setupTestRouter(db, &Index{db: db})
	cookies := authCookies(t, router)

	seedTerm(db, "flour", time.Now().Add(-time.Hour))
	seedTerm(db, "flatbread", time.Now())
	seedTerm(db, "sugar", time.Now())

	w := doRequest(router, cookies, "GET", "/autocomplete?q=fl")
	assert.Equal(t, http.StatusOK, w.Code)

	// Most recently touched first, non-matching terms excluded.
	assert.Equal(t, []string{"flatbread", "flour"}, suggestionsFrom(t, w))
}

func TestAutocompleteCaseInsensitive(t *testing.T) {
	chScratchDir(t)
	db := setupTestDB()
	router := setupTestRouter(db, &Index{db: db})
	cookies := authCookies(t, router)

	seedTerm(db, "flour", time.Now())

	w := doRequest(router, cookies, "GET", "/autocomplete?q=FL")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"flour"}, suggestionsFrom(t, w))
}

func TestAutocompleteLimit(t *testing.T) {
	chScratchDir(t)
	db := setupTestDB()
	router := setupTestRouter(db, &Index{db: db})
	cookies := authCookies(t, router)

	for i := 0; i < 15; i++ {
		seedTerm(db, fmt.Sprintf("flour-%02d", i), time.Now())
	}

	w := doRequest(router, cookies, "GET", "/autocomplete?q=flour")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, suggestionsFrom(t, w), maxSuggestions)
}

func TestAutocompleteNilIndex(t *testing.T) {
	chScratchDir(t)
	db := setupTestDB()
	router := setupTestRouter(db, nil)
	cookies := authCookies(t, router)

	w := doRequest(router, cookies, "GET", "/autocomplete?q=flour")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, suggestionsFrom(t, w))
}

func TestAutocompleteCacheHit(t *testing.T) {
	chScratchDir(t)
	db := setupTestDB()
	router := setupTestRouter(db, &Index{db: db})
	cookies := authCookies(t, router)

	seedTerm(db, "flour", time.Now())

	w := doRequest(router, cookies, "GET", "/autocomplete?q=flour")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("X-Cache"))

	w = doRequest(router, cookies, "GET", "/autocomplete?q=flour")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))
	assert.Equal(t, []string{"flour"}, suggestionsFrom(t, w))
}

func TestRecordCleansTerms(t *testing.T) {
	db := setupTestDB()
	index := &Index{db: db}

	index.Record("  Flour ", "x", "Brown Sugar")

	// Writes are asynchronous; poll until they land.
	deadline := time.Now().Add(2 * time.Second)
	var count int64
	for time.Now().Before(deadline) {
		db.Model(&SuggestionTerm{}).Count(&count)
		if count == 2 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	assert.Equal(t, int64(2), count)

	var terms []string
	db.Model(&SuggestionTerm{}).Order("term ASC").Pluck("term", &terms)
	assert.Equal(t, []string{"brown sugar", "flour"}, terms)
}

func TestForgetRemovesTerms(t *testing.T) {
	db := setupTestDB()
	index := &Index{db: db}

	seedTerm(db, "flour", time.Now())
	seedTerm(db, "sugar", time.Now())

	index.Forget("Flour")

	deadline := time.Now().Add(2 * time.Second)
	var count int64
	for time.Now().Before(deadline) {
		db.Model(&SuggestionTerm{}).Count(&count)
		if count == 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	assert.Equal(t, int64(1), count)

	var remaining SuggestionTerm
	db.First(&remaining)
	assert.Equal(t, "sugar", remaining.Term)
}

func TestNilIndexIsSafe(t *testing.T) {
	var index *Index

	index.Record("flour")
	index.Forget("flour")

	terms, err := index.Suggest("fl", 10)
	assert.NoError(t, err)
	assert.Nil(t, terms)
}
