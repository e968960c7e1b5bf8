package folders

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
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

	db.AutoMigrate(&models.User{}, &models.Folder{}, &models.List{}, &models.ListItem{},
		&models.Recipe{}, &models.RecipeBlock{}, &models.Ingredient{},
		&models.RecipeIngredient{}, &models.Tag{}, &models.RecipeTag{})
	return db
}

func setupTestRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	store := cookie.NewStore([]byte("secret"))
	router.Use(sessions.Sessions("test-session", store))

	authModule := auth.NewAuthModule(db)
	authModule.RegisterRoutes(router)

	foldersModule := NewFoldersModule(db, authModule)
	foldersModule.RegisterRoutes(router)
	return router
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

func doRequest(router *gin.Engine, cookies []*http.Cookie, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req, _ = http.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req, _ = http.NewRequest(method, path, nil)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to decode response %q: %v", w.Body.String(), err)
	}
}

func createTestFolder(db *gorm.DB, name, folderType string, parentID *int) *models.Folder {
	folder := &models.Folder{
		Name:      name,
		Type:      folderType,
		ParentID:  parentID,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	db.Create(folder)
	return folder
}

func TestRequireAuthOnFolders(t *testing.T) {
	db := setupTestDB()
	router := setupTestRouter(db)

	w := doRequest(router, nil, "GET", "/folders", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCreateFolderValidation(t *testing.T) {
	db := setupTestDB()
	router := setupTestRouter(db)
	cookies := authCookies(t, router)

	w := doRequest(router, cookies, "POST", "/folders", `{"name":"  ","type":"recipe"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "name")

	w = doRequest(router, cookies, "POST", "/folders", `{"name":"Baking","type":"bogus"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "type")

	w = doRequest(router, cookies, "POST", "/folders", `{"name":"Baking","type":"recipe"}`)
	assert.Equal(t, http.StatusCreated, w.Code)

	var count int64
	db.Model(&models.Folder{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestCreateFolderParentTypeMismatch(t *testing.T) {
	db := setupTestDB()
	router := setupTestRouter(db)
	cookies := authCookies(t, router)

	parent := createTestFolder(db, "Errands", models.FolderTypeChecklist, nil)

	w := doRequest(router, cookies, "POST", "/folders",
		`{"name":"Baking","type":"recipe","parent_id":`+itoa(parent.ID)+`}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListFoldersOrderedByName(t *testing.T) {
	db := setupTestDB()
	router := setupTestRouter(db)
	cookies := authCookies(t, router)

	createTestFolder(db, "Zucchini", models.FolderTypeRecipe, nil)
	createTestFolder(db, "Apples", models.FolderTypeRecipe, nil)
	createTestFolder(db, "Chores", models.FolderTypeChecklist, nil)

	w := doRequest(router, cookies, "GET", "/folders?type=recipe", "")
	assert.Equal(t, http.StatusOK, w.Code)

	var folders []models.Folder
	decodeJSON(t, w, &folders)
	assert.Len(t, folders, 2)
	assert.Equal(t, "Apples", folders[0].Name)
	assert.Equal(t, "Zucchini", folders[1].Name)
}

func TestRenameFolderBlankNameIsNoop(t *testing.T) {
	db := setupTestDB()
	router := setupTestRouter(db)
	cookies := authCookies(t, router)

	folder := createTestFolder(db, "Baking", models.FolderTypeRecipe, nil)

	w := doRequest(router, cookies, "PUT", "/folders/"+itoa(folder.ID), `{"name":"   "}`)
	assert.Equal(t, http.StatusOK, w.Code)

	var reloaded models.Folder
	db.First(&reloaded, folder.ID)
	assert.Equal(t, "Baking", reloaded.Name)
}

func TestFolderPathProperty(t *testing.T) {
	db := setupTestDB()
	router := setupTestRouter(db)
	cookies := authCookies(t, router)

	root := createTestFolder(db, "Root", models.FolderTypeProject, nil)
	mid := createTestFolder(db, "Mid", models.FolderTypeProject, &root.ID)
	leaf := createTestFolder(db, "Leaf", models.FolderTypeProject, &mid.ID)

	w := doRequest(router, cookies, "GET", "/folders/"+itoa(leaf.ID)+"/path", "")
	assert.Equal(t, http.StatusOK, w.Code)

	var path []models.Folder
	decodeJSON(t, w, &path)
	assert.Len(t, path, 3)
	assert.Nil(t, path[0].ParentID)
	assert.Equal(t, leaf.ID, path[2].ID)

	seen := map[int]bool{}
	for _, f := range path {
		assert.False(t, seen[f.ID], "path must not repeat ids")
		seen[f.ID] = true
	}
}

func TestFolderPathTerminatesOnCycle(t *testing.T) {
	db := setupTestDB()
	router := setupTestRouter(db)
	cookies := authCookies(t, router)

	a := createTestFolder(db, "A", models.FolderTypeProject, nil)
	b := createTestFolder(db, "B", models.FolderTypeProject, &a.ID)
	// Corrupt the table into a cycle directly.
	db.Model(&models.Folder{}).Where("id = ?", a.ID).Update("parent_id", b.ID)

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		done <- doRequest(router, cookies, "GET", "/folders/"+itoa(b.ID)+"/path", "")
	}()

	select {
	case w := <-done:
		assert.Equal(t, http.StatusOK, w.Code)
		var path []models.Folder
		decodeJSON(t, w, &path)
		seen := map[int]bool{}
		for _, f := range path {
			assert.False(t, seen[f.ID])
			seen[f.ID] = true
		}
	case <-time.After(5 * time.Second):
		t.Fatal("folder path walk did not terminate on a cyclic tree")
	}
}

func TestMoveFolderIntoDescendantRejected(t *testing.T) {
	db := setupTestDB()
	router := setupTestRouter(db)
	cookies := authCookies(t, router)

	a := createTestFolder(db, "A", models.FolderTypeProject, nil)
	b := createTestFolder(db, "B", models.FolderTypeProject, &a.ID)
	c := createTestFolder(db, "C", models.FolderTypeProject, &b.ID)

	// A under its own grandchild C must be rejected.
	w := doRequest(router, cookies, "PUT", "/folders/"+itoa(a.ID), `{"parent_id":`+itoa(c.ID)+`}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// A under itself must be rejected.
	w = doRequest(router, cookies, "PUT", "/folders/"+itoa(a.ID), `{"parent_id":`+itoa(a.ID)+`}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var reloaded models.Folder
	db.First(&reloaded, a.ID)
	assert.Nil(t, reloaded.ParentID)

	// Moving C up under A is fine.
	w = doRequest(router, cookies, "PUT", "/folders/"+itoa(c.ID), `{"parent_id":`+itoa(a.ID)+`}`)
	assert.Equal(t, http.StatusOK, w.Code)
	reloaded = models.Folder{}
	db.First(&reloaded, c.ID)
	assert.Equal(t, a.ID, *reloaded.ParentID)
}

func TestMoveFolderToRoot(t *testing.T) {
	db := setupTestDB()
	router := setupTestRouter(db)
	cookies := authCookies(t, router)

	a := createTestFolder(db, "A", models.FolderTypeProject, nil)
	b := createTestFolder(db, "B", models.FolderTypeProject, &a.ID)

	w := doRequest(router, cookies, "PUT", "/folders/"+itoa(b.ID), `{"parent_id":null}`)
	assert.Equal(t, http.StatusOK, w.Code)

	var reloaded models.Folder
	db.First(&reloaded, b.ID)
	assert.Nil(t, reloaded.ParentID)
}

func TestDeleteFolderCascades(t *testing.T) {
	db := setupTestDB()
	router := setupTestRouter(db)
	cookies := authCookies(t, router)

	root := createTestFolder(db, "Root", models.FolderTypeChecklist, nil)
	sub := createTestFolder(db, "Sub", models.FolderTypeChecklist, &root.ID)

	list := models.List{Kind: models.ListKindChecklist, Title: "Chores", FolderID: &sub.ID}
	db.Create(&list)
	db.Create(&models.ListItem{ListID: list.ID, Text: "Sweep", Position: 0})
	db.Create(&models.ListItem{ListID: list.ID, Text: "Mop", Position: 1})

	w := doRequest(router, cookies, "DELETE", "/folders/"+itoa(root.ID), "")
	assert.Equal(t, http.StatusOK, w.Code)

	var folderCount, listCount, itemCount int64
	db.Model(&models.Folder{}).Count(&folderCount)
	db.Model(&models.List{}).Count(&listCount)
	db.Model(&models.ListItem{}).Count(&itemCount)
	assert.Equal(t, int64(0), folderCount)
	assert.Equal(t, int64(0), listCount)
	assert.Equal(t, int64(0), itemCount, "no orphaned items may remain")
}

func TestMoveItemRecipe(t *testing.T) {
	db := setupTestDB()
	router := setupTestRouter(db)
	cookies := authCookies(t, router)

	folder := createTestFolder(db, "Baking", models.FolderTypeRecipe, nil)
	recipe := models.Recipe{Title: "Bread", CreatedAt: time.Now(), UpdatedAt: time.Now()}
	db.Create(&recipe)

	w := doRequest(router, cookies, "POST", "/move-item",
		`{"itemId":`+itoa(recipe.ID)+`,"itemType":"recipe","newFolderId":`+itoa(folder.ID)+`}`)
	assert.Equal(t, http.StatusOK, w.Code)

	var reloaded models.Recipe
	db.First(&reloaded, recipe.ID)
	assert.NotNil(t, reloaded.FolderID)
	assert.Equal(t, folder.ID, *reloaded.FolderID)
}

func TestMoveItemErrors(t *testing.T) {
	db := setupTestDB()
	router := setupTestRouter(db)
	cookies := authCookies(t, router)

	w := doRequest(router, cookies, "POST", "/move-item", `{"itemId":1,"itemType":"gadget"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(router, cookies, "POST", "/move-item", `{"itemId":999,"itemType":"recipe"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
