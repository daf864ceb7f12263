package comics

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mangable/mangable/pkg/mangable/apikeys"
	"github.com/mangable/mangable/pkg/mangable/auth"
	"github.com/mangable/mangable/pkg/mangable/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var testSecret = []byte("test-secret")

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	models.AutoMigrate(db)
	return db
}

func createTestUser(t *testing.T, db *gorm.DB, username string, isAdmin bool) models.User {
	hash, _ := auth.HashPassword("password123")
	user := models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: hash,
		IsActive:     true,
		IsAdmin:      isAdmin,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	return user
}

func setupTestRouter(db *gorm.DB, issuer *auth.TokenIssuer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := NewHandler(db)

	v1 := r.Group("/v1")
	v1.Use(apikeys.RequireAuth(db, issuer))
	handler.RegisterRoutes(v1)

	return r
}

func getAuthHeader(t *testing.T, issuer *auth.TokenIssuer, user models.User) string {
	token, err := issuer.Issue(user.ID)
	if err != nil {
		t.Fatalf("Failed to issue token: %v", err)
	}
	return "Bearer " + token
}

func doJSON(router *gin.Engine, method, path, authHeader string, body interface{}) *httptest.ResponseRecorder {
	var buf *bytes.Buffer
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		buf = bytes.NewBuffer(jsonBody)
	} else {
		buf = bytes.NewBuffer(nil)
	}
	req, _ := http.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", authHeader)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestCreateComic(t *testing.T) {
	db := setupTestDB(t)
	issuer := auth.NewTokenIssuer(testSecret, time.Hour)
	router := setupTestRouter(db, issuer)
	user := createTestUser(t, db, "reader", false)

	year := 1986
	title := "Watchmen"
	series := "Watchmen"
	resp := doJSON(router, "POST", "/v1/comics", getAuthHeader(t, issuer, user), ComicRequest{
		Title:  &title,
		Series: &series,
		Year:   &year,
	})

	if resp.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}

	var comic models.Comic
	json.Unmarshal(resp.Body.Bytes(), &comic)

	if comic.Title != "Watchmen" {
		t.Errorf("Expected title Watchmen, got %q", comic.Title)
	}
	if comic.CreatedBy == nil || *comic.CreatedBy != user.ID {
		t.Error("Expected the resolved account to be stamped as creator")
	}
}

func TestCreateComicRequiresTitle(t *testing.T) {
	db := setupTestDB(t)
	issuer := auth.NewTokenIssuer(testSecret, time.Hour)
	router := setupTestRouter(db, issuer)
	user := createTestUser(t, db, "reader", false)

	resp := doJSON(router, "POST", "/v1/comics", getAuthHeader(t, issuer, user), ComicRequest{})
	if resp.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 without title, got %d", resp.Code)
	}
}

func TestCreateComicRequiresAuth(t *testing.T) {
	db := setupTestDB(t)
	issuer := auth.NewTokenIssuer(testSecret, time.Hour)
	router := setupTestRouter(db, issuer)

	title := "Watchmen"
	resp := doJSON(router, "POST", "/v1/comics", "", ComicRequest{Title: &title})
	if resp.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 without credentials, got %d", resp.Code)
	}
}

func seedComic(t *testing.T, db *gorm.DB, owner models.User, title string, mutate func(*models.Comic)) models.Comic {
	comic := models.Comic{Title: title, CreatedBy: &owner.ID}
	if mutate != nil {
		mutate(&comic)
	}
	if err := db.Create(&comic).Error; err != nil {
		t.Fatalf("Failed to seed comic: %v", err)
	}
	return comic
}

func TestGetComic(t *testing.T) {
	db := setupTestDB(t)
	issuer := auth.NewTokenIssuer(testSecret, time.Hour)
	router := setupTestRouter(db, issuer)
	user := createTestUser(t, db, "reader", false)
	comic := seedComic(t, db, user, "Saga", nil)

	resp := doJSON(router, "GET", "/v1/comics/"+comic.ID.String(), getAuthHeader(t, issuer, user), nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.Code)
	}

	resp = doJSON(router, "GET", "/v1/comics/"+uuid.New().String(), getAuthHeader(t, issuer, user), nil)
	if resp.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for missing comic, got %d", resp.Code)
	}

	resp = doJSON(router, "GET", "/v1/comics/not-a-uuid", getAuthHeader(t, issuer, user), nil)
	if resp.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for malformed ID, got %d", resp.Code)
	}
}

func TestUpdateComic(t *testing.T) {
	db := setupTestDB(t)
	issuer := auth.NewTokenIssuer(testSecret, time.Hour)
	router := setupTestRouter(db, issuer)
	user := createTestUser(t, db, "reader", false)
	year := 1986
	comic := seedComic(t, db, user, "Watchmen", func(c *models.Comic) {
		c.Year = &year
		c.Writer = "Alan Moore"
	})

	// Only fields present in the body change
	newWriter := "Moore, Alan"
	resp := doJSON(router, "PATCH", "/v1/comics/"+comic.ID.String(), getAuthHeader(t, issuer, user), ComicRequest{
		Writer: &newWriter,
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var updated models.Comic
	json.Unmarshal(resp.Body.Bytes(), &updated)
	if updated.Writer != "Moore, Alan" {
		t.Errorf("Expected writer updated, got %q", updated.Writer)
	}
	if updated.Title != "Watchmen" {
		t.Errorf("Title should be untouched, got %q", updated.Title)
	}
	if updated.Year == nil || *updated.Year != 1986 {
		t.Error("Year should be untouched")
	}
}

func TestUpdateComicOwnership(t *testing.T) {
	db := setupTestDB(t)
	issuer := auth.NewTokenIssuer(testSecret, time.Hour)
	router := setupTestRouter(db, issuer)
	owner := createTestUser(t, db, "owner", false)
	other := createTestUser(t, db, "other", false)
	admin := createTestUser(t, db, "admin", true)
	comic := seedComic(t, db, owner, "Saga", nil)

	newTitle := "Saga Vol. 1"

	// Another user can't edit
	resp := doJSON(router, "PATCH", "/v1/comics/"+comic.ID.String(), getAuthHeader(t, issuer, other), ComicRequest{Title: &newTitle})
	if resp.Code != http.StatusForbidden {
		t.Errorf("Expected status 403 for non-owner, got %d", resp.Code)
	}

	// An admin can
	resp = doJSON(router, "PATCH", "/v1/comics/"+comic.ID.String(), getAuthHeader(t, issuer, admin), ComicRequest{Title: &newTitle})
	if resp.Code != http.StatusOK {
		t.Errorf("Expected status 200 for admin, got %d", resp.Code)
	}
}

func TestDeleteComic(t *testing.T) {
	db := setupTestDB(t)
	issuer := auth.NewTokenIssuer(testSecret, time.Hour)
	router := setupTestRouter(db, issuer)
	owner := createTestUser(t, db, "owner", false)
	other := createTestUser(t, db, "other", false)
	comic := seedComic(t, db, owner, "Saga", nil)

	resp := doJSON(router, "DELETE", "/v1/comics/"+comic.ID.String(), getAuthHeader(t, issuer, other), nil)
	if resp.Code != http.StatusForbidden {
		t.Errorf("Expected status 403 for non-owner delete, got %d", resp.Code)
	}

	resp = doJSON(router, "DELETE", "/v1/comics/"+comic.ID.String(), getAuthHeader(t, issuer, owner), nil)
	if resp.Code != http.StatusNoContent {
		t.Fatalf("Expected status 204, got %d", resp.Code)
	}

	var count int64
	db.Model(&models.Comic{}).Where("id = ?", comic.ID).Count(&count)
	if count != 0 {
		t.Error("Expected comic to be deleted")
	}
}

func TestListComicsFiltersAndPagination(t *testing.T) {
	db := setupTestDB(t)
	issuer := auth.NewTokenIssuer(testSecret, time.Hour)
	router := setupTestRouter(db, issuer)
	user := createTestUser(t, db, "reader", false)
	authHeader := getAuthHeader(t, issuer, user)

	years := []int{1986, 1991, 2012}
	publishers := []string{"DC Comics", "DC Comics", "Image"}
	titles := []string{"Watchmen", "Sandman", "Saga"}
	for i := range titles {
		i := i
		seedComic(t, db, user, titles[i], func(c *models.Comic) {
			c.Year = &years[i]
			c.Publisher = publishers[i]
			c.Writer = "Writer " + titles[i]
		})
	}

	list := func(query string) PaginatedComics {
		resp := doJSON(router, "GET", "/v1/comics"+query, authHeader, nil)
		if resp.Code != http.StatusOK {
			t.Fatalf("Expected status 200 for %q, got %d: %s", query, resp.Code, resp.Body.String())
		}
		var page PaginatedComics
		json.Unmarshal(resp.Body.Bytes(), &page)
		return page
	}

	all := list("")
	if all.Total != 3 {
		t.Errorf("Expected total 3, got %d", all.Total)
	}
	// Default sort is title ascending
	if len(all.Results) != 3 || all.Results[0].Title != "Saga" {
		t.Errorf("Expected Saga first with default sort, got %+v", all.Results)
	}

	byPublisher := list("?publisher=DC")
	if byPublisher.Total != 2 {
		t.Errorf("Expected 2 DC comics, got %d", byPublisher.Total)
	}

	byYear := list("?year_from=1990&year_to=2000")
	if byYear.Total != 1 || byYear.Results[0].Title != "Sandman" {
		t.Errorf("Expected only Sandman in 1990-2000, got %+v", byYear.Results)
	}

	byQ := list("?q=atch")
	if byQ.Total != 1 || byQ.Results[0].Title != "Watchmen" {
		t.Errorf("Expected substring search to find Watchmen, got %+v", byQ.Results)
	}

	paged := list("?page=2&page_size=2&sort_by=year&sort_order=desc")
	if paged.Total != 3 || len(paged.Results) != 1 {
		t.Errorf("Expected 1 result on page 2 of 2, got %d", len(paged.Results))
	}
	if paged.Results[0].Title != "Watchmen" {
		t.Errorf("Expected oldest comic last in year desc, got %q", paged.Results[0].Title)
	}

	if resp := doJSON(router, "GET", "/v1/comics?sort_by=key_hash", authHeader, nil); resp.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for non-whitelisted sort column, got %d", resp.Code)
	}
	if resp := doJSON(router, "GET", "/v1/comics?page_size=500", authHeader, nil); resp.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for oversized page, got %d", resp.Code)
	}
}

func TestDownloadComicInfo(t *testing.T) {
	db := setupTestDB(t)
	issuer := auth.NewTokenIssuer(testSecret, time.Hour)
	router := setupTestRouter(db, issuer)
	user := createTestUser(t, db, "reader", false)

	year := 1986
	comic := seedComic(t, db, user, "Watchmen", func(c *models.Comic) {
		c.Series = "Watchmen"
		c.Number = "1"
		c.Year = &year
		c.Writer = "Alan Moore"
	})

	resp := doJSON(router, "GET", "/v1/comics/"+comic.ID.String()+"/comicinfo.xml", getAuthHeader(t, issuer, user), nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.Code)
	}

	if ct := resp.Header().Get("Content-Type"); ct != "application/xml" {
		t.Errorf("Expected application/xml, got %q", ct)
	}
	disposition := resp.Header().Get("Content-Disposition")
	expected := fmt.Sprintf("ComicInfo-%s.xml", comic.ID)
	if !strings.Contains(disposition, expected) {
		t.Errorf("Expected attachment filename %q, got %q", expected, disposition)
	}

	body := resp.Body.String()
	for _, fragment := range []string{"<ComicInfo", "<Title>Watchmen</Title>", "<Writer>Alan Moore</Writer>", "<Year>1986</Year>"} {
		if !strings.Contains(body, fragment) {
			t.Errorf("Expected XML to contain %q, got:\n%s", fragment, body)
		}
	}
}

func TestGetCover(t *testing.T) {
	db := setupTestDB(t)
	issuer := auth.NewTokenIssuer(testSecret, time.Hour)
	router := setupTestRouter(db, issuer)
	user := createTestUser(t, db, "reader", false)
	authHeader := getAuthHeader(t, issuer, user)

	withCover := seedComic(t, db, user, "Saga", func(c *models.Comic) {
		c.CoverURL = "https://covers.example.com/saga-1.jpg"
	})
	withoutCover := seedComic(t, db, user, "Bone", nil)

	resp := doJSON(router, "GET", "/v1/comics/"+withCover.ID.String()+"/cover", authHeader, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.Code)
	}
	var body map[string]string
	json.Unmarshal(resp.Body.Bytes(), &body)
	if body["cover_url"] != "https://covers.example.com/saga-1.jpg" {
		t.Errorf("Expected cover URL in response, got %q", body["cover_url"])
	}

	resp = doJSON(router, "GET", "/v1/comics/"+withoutCover.ID.String()+"/cover", authHeader, nil)
	if resp.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 without cover, got %d", resp.Code)
	}
}
