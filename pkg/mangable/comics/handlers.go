package comics

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mangable/mangable/pkg/mangable/auth"
	"github.com/mangable/mangable/pkg/mangable/comicinfo"
	"github.com/mangable/mangable/pkg/mangable/models"
	"gorm.io/gorm"
)

// Handler handles comic metadata requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new comics handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// sortColumns whitelists the sortable columns
var sortColumns = map[string]string{
	"title":            "title",
	"year":             "year",
	"publisher":        "publisher",
	"community_rating": "community_rating",
	"created_at":       "created_at",
}

// ComicRequest represents the fields a caller may set on a comic.
// Pointer fields left nil are not touched on update.
type ComicRequest struct {
	Title           *string  `json:"title" binding:"omitempty,max=500"`
	Series          *string  `json:"series" binding:"omitempty,max=500"`
	AlternateSeries *string  `json:"alternate_series"`
	Number          *string  `json:"number"`
	Count           *int     `json:"count"`
	Volume          *int     `json:"volume"`
	AlternateNumber *string  `json:"alternate_number"`
	AlternateCount  *int     `json:"alternate_count"`
	Summary         *string  `json:"summary"`
	Notes           *string  `json:"notes"`
	Year            *int     `json:"year"`
	Month           *int     `json:"month" binding:"omitempty,min=1,max=12"`
	Day             *int     `json:"day" binding:"omitempty,min=1,max=31"`
	Publisher       *string  `json:"publisher"`
	Imprint         *string  `json:"imprint"`
	Writer          *string  `json:"writer"`
	Penciller       *string  `json:"penciller"`
	Inker           *string  `json:"inker"`
	Colorist        *string  `json:"colorist"`
	Letterer        *string  `json:"letterer"`
	CoverArtist     *string  `json:"cover_artist"`
	Editor          *string  `json:"editor"`
	Translator      *string  `json:"translator"`
	Genre           *string  `json:"genre"`
	Tags            *string  `json:"tags"`
	Web             *string  `json:"web"`
	AgeRating       *string  `json:"age_rating"`
	LanguageISO     *string  `json:"language_iso" binding:"omitempty,max=10"`
	Format          *string  `json:"format"`
	IsBW            *bool    `json:"is_bw"`
	Manga           *string  `json:"manga" binding:"omitempty,oneof=Yes No YesAndRightToLeft"`
	CommunityRating *float64 `json:"community_rating" binding:"omitempty,min=0,max=5"`
	Review          *string  `json:"review"`
	PageCount       *int     `json:"page_count" binding:"omitempty,min=0"`
	CoverURL        *string  `json:"cover_url" binding:"omitempty,url"`
	ISBN            *string  `json:"isbn"`
	Barcode         *string  `json:"barcode"`
	SeriesGroup     *string  `json:"series_group"`
}

// apply copies the fields that were present in the request onto the comic
func (r *ComicRequest) apply(comic *models.Comic) {
	setString := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setString(&comic.Title, r.Title)
	setString(&comic.Series, r.Series)
	setString(&comic.AlternateSeries, r.AlternateSeries)
	setString(&comic.Number, r.Number)
	setString(&comic.AlternateNumber, r.AlternateNumber)
	setString(&comic.Summary, r.Summary)
	setString(&comic.Notes, r.Notes)
	setString(&comic.Publisher, r.Publisher)
	setString(&comic.Imprint, r.Imprint)
	setString(&comic.Writer, r.Writer)
	setString(&comic.Penciller, r.Penciller)
	setString(&comic.Inker, r.Inker)
	setString(&comic.Colorist, r.Colorist)
	setString(&comic.Letterer, r.Letterer)
	setString(&comic.CoverArtist, r.CoverArtist)
	setString(&comic.Editor, r.Editor)
	setString(&comic.Translator, r.Translator)
	setString(&comic.Genre, r.Genre)
	setString(&comic.Tags, r.Tags)
	setString(&comic.Web, r.Web)
	setString(&comic.AgeRating, r.AgeRating)
	setString(&comic.LanguageISO, r.LanguageISO)
	setString(&comic.Format, r.Format)
	setString(&comic.Manga, r.Manga)
	setString(&comic.Review, r.Review)
	setString(&comic.CoverURL, r.CoverURL)
	setString(&comic.ISBN, r.ISBN)
	setString(&comic.Barcode, r.Barcode)
	setString(&comic.SeriesGroup, r.SeriesGroup)

	if r.Count != nil {
		comic.Count = r.Count
	}
	if r.Volume != nil {
		comic.Volume = r.Volume
	}
	if r.AlternateCount != nil {
		comic.AlternateCount = r.AlternateCount
	}
	if r.Year != nil {
		comic.Year = r.Year
	}
	if r.Month != nil {
		comic.Month = r.Month
	}
	if r.Day != nil {
		comic.Day = r.Day
	}
	if r.IsBW != nil {
		comic.IsBW = r.IsBW
	}
	if r.CommunityRating != nil {
		comic.CommunityRating = r.CommunityRating
	}
	if r.PageCount != nil {
		comic.PageCount = r.PageCount
	}
}

// ComicListItem is the compact listing shape
type ComicListItem struct {
	ID              uuid.UUID `json:"id"`
	Title           string    `json:"title"`
	Series          string    `json:"series,omitempty"`
	Number          string    `json:"number,omitempty"`
	Year            *int      `json:"year,omitempty"`
	Publisher       string    `json:"publisher,omitempty"`
	CoverURL        string    `json:"cover_url,omitempty"`
	CommunityRating *float64  `json:"community_rating,omitempty"`
}

// PaginatedComics wraps a page of listing results
type PaginatedComics struct {
	Total    int64           `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
	Results  []ComicListItem `json:"results"`
}

// Create creates a comic metadata record
// @Summary Create a comic
// @Description Create a new comic metadata record owned by the caller
// @Tags comics
// @Accept json
// @Produce json
// @Param request body ComicRequest true "Comic metadata"
// @Success 201 {object} models.Comic
// @Failure 400 {object} map[string]string "Validation error"
// @Security BearerAuth
// @Router /comics [post]
func (h *Handler) Create(c *gin.Context) {
	userID, _ := auth.GetUserID(c)

	var req ComicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Title == nil || *req.Title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Title is required"})
		return
	}

	var comic models.Comic
	req.apply(&comic)
	comic.CreatedBy = &userID

	if err := h.db.Create(&comic).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create comic"})
		return
	}

	c.JSON(http.StatusCreated, comic)
}

// List searches comics with filters, pagination, and sorting
// @Summary List comics
// @Description Search comic metadata with filters and pagination
// @Tags comics
// @Produce json
// @Param q query string false "Substring match on title, series, summary, writer, publisher"
// @Param series query string false "Series filter"
// @Param publisher query string false "Publisher filter"
// @Param writer query string false "Writer filter"
// @Param genre query string false "Genre filter"
// @Param year_from query int false "Minimum year"
// @Param year_to query int false "Maximum year"
// @Param language query string false "Language ISO code"
// @Param manga query string false "Manga flag"
// @Param age_rating query string false "Age rating"
// @Param page query int false "Page number (default 1)"
// @Param page_size query int false "Page size 1-100 (default 20)"
// @Param sort_by query string false "title|year|publisher|community_rating|created_at"
// @Param sort_order query string false "asc|desc"
// @Success 200 {object} PaginatedComics
// @Security BearerAuth
// @Router /comics [get]
func (h *Handler) List(c *gin.Context) {
	// Applied to a fresh chain for both the count and the fetch
	filters := func(query *gorm.DB) *gorm.DB {
		if q := c.Query("q"); q != "" {
			like := "%" + q + "%"
			query = query.Where(
				"title LIKE ? OR series LIKE ? OR summary LIKE ? OR writer LIKE ? OR publisher LIKE ?",
				like, like, like, like, like,
			)
		}
		if series := c.Query("series"); series != "" {
			query = query.Where("series LIKE ?", "%"+series+"%")
		}
		if publisher := c.Query("publisher"); publisher != "" {
			query = query.Where("publisher LIKE ?", "%"+publisher+"%")
		}
		if writer := c.Query("writer"); writer != "" {
			query = query.Where("writer LIKE ?", "%"+writer+"%")
		}
		if genre := c.Query("genre"); genre != "" {
			query = query.Where("genre LIKE ?", "%"+genre+"%")
		}
		if yearFrom := c.Query("year_from"); yearFrom != "" {
			if y, err := strconv.Atoi(yearFrom); err == nil {
				query = query.Where("year >= ?", y)
			}
		}
		if yearTo := c.Query("year_to"); yearTo != "" {
			if y, err := strconv.Atoi(yearTo); err == nil {
				query = query.Where("year <= ?", y)
			}
		}
		if language := c.Query("language"); language != "" {
			query = query.Where("language_iso = ?", language)
		}
		if manga := c.Query("manga"); manga != "" {
			query = query.Where("manga = ?", manga)
		}
		if ageRating := c.Query("age_rating"); ageRating != "" {
			query = query.Where("age_rating = ?", ageRating)
		}
		return query
	}

	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid page"})
		return
	}
	pageSize, err := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if err != nil || pageSize < 1 || pageSize > 100 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid page size"})
		return
	}

	column, ok := sortColumns[c.DefaultQuery("sort_by", "title")]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid sort column"})
		return
	}
	order := c.DefaultQuery("sort_order", "asc")
	if order != "asc" && order != "desc" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid sort order"})
		return
	}

	var total int64
	if err := filters(h.db.Model(&models.Comic{})).Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count comics"})
		return
	}

	var comics []models.Comic
	err = filters(h.db.Model(&models.Comic{})).
		Order(fmt.Sprintf("%s %s", column, order)).
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&comics).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch comics"})
		return
	}

	results := make([]ComicListItem, len(comics))
	for i, comic := range comics {
		results[i] = ComicListItem{
			ID:              comic.ID,
			Title:           comic.Title,
			Series:          comic.Series,
			Number:          comic.Number,
			Year:            comic.Year,
			Publisher:       comic.Publisher,
			CoverURL:        comic.CoverURL,
			CommunityRating: comic.CommunityRating,
		}
	}

	c.JSON(http.StatusOK, PaginatedComics{
		Total:    total,
		Page:     page,
		PageSize: pageSize,
		Results:  results,
	})
}

// findComic loads a comic by path parameter or writes the error response
func (h *Handler) findComic(c *gin.Context) (*models.Comic, bool) {
	comicID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid comic ID"})
		return nil, false
	}

	var comic models.Comic
	if err := h.db.First(&comic, "id = ?", comicID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Comic not found"})
		return nil, false
	}
	return &comic, true
}

// canModify reports whether the caller owns the comic or is an admin
func canModify(c *gin.Context, comic *models.Comic) bool {
	if auth.IsAdmin(c) {
		return true
	}
	userID, ok := auth.GetUserID(c)
	return ok && comic.CreatedBy != nil && *comic.CreatedBy == userID
}

// Get returns a single comic
// @Summary Get a comic
// @Tags comics
// @Produce json
// @Param id path string true "Comic ID"
// @Success 200 {object} models.Comic
// @Failure 404 {object} map[string]string "Comic not found"
// @Security BearerAuth
// @Router /comics/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	comic, ok := h.findComic(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, comic)
}

// Update partially updates a comic owned by the caller
// @Summary Update a comic
// @Description Update comic metadata; only fields present in the body change
// @Tags comics
// @Accept json
// @Produce json
// @Param id path string true "Comic ID"
// @Param request body ComicRequest true "Fields to update"
// @Success 200 {object} models.Comic
// @Failure 403 {object} map[string]string "Not the owner"
// @Failure 404 {object} map[string]string "Comic not found"
// @Security BearerAuth
// @Router /comics/{id} [patch]
func (h *Handler) Update(c *gin.Context) {
	comic, ok := h.findComic(c)
	if !ok {
		return
	}
	if !canModify(c, comic) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not allowed to edit this comic"})
		return
	}

	var req ComicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Title != nil && *req.Title == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Title cannot be empty"})
		return
	}

	req.apply(comic)
	if err := h.db.Save(comic).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update comic"})
		return
	}

	c.JSON(http.StatusOK, comic)
}

// Delete removes a comic owned by the caller
// @Summary Delete a comic
// @Tags comics
// @Param id path string true "Comic ID"
// @Success 204 "Deleted"
// @Failure 403 {object} map[string]string "Not the owner"
// @Failure 404 {object} map[string]string "Comic not found"
// @Security BearerAuth
// @Router /comics/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	comic, ok := h.findComic(c)
	if !ok {
		return
	}
	if !canModify(c, comic) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not allowed to delete this comic"})
		return
	}

	if err := h.db.Delete(comic).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete comic"})
		return
	}

	c.Status(http.StatusNoContent)
}

// DownloadComicInfo returns the comic's metadata as a ComicInfo.xml attachment
// @Summary Download ComicInfo.xml
// @Tags comics
// @Produce xml
// @Param id path string true "Comic ID"
// @Success 200 {string} string "ComicInfo XML document"
// @Failure 404 {object} map[string]string "Comic not found"
// @Security BearerAuth
// @Router /comics/{id}/comicinfo.xml [get]
func (h *Handler) DownloadComicInfo(c *gin.Context) {
	comic, ok := h.findComic(c)
	if !ok {
		return
	}

	body, err := comicinfo.Build(*comic).XML()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate ComicInfo.xml"})
		return
	}

	filename := fmt.Sprintf("ComicInfo-%s.xml", comic.ID)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/xml", body)
}

// GetCover returns the cover image URL for a comic
// @Summary Get cover URL
// @Tags comics
// @Produce json
// @Param id path string true "Comic ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} map[string]string "Comic or cover not found"
// @Security BearerAuth
// @Router /comics/{id}/cover [get]
func (h *Handler) GetCover(c *gin.Context) {
	comic, ok := h.findComic(c)
	if !ok {
		return
	}
	if comic.CoverURL == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "No cover image set for this comic"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"comic_id": comic.ID.String(), "cover_url": comic.CoverURL})
}

// RegisterRoutes registers comic routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/comics", h.Create)
	rg.GET("/comics", h.List)
	rg.GET("/comics/:id", h.Get)
	rg.PATCH("/comics/:id", h.Update)
	rg.DELETE("/comics/:id", h.Delete)
	rg.GET("/comics/:id/comicinfo.xml", h.DownloadComicInfo)
	rg.GET("/comics/:id/cover", h.GetCover)
}
