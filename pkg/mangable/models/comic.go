package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Comic represents a comic book metadata record. Fields follow the
// ComicInfo schema; no binary content is ever stored, only metadata.
type Comic struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	// Core identification
	Title           string `gorm:"size:500;not null;index" json:"title"`
	Series          string `gorm:"size:500;index" json:"series,omitempty"`
	AlternateSeries string `gorm:"size:500" json:"alternate_series,omitempty"`
	Number          string `gorm:"size:50" json:"number,omitempty"` // issue number
	Count           *int   `json:"count,omitempty"`                 // total issues
	Volume          *int   `json:"volume,omitempty"`
	AlternateNumber string `gorm:"size:50" json:"alternate_number,omitempty"`
	AlternateCount  *int   `json:"alternate_count,omitempty"`

	// Publication info
	Summary   string `gorm:"type:text" json:"summary,omitempty"`
	Notes     string `gorm:"type:text" json:"notes,omitempty"`
	Year      *int   `gorm:"index" json:"year,omitempty"`
	Month     *int   `json:"month,omitempty"`
	Day       *int   `json:"day,omitempty"`
	Publisher string `gorm:"size:255;index" json:"publisher,omitempty"`
	Imprint   string `gorm:"size:255" json:"imprint,omitempty"`

	// Creators
	Writer      string `gorm:"size:500" json:"writer,omitempty"`
	Penciller   string `gorm:"size:500" json:"penciller,omitempty"`
	Inker       string `gorm:"size:500" json:"inker,omitempty"`
	Colorist    string `gorm:"size:500" json:"colorist,omitempty"`
	Letterer    string `gorm:"size:500" json:"letterer,omitempty"`
	CoverArtist string `gorm:"size:500" json:"cover_artist,omitempty"`
	Editor      string `gorm:"size:500" json:"editor,omitempty"`
	Translator  string `gorm:"size:500" json:"translator,omitempty"`

	// Classification
	Genre       string `gorm:"size:500" json:"genre,omitempty"`
	Tags        string `gorm:"type:text" json:"tags,omitempty"`
	Web         string `gorm:"size:500" json:"web,omitempty"`
	AgeRating   string `gorm:"size:50" json:"age_rating,omitempty"`
	LanguageISO string `gorm:"size:10;index" json:"language_iso,omitempty"`
	Format      string `gorm:"size:100" json:"format,omitempty"`
	IsBW        *bool  `json:"is_bw,omitempty"`
	Manga       string `gorm:"size:50" json:"manga,omitempty"` // Yes/No/YesAndRightToLeft

	// Ratings
	CommunityRating *float64 `json:"community_rating,omitempty"`
	Review          string   `gorm:"type:text" json:"review,omitempty"`

	// Page info (no actual content stored)
	PageCount *int `json:"page_count,omitempty"`

	// Cover
	CoverURL string `gorm:"size:1000" json:"cover_url,omitempty"`

	// Identifiers
	ISBN        string `gorm:"size:20" json:"isbn,omitempty"`
	Barcode     string `gorm:"size:50" json:"barcode,omitempty"`
	SeriesGroup string `gorm:"size:500" json:"series_group,omitempty"`

	// Metadata
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	CreatedBy *uuid.UUID `gorm:"type:uuid;index" json:"created_by,omitempty"`
}

// BeforeCreate assigns a UUID primary key if one isn't set
func (c *Comic) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
