// Package comicinfo builds ComicInfo.xml documents following the
// ComicRack/Kavita/Komga standard schema.
// Reference: https://github.com/anansi-project/comicinfo
package comicinfo

import (
	"encoding/xml"

	"github.com/mangable/mangable/pkg/mangable/models"
)

const (
	xsiNamespace = "http://www.w3.org/2001/XMLSchema-instance"
	xsdNamespace = "http://www.w3.org/2001/XMLSchema"
)

// Document is a ComicInfo v2.1 XML document. Element order follows the
// schema; absent metadata produces no element.
type Document struct {
	XMLName xml.Name `xml:"ComicInfo"`
	XSI     string   `xml:"xmlns:xsi,attr"`
	XSD     string   `xml:"xmlns:xsd,attr"`

	Title           string `xml:"Title,omitempty"`
	Series          string `xml:"Series,omitempty"`
	Number          string `xml:"Number,omitempty"`
	Count           *int   `xml:"Count,omitempty"`
	Volume          *int   `xml:"Volume,omitempty"`
	AlternateSeries string `xml:"AlternateSeries,omitempty"`
	AlternateNumber string `xml:"AlternateNumber,omitempty"`
	AlternateCount  *int   `xml:"AlternateCount,omitempty"`
	SeriesGroup     string `xml:"SeriesGroup,omitempty"`

	Summary string `xml:"Summary,omitempty"`
	Notes   string `xml:"Notes,omitempty"`

	Year  *int `xml:"Year,omitempty"`
	Month *int `xml:"Month,omitempty"`
	Day   *int `xml:"Day,omitempty"`

	Publisher string `xml:"Publisher,omitempty"`
	Imprint   string `xml:"Imprint,omitempty"`

	Writer      string `xml:"Writer,omitempty"`
	Penciller   string `xml:"Penciller,omitempty"`
	Inker       string `xml:"Inker,omitempty"`
	Colorist    string `xml:"Colorist,omitempty"`
	Letterer    string `xml:"Letterer,omitempty"`
	CoverArtist string `xml:"CoverArtist,omitempty"`
	Editor      string `xml:"Editor,omitempty"`
	Translator  string `xml:"Translator,omitempty"`

	Genre         string `xml:"Genre,omitempty"`
	Tags          string `xml:"Tags,omitempty"`
	Web           string `xml:"Web,omitempty"`
	Format        string `xml:"Format,omitempty"`
	AgeRating     string `xml:"AgeRating,omitempty"`
	LanguageISO   string `xml:"LanguageISO,omitempty"`
	Manga         string `xml:"Manga,omitempty"`
	BlackAndWhite string `xml:"BlackAndWhite,omitempty"`

	CommunityRating *float64 `xml:"CommunityRating,omitempty"`
	Review          string   `xml:"Review,omitempty"`

	PageCount *int `xml:"PageCount,omitempty"`

	ISBN    string `xml:"ISBN,omitempty"`
	Barcode string `xml:"Barcode,omitempty"`
}

// Build maps a comic record to a ComicInfo document
func Build(comic models.Comic) Document {
	doc := Document{
		XSI:             xsiNamespace,
		XSD:             xsdNamespace,
		Title:           comic.Title,
		Series:          comic.Series,
		Number:          comic.Number,
		Count:           comic.Count,
		Volume:          comic.Volume,
		AlternateSeries: comic.AlternateSeries,
		AlternateNumber: comic.AlternateNumber,
		AlternateCount:  comic.AlternateCount,
		SeriesGroup:     comic.SeriesGroup,
		Summary:         comic.Summary,
		Notes:           comic.Notes,
		Year:            comic.Year,
		Month:           comic.Month,
		Day:             comic.Day,
		Publisher:       comic.Publisher,
		Imprint:         comic.Imprint,
		Writer:          comic.Writer,
		Penciller:       comic.Penciller,
		Inker:           comic.Inker,
		Colorist:        comic.Colorist,
		Letterer:        comic.Letterer,
		CoverArtist:     comic.CoverArtist,
		Editor:          comic.Editor,
		Translator:      comic.Translator,
		Genre:           comic.Genre,
		Tags:            comic.Tags,
		Web:             comic.Web,
		Format:          comic.Format,
		AgeRating:       comic.AgeRating,
		LanguageISO:     comic.LanguageISO,
		Manga:           comic.Manga,
		CommunityRating: comic.CommunityRating,
		Review:          comic.Review,
		PageCount:       comic.PageCount,
		ISBN:            comic.ISBN,
		Barcode:         comic.Barcode,
	}

	// The schema uses a Yes/No enumeration, not a boolean
	if comic.IsBW != nil {
		if *comic.IsBW {
			doc.BlackAndWhite = "Yes"
		} else {
			doc.BlackAndWhite = "No"
		}
	}

	return doc
}

// XML renders the document with the standard XML header
func (d Document) XML() ([]byte, error) {
	body, err := xml.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), body...), nil
}
