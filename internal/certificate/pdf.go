package certificate

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"parcels/internal/domain"

	"github.com/go-pdf/fpdf"
	"golang.org/x/text/language"
)

// Lang is a certificate label language.
type Lang string

const (
	LangEN Lang = "en"
	LangJA Lang = "ja"
)

var langMatcher = language.NewMatcher([]language.Tag{language.English, language.Japanese})

// MatchLanguage picks a label language from an Accept-Language header.
func MatchLanguage(acceptLanguage string) Lang {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return LangEN
	}
	tag, _, _ := langMatcher.Match(tags...)
	if base, _ := tag.Base(); base.String() == "ja" {
		return LangJA
	}
	return LangEN
}

type labels struct {
	Heading   string
	Intro     string
	Owner     string
	Hash      string
	Verify    string
	UTC       string
	Anonymous string
}

var labelSets = map[Lang]labels{
	LangEN: {
		Heading:   "Certificate of Ownership",
		Intro:     "This certifies symbolic ownership of",
		Owner:     "Owner",
		Hash:      "Content hash",
		Verify:    "Verify at",
		UTC:       "UTC",
		Anonymous: "Anonymous",
	},
	LangJA: {
		Heading:   "所有証明書",
		Intro:     "以下の時間の象徴的な所有を証明します",
		Owner:     "所有者",
		Hash:      "コンテンツハッシュ",
		Verify:    "確認URL",
		UTC:       "協定世界時",
		Anonymous: "匿名",
	},
}

type palette struct {
	bg, ink, accent [3]int
}

var palettes = map[domain.CertStyle]palette{
	domain.StyleClassic: {bg: [3]int{253, 250, 240}, ink: [3]int{40, 40, 40}, accent: [3]int{150, 110, 40}},
	domain.StyleMinimal: {bg: [3]int{255, 255, 255}, ink: [3]int{20, 20, 20}, accent: [3]int{120, 120, 120}},
	domain.StyleNight:   {bg: [3]int{18, 24, 48}, ink: [3]int{235, 235, 245}, accent: [3]int{200, 180, 90}},
	domain.StyleFloral:  {bg: [3]int{252, 240, 245}, ink: [3]int{70, 40, 60}, accent: [3]int{200, 90, 130}},
}

// Document is everything printed on a certificate.
type Document struct {
	Unit          domain.Unit
	OwnerName     string
	Title         string
	Message       string
	Style         domain.CertStyle
	TimeDisplay   domain.TimeDisplay
	LocalDateOnly bool
	CertHash      string
	CertURL       string
	IssuedAt      time.Time
}

// Renderer draws certificates. With a UTF-8 TrueType font configured any script
// renders; without one output falls back to English labels in a core font.
type Renderer struct {
	fontPath string
}

func NewRenderer(fontPath string) *Renderer { return &Renderer{fontPath: fontPath} }

const utf8Family = "certfont"

// Render writes the PDF for doc to w and reports the language actually used.
func (r *Renderer) Render(w io.Writer, doc Document, lang Lang) (Lang, error) {
	if r.fontPath == "" {
		lang = LangEN
	}
	lb, ok := labelSets[lang]
	if !ok {
		lang, lb = LangEN, labelSets[LangEN]
	}
	pal, ok := palettes[doc.Style]
	if !ok {
		pal = palettes[domain.StyleClassic]
	}

	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetCreationDate(doc.IssuedAt.UTC())
	pdf.SetTitle(lb.Heading+" "+doc.Unit.Key(), true)
	pdf.SetCreator("parcels", false)

	family := "Helvetica"
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	if r.fontPath != "" {
		pdf.AddUTF8Font(utf8Family, "", r.fontPath)
		family = utf8Family
		tr = func(s string) string { return s }
	}

	pdf.AddPage()
	pageW, pageH := pdf.GetPageSize()

	pdf.SetFillColor(pal.bg[0], pal.bg[1], pal.bg[2])
	pdf.Rect(0, 0, pageW, pageH, "F")
	pdf.SetDrawColor(pal.accent[0], pal.accent[1], pal.accent[2])
	pdf.SetLineWidth(1.2)
	pdf.Rect(10, 10, pageW-20, pageH-20, "D")

	pdf.SetTextColor(pal.ink[0], pal.ink[1], pal.ink[2])
	width := pageW - 40

	pdf.SetXY(20, 28)
	pdf.SetFont(family, "", 30)
	pdf.CellFormat(width, 14, tr(lb.Heading), "", 1, "C", false, 0, "")

	pdf.SetX(20)
	pdf.SetFont(family, "", 13)
	pdf.CellFormat(width, 10, tr(lb.Intro), "", 1, "C", false, 0, "")

	pdf.SetX(20)
	pdf.SetFont(family, "", 26)
	pdf.SetTextColor(pal.accent[0], pal.accent[1], pal.accent[2])
	pdf.CellFormat(width, 16, tr(formatUnit(doc, lb)), "", 1, "C", false, 0, "")
	pdf.SetTextColor(pal.ink[0], pal.ink[1], pal.ink[2])

	if doc.Title != "" {
		pdf.SetX(20)
		pdf.SetFont(family, "", 18)
		pdf.CellFormat(width, 12, tr(doc.Title), "", 1, "C", false, 0, "")
	}
	if doc.Message != "" {
		pdf.SetX(40)
		pdf.SetFont(family, "", 12)
		pdf.MultiCell(pageW-80, 6, tr(doc.Message), "", "C", false)
	}

	owner := doc.OwnerName
	if owner == "" {
		owner = lb.Anonymous
	}
	pdf.SetXY(20, pageH-52)
	pdf.SetFont(family, "", 12)
	pdf.CellFormat(width, 8, tr(lb.Owner+": "+owner), "", 1, "C", false, 0, "")

	pdf.SetX(20)
	pdf.SetFont(family, "", 8)
	pdf.CellFormat(width, 5, tr(lb.Hash+": "+doc.CertHash), "", 1, "C", false, 0, "")
	if doc.CertURL != "" {
		pdf.SetX(20)
		pdf.CellFormat(width, 5, tr(lb.Verify+": "+doc.CertURL), "", 1, "C", false, 0, doc.CertURL)
	}

	if err := pdf.Output(w); err != nil {
		return lang, fmt.Errorf("render certificate: %w", err)
	}
	return lang, nil
}

func formatUnit(doc Document, lb labels) string {
	ts := doc.Unit.TS.UTC()
	if doc.Unit.Granularity == domain.GranularityDay || doc.LocalDateOnly {
		return ts.Format("2006-01-02")
	}
	if doc.TimeDisplay == domain.TimeDisplayLocal {
		return ts.Format("2006-01-02 15:04")
	}
	return ts.Format("2006-01-02 15:04") + " " + lb.UTC
}

// ETag identifies one rendering of a certificate. It covers every printed
// field, so edits to the claim or the owner's display name change it even
// though the content hash stays put.
func ETag(doc Document, lang Lang) string {
	h := sha256.New()
	for _, field := range []string{
		strings.ToLower(doc.CertHash),
		doc.Unit.Key(),
		doc.OwnerName,
		doc.Title,
		doc.Message,
		string(doc.Style),
		string(doc.TimeDisplay),
		strconv.FormatBool(doc.LocalDateOnly),
		doc.CertURL,
		doc.IssuedAt.UTC().Format(time.RFC3339Nano),
	} {
		h.Write([]byte(field))
		h.Write([]byte{0})
	}
	return `"` + hex.EncodeToString(h.Sum(nil)[:16]) + "-" + string(lang) + `"`
}
