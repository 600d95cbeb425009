package impl

import (
	"net/mail"
	"net/url"
	"strings"
	"unicode/utf8"

	"parcels/internal/domain"

	"golang.org/x/text/unicode/norm"
)

const (
	maxTitleRunes   = 80
	maxMessageRunes = 300
	maxLinkLen      = 300
	minPasswordLen  = 8
)

// cleanText trims and NFC-normalizes free text so rune limits count what users see.
func cleanText(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

func validEmail(raw string) (string, error) {
	email := domain.NormalizeEmail(raw)
	if email == "" {
		return "", ErrEmptyEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}

func validPassword(pw string) error {
	if pw == "" {
		return ErrEmptyPassword
	}
	if utf8.RuneCountInString(pw) < minPasswordLen {
		return ErrPasswordLength
	}
	return nil
}

func validTitle(s string) (string, error) {
	s = cleanText(s)
	if utf8.RuneCountInString(s) > maxTitleRunes {
		return "", domain.Invalid("title exceeds %d characters", maxTitleRunes)
	}
	return s, nil
}

func validMessage(s string) (string, error) {
	s = cleanText(s)
	if utf8.RuneCountInString(s) > maxMessageRunes {
		return "", domain.Invalid("message exceeds %d characters", maxMessageRunes)
	}
	return s, nil
}

// validLink accepts an empty value or an absolute http(s) URL.
func validLink(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	if len(s) > maxLinkLen {
		return "", domain.Invalid("link exceeds %d characters", maxLinkLen)
	}
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", domain.Invalid("link must be an http or https URL")
	}
	return s, nil
}

type metadataInput struct {
	Title         string
	Message       string
	Link          string
	Style         string
	TimeDisplay   string
	LocalDateOnly bool
}

func validMetadata(in metadataInput) (domain.ClaimMetadata, error) {
	var (
		m   domain.ClaimMetadata
		err error
	)
	if m.Title, err = validTitle(in.Title); err != nil {
		return m, err
	}
	if m.Message, err = validMessage(in.Message); err != nil {
		return m, err
	}
	if m.LinkURL, err = validLink(in.Link); err != nil {
		return m, err
	}
	if m.Style, err = domain.ParseCertStyle(in.Style); err != nil {
		return m, err
	}
	if m.TimeDisplay, err = domain.ParseTimeDisplay(in.TimeDisplay); err != nil {
		return m, err
	}
	m.LocalDateOnly = in.LocalDateOnly
	return m, nil
}

func optionalName(s string) *string {
	s = cleanText(s)
	if s == "" {
		return nil
	}
	return &s
}
