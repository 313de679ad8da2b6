package validator

import (
	"net/url"
	"strings"
	"unicode/utf8"
)

type ValidationErrors map[string]string

func (v ValidationErrors) HasErrors() bool {
	return len(v) > 0
}

func (v ValidationErrors) Add(field, message string) {
	v[field] = message
}

const (
	maxTextLength = 4000
	maxNameLength = 100
	maxIDLength   = 128
)

// ValidateMessage checks an outgoing message: a sender and either text or an
// image are required.
func ValidateMessage(senderID, text string, imageURL *string) ValidationErrors {
	errs := make(ValidationErrors)

	if strings.TrimSpace(senderID) == "" {
		errs.Add("sender_id", "Sender is required")
	}

	hasText := strings.TrimSpace(text) != ""
	hasImage := imageURL != nil && *imageURL != ""
	if !hasText && !hasImage {
		errs.Add("text", "Message text or image is required")
	}
	if utf8.RuneCountInString(text) > maxTextLength {
		errs.Add("text", "Message is too long")
	}

	if hasImage {
		u, err := url.Parse(*imageURL)
		if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
			errs.Add("image_url", "Invalid image URL")
		}
	}

	return errs
}

// ValidateRoom checks a room created by an operator. Ids become key path
// segments and topic names, so they cannot contain '/'.
func ValidateRoom(id, name string) ValidationErrors {
	errs := make(ValidationErrors)

	if msg := checkID(id); msg != "" {
		errs.Add("id", msg)
	}

	name = strings.TrimSpace(name)
	if name == "" {
		errs.Add("name", "Room name is required")
	} else if len(name) > maxNameLength {
		errs.Add("name", "Room name is too long")
	}

	return errs
}

// ValidateID checks a single room or message id.
func ValidateID(id string) ValidationErrors {
	errs := make(ValidationErrors)
	if msg := checkID(id); msg != "" {
		errs.Add("id", msg)
	}
	return errs
}

func checkID(id string) string {
	switch {
	case strings.TrimSpace(id) == "":
		return "ID is required"
	case len(id) > maxIDLength:
		return "ID is too long"
	case strings.ContainsAny(id, "/ \t\n"):
		return "ID cannot contain '/' or whitespace"
	}
	return ""
}
