// Package schema declares the shape of the post and user records and converts
// raw API documents into typed entities.
package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"net/mail"

	"github.com/vectral/post-analytics/internal/models"
)

// ValidationError reports a single field that caused a raw document to be
// rejected: a missing required field, a wrong primitive type, or a failed
// format constraint.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("field %q: %s", e.Field, e.Reason)
}

// ParsePost converts a raw document into a Post. Returns a *ValidationError
// when a required field is missing or has the wrong type.
func ParsePost(doc models.RawDocument) (models.Post, error) {
	var post models.Post
	var err error

	if post.ID, err = intField(doc, "id"); err != nil {
		return models.Post{}, err
	}
	if post.UserID, err = intField(doc, "userId"); err != nil {
		return models.Post{}, err
	}
	if post.Title, err = stringField(doc, "title"); err != nil {
		return models.Post{}, err
	}
	if post.Body, err = stringField(doc, "body"); err != nil {
		return models.Post{}, err
	}

	return post, nil
}

// ParseUser converts a raw document into a User. The email field must be a
// syntactically valid address; a bad address rejects the record.
func ParseUser(doc models.RawDocument) (models.User, error) {
	var user models.User
	var err error

	if user.ID, err = intField(doc, "id"); err != nil {
		return models.User{}, err
	}
	if user.Name, err = stringField(doc, "name"); err != nil {
		return models.User{}, err
	}
	if user.Username, err = stringField(doc, "username"); err != nil {
		return models.User{}, err
	}
	if user.Email, err = stringField(doc, "email"); err != nil {
		return models.User{}, err
	}
	if _, err := mail.ParseAddress(user.Email); err != nil {
		return models.User{}, &ValidationError{Field: "email", Reason: fmt.Sprintf("not a valid email address: %q", user.Email)}
	}

	return user, nil
}

// intField extracts an integer field. JSON numbers arrive as float64 (or
// json.Number when decoded with UseNumber), so a number is accepted only when
// it is integral.
func intField(doc models.RawDocument, field string) (int, error) {
	value, ok := doc[field]
	if !ok || value == nil {
		return 0, &ValidationError{Field: field, Reason: "required field is missing"}
	}

	switch n := value.(type) {
	case float64:
		if n != math.Trunc(n) {
			return 0, &ValidationError{Field: field, Reason: fmt.Sprintf("expected an integer, got %v", n)}
		}
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, &ValidationError{Field: field, Reason: fmt.Sprintf("expected an integer, got %v", n)}
		}
		return int(i), nil
	case int:
		return n, nil
	default:
		return 0, &ValidationError{Field: field, Reason: fmt.Sprintf("expected an integer, got %T", value)}
	}
}

func stringField(doc models.RawDocument, field string) (string, error) {
	value, ok := doc[field]
	if !ok || value == nil {
		return "", &ValidationError{Field: field, Reason: "required field is missing"}
	}

	s, ok := value.(string)
	if !ok {
		return "", &ValidationError{Field: field, Reason: fmt.Sprintf("expected a string, got %T", value)}
	}
	return s, nil
}
