package tags

import (
	"errors"
	"strings"
)

// ListID is the tag id that matches every tag of the same type.
const ListID = "LIST"

// Sentinel errors for tag operations.
var (
	ErrInvalidTag = errors.New("tags: tag is invalid")
	ErrEmptyKey   = errors.New("tags: query key is empty")
)

// Tag is a logical label for a resource or a resource collection.
type Tag struct {
	Type string
	ID   string
}

// Of returns the tag for one resource of the given type.
func Of(typ, id string) Tag {
	return Tag{Type: typ, ID: id}
}

// List returns the collection tag for typ.
func List(typ string) Tag {
	return Tag{Type: typ, ID: ListID}
}

// IsList reports whether t names a whole collection.
func (t Tag) IsList() bool {
	return t.ID == ListID
}

// String formats the tag as "<type>:<id>".
func (t Tag) String() string {
	return t.Type + ":" + t.ID
}

// Validate checks that both parts are present and the type has no separator.
func (t Tag) Validate() error {
	if strings.TrimSpace(t.Type) == "" || t.ID == "" {
		return ErrInvalidTag
	}
	if strings.Contains(t.Type, ":") {
		return ErrInvalidTag
	}
	return nil
}

// Parse parses the "<type>:<id>" form produced by String.
func Parse(s string) (Tag, error) {
	typ, id, ok := strings.Cut(s, ":")
	if !ok {
		return Tag{}, ErrInvalidTag
	}
	t := Tag{Type: typ, ID: id}
	if err := t.Validate(); err != nil {
		return Tag{}, err
	}
	return t, nil
}
