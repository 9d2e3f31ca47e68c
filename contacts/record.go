package contacts

import (
	"errors"
	"strings"
)

var (
	// ErrInvalidInput is returned for an add with an empty name or phone.
	ErrInvalidInput = errors.New("contacts: name and phone are required")

	// ErrPendingRecord is returned when deleting a record whose add has not
	// been confirmed yet. Its id only exists locally.
	ErrPendingRecord = errors.New("contacts: record is not yet committed")
)

// ID identifies a record. Committed ids come from the server and are
// positive; placeholders for unconfirmed adds are negative.
type ID int64

type Record struct {
	ID    ID     `json:"id" msgpack:"id" cbor:"id"`
	Name  string `json:"name" msgpack:"name" cbor:"name"`
	Phone string `json:"phone" msgpack:"phone" cbor:"phone"`
}

// IsPlaceholder reports whether r is an optimistic record awaiting its
// server id.
func (r Record) IsPlaceholder() bool { return r.ID < 0 }

// Input is the payload of an add.
type Input struct {
	Name  string `json:"name" yaml:"name"`
	Phone string `json:"phone" yaml:"phone"`
}

func (in Input) Validate() error {
	if strings.TrimSpace(in.Name) == "" || strings.TrimSpace(in.Phone) == "" {
		return ErrInvalidInput
	}
	return nil
}

// Collection is an ordered list of records. Methods never modify the
// receiver; they return a new slice.
type Collection []Record

func (c Collection) Clone() Collection {
	if c == nil {
		return Collection{}
	}
	out := make(Collection, len(c))
	copy(out, c)
	return out
}

// IndexOf returns the position of id, or -1.
func (c Collection) IndexOf(id ID) int {
	for i, r := range c {
		if r.ID == id {
			return i
		}
	}
	return -1
}

func (c Collection) Contains(id ID) bool { return c.IndexOf(id) >= 0 }

func (c Collection) Append(r Record) Collection {
	out := make(Collection, 0, len(c)+1)
	out = append(out, c...)
	return append(out, r)
}

// Without drops every record with id.
func (c Collection) Without(id ID) Collection {
	out := make(Collection, 0, len(c))
	for _, r := range c {
		if r.ID != id {
			out = append(out, r)
		}
	}
	return out
}

// Upsert puts rec where the placeholder sits, or where a record with
// rec.ID already sits, or at the end. The result holds rec.ID exactly once
// and no longer holds the placeholder.
func (c Collection) Upsert(placeholder ID, rec Record) Collection {
	at := c.IndexOf(placeholder)
	if at < 0 {
		at = c.IndexOf(rec.ID)
	}

	out := make(Collection, 0, len(c)+1)
	for i, r := range c {
		switch {
		case i == at:
			out = append(out, rec)
		case r.ID == placeholder, r.ID == rec.ID:
		default:
			out = append(out, r)
		}
	}
	if at < 0 {
		out = append(out, rec)
	}
	return out
}
