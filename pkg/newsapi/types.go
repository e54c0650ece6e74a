package newsapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Page is the decoded body of one listing response.
type Page struct {
	Data []Item `json:"data"`
}

// Empty reports whether the listing has no more items.
func (p Page) Empty() bool { return len(p.Data) == 0 }

// Item is one article record. ID and PublishDateTimestamp are required;
// Title is nil when the source omitted it.
type Item struct {
	ID                   ItemID  `json:"id"`
	PublishDateTimestamp int64   `json:"publishDateTimestamp"`
	Title                *string `json:"title,omitempty"`
}

// TitleOr returns the item title or fallback when it is absent.
func (it Item) TitleOr(fallback string) string {
	if it.Title == nil {
		return fallback
	}
	return *it.Title
}

// UnmarshalJSON rejects records missing a required field.
func (it *Item) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID                   *ItemID `json:"id"`
		PublishDateTimestamp *int64  `json:"publishDateTimestamp"`
		Title                *string `json:"title"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.ID == nil || *raw.ID == "" {
		return errors.New("item missing id")
	}
	if raw.PublishDateTimestamp == nil {
		return fmt.Errorf("item %s missing publishDateTimestamp", *raw.ID)
	}
	it.ID = *raw.ID
	it.PublishDateTimestamp = *raw.PublishDateTimestamp
	it.Title = raw.Title
	return nil
}

// ItemID is the source identifier. The API has been seen sending it both as a
// JSON string and as a number, so both decode to the same textual form.
type ItemID string

func (id *ItemID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ItemID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decode id: %w", err)
	}
	*id = ItemID(n.String())
	return nil
}

func (id ItemID) String() string { return string(id) }
