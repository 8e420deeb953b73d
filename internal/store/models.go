package store

import "encoding/json"

// Key is the composite primary key of a material record.
type Key struct {
	EtaID      string `json:"eta_id"`
	UploadDate string `json:"upload_date"`
}

type ContextEntry struct {
	Type        string          `json:"Type"` // "pdf" or "voice_reply"
	Summary     string          `json:"Summary"`
	Filename    string          `json:"Filename,omitempty"`
	UploadDate  string          `json:"UploadDate"`
	Diagnostics json.RawMessage `json:"Diagnostics,omitempty"`
}

type Upload struct {
	Filename   string `json:"Filename"`
	Size       int64  `json:"Size"`
	UploadDate string `json:"UploadDate"`
}

// Record is one wide row of the materials table. ChatHistory is kept as the
// raw stored JSON; older rows may hold legacy thread layouts.
type Record struct {
	EtaID       string          `json:"EtaID"`
	UploadDate  string          `json:"UploadDate"`
	Name        string          `json:"Name"`
	Email       string          `json:"Email"`
	Auth0Sub    string          `json:"Auth0Sub,omitempty"`
	Context     []ContextEntry  `json:"Context"`
	Uploads     []Upload        `json:"Uploads"`
	ChatHistory json.RawMessage `json:"ChatHistory"`
}

func (r *Record) Key() Key {
	return Key{EtaID: r.EtaID, UploadDate: r.UploadDate}
}

// Filter selects records in Scan. Empty fields match everything.
type Filter struct {
	Email    string
	Auth0Sub string
}

func (f Filter) matches(r *Record) bool {
	if f.Email != "" && r.Email != f.Email {
		return false
	}
	if f.Auth0Sub != "" && r.Auth0Sub != f.Auth0Sub {
		return false
	}
	return true
}

// Update is a partial update. Nil pointers and nil slices leave the field
// untouched; Append* slices are added to the end of the stored lists.
type Update struct {
	Name          *string
	Email         *string
	Auth0Sub      *string
	AppendContext []ContextEntry
	AppendUploads []Upload
	ChatHistory   json.RawMessage
}

func (u Update) apply(r *Record) {
	if u.Name != nil {
		r.Name = *u.Name
	}
	if u.Email != nil {
		r.Email = *u.Email
	}
	if u.Auth0Sub != nil {
		r.Auth0Sub = *u.Auth0Sub
	}
	if len(u.AppendContext) > 0 {
		r.Context = append(r.Context, u.AppendContext...)
	}
	if len(u.AppendUploads) > 0 {
		r.Uploads = append(r.Uploads, u.AppendUploads...)
	}
	if u.ChatHistory != nil {
		r.ChatHistory = append(json.RawMessage(nil), u.ChatHistory...)
	}
}

func cloneRecord(r *Record) *Record {
	c := *r
	c.Context = append([]ContextEntry(nil), r.Context...)
	c.Uploads = append([]Upload(nil), r.Uploads...)
	c.ChatHistory = append(json.RawMessage(nil), r.ChatHistory...)
	return &c
}

func normalizeEmpty(r *Record) {
	if r.Context == nil {
		r.Context = []ContextEntry{}
	}
	if r.Uploads == nil {
		r.Uploads = []Upload{}
	}
	if len(r.ChatHistory) == 0 {
		r.ChatHistory = json.RawMessage("[]")
	}
}
