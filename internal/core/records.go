package core

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"

	"github.com/eta-study/eta-server/internal/history"
	"github.com/eta-study/eta-server/internal/store"
)

// records wraps the store with the lookups every service shares. Mutations
// always target the newest record for an eta id.
type records struct {
	store store.Store
}

// load returns the record at uploadDate, or the newest one when uploadDate
// is empty.
func (r records) load(ctx context.Context, etaID, uploadDate string) (*store.Record, error) {
	if strings.TrimSpace(etaID) == "" {
		return nil, InvalidInput("eta_id is required")
	}
	var (
		rec *store.Record
		err error
	)
	if uploadDate == "" {
		rec, err = r.store.Latest(ctx, etaID)
	} else {
		rec, err = r.store.Get(ctx, store.Key{EtaID: etaID, UploadDate: uploadDate})
	}
	if err != nil {
		return nil, storeError(err, "user")
	}
	return rec, nil
}

// thread loads the newest record for etaID and locates chatID in its
// normalized history.
func (r records) thread(ctx context.Context, etaID, chatID string) (*store.Record, []history.Thread, int, error) {
	if strings.TrimSpace(chatID) == "" {
		return nil, nil, -1, InvalidInput("chatID is required")
	}
	rec, err := r.load(ctx, etaID, "")
	if err != nil {
		return nil, nil, -1, err
	}
	threads := history.Normalize(rec.ChatHistory)
	idx := history.Find(threads, chatID)
	if idx < 0 {
		return nil, nil, -1, NotFound("thread %s not found", chatID)
	}
	return rec, threads, idx, nil
}

func (r records) update(ctx context.Context, key store.Key, u store.Update) (*store.Record, error) {
	rec, err := r.store.Update(ctx, key, u)
	if err != nil {
		return nil, storeError(err, "user")
	}
	return rec, nil
}

// saveThreads replaces the stored chat history with threads.
func (r records) saveThreads(ctx context.Context, key store.Key, threads []history.Thread) error {
	raw, err := history.Encode(threads)
	if err != nil {
		return Storage("failed to encode chat history", err)
	}
	_, err = r.update(ctx, key, store.Update{ChatHistory: raw})
	return err
}

// canonicalHistory returns the encoded normalized history and whether it
// differs from what is stored.
func canonicalHistory(raw json.RawMessage) ([]history.Thread, json.RawMessage, bool) {
	threads := history.Normalize(raw)
	encoded, err := history.Encode(threads)
	if err != nil {
		return threads, nil, false
	}
	var stored bytes.Buffer
	if err := json.Compact(&stored, raw); err != nil {
		return threads, encoded, true
	}
	return threads, encoded, !bytes.Equal(stored.Bytes(), encoded)
}
