package core

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/eta-study/eta-server/internal/history"
	"github.com/eta-study/eta-server/internal/store"
	"github.com/eta-study/eta-server/internal/utils"
)

// User is a material record with its chat history normalized.
type User struct {
	EtaID       string               `json:"EtaID"`
	UploadDate  string               `json:"UploadDate"`
	Name        string               `json:"Name"`
	Email       string               `json:"Email"`
	Auth0Sub    string               `json:"Auth0Sub,omitempty"`
	Context     []store.ContextEntry `json:"Context"`
	Uploads     []store.Upload       `json:"Uploads"`
	ChatHistory []history.Thread     `json:"ChatHistory"`
}

func newUser(rec *store.Record) *User {
	u := &User{
		EtaID:       rec.EtaID,
		UploadDate:  rec.UploadDate,
		Name:        rec.Name,
		Email:       rec.Email,
		Auth0Sub:    rec.Auth0Sub,
		Context:     rec.Context,
		Uploads:     rec.Uploads,
		ChatHistory: history.Normalize(rec.ChatHistory),
	}
	if u.Context == nil {
		u.Context = []store.ContextEntry{}
	}
	if u.Uploads == nil {
		u.Uploads = []store.Upload{}
	}
	return u
}

type UserService struct {
	records
	logger *zap.Logger
}

func NewUserService(s store.Store, logger *zap.Logger) *UserService {
	return &UserService{records: records{store: s}, logger: logger}
}

type CreateUserRequest struct {
	Name     string
	Email    string
	Auth0Sub string
}

func (s *UserService) CreateUser(ctx context.Context, req CreateUserRequest) (*User, error) {
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Email) == "" {
		return nil, InvalidInput("name and email are required")
	}
	return s.create(ctx, req)
}

func (s *UserService) create(ctx context.Context, req CreateUserRequest) (*User, error) {
	rec := &store.Record{
		EtaID:      utils.NewEtaID(),
		UploadDate: utils.Now(),
		Name:       strings.TrimSpace(req.Name),
		Email:      strings.TrimSpace(req.Email),
		Auth0Sub:   strings.TrimSpace(req.Auth0Sub),
	}
	if err := s.store.Put(ctx, rec); err != nil {
		return nil, Storage("failed to create user", err)
	}
	s.logger.Info("created user", zap.String("eta_id", rec.EtaID))
	return newUser(rec), nil
}

// GetUser returns the record at uploadDate, or the newest one when it is empty.
func (s *UserService) GetUser(ctx context.Context, etaID, uploadDate string) (*User, error) {
	rec, err := s.load(ctx, etaID, uploadDate)
	if err != nil {
		return nil, err
	}
	return newUser(rec), nil
}

func (s *UserService) GetContext(ctx context.Context, etaID, uploadDate string) ([]store.ContextEntry, error) {
	rec, err := s.load(ctx, etaID, uploadDate)
	if err != nil {
		return nil, err
	}
	if rec.Context == nil {
		return []store.ContextEntry{}, nil
	}
	return rec.Context, nil
}

type SyncRequest struct {
	EtaID    string
	Name     string
	Email    string
	Auth0Sub string
}

type SyncResult struct {
	User    *User
	Created bool
}

// SyncUser finds a record by eta id, then auth0 subject, then email, and
// reconciles profile drift and legacy chat history on the match. When nothing
// matches a new record is created.
func (s *UserService) SyncUser(ctx context.Context, req SyncRequest) (*SyncResult, error) {
	req.EtaID = strings.TrimSpace(req.EtaID)
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	req.Auth0Sub = strings.TrimSpace(req.Auth0Sub)

	rec, err := s.match(ctx, req)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		if req.Email == "" && req.Auth0Sub == "" {
			return nil, InvalidInput("email or auth0_sub is required")
		}
		name := req.Name
		if name == "" {
			name = req.Email
		}
		u, err := s.create(ctx, CreateUserRequest{Name: name, Email: req.Email, Auth0Sub: req.Auth0Sub})
		if err != nil {
			return nil, err
		}
		return &SyncResult{User: u, Created: true}, nil
	}

	var (
		upd     store.Update
		changed bool
	)
	if req.Name != "" && req.Name != rec.Name {
		upd.Name, changed = &req.Name, true
	}
	if req.Email != "" && req.Email != rec.Email {
		upd.Email, changed = &req.Email, true
	}
	if req.Auth0Sub != "" && req.Auth0Sub != rec.Auth0Sub {
		upd.Auth0Sub, changed = &req.Auth0Sub, true
	}
	if _, encoded, differs := canonicalHistory(rec.ChatHistory); differs && encoded != nil {
		upd.ChatHistory, changed = encoded, true
	}
	if !changed {
		return &SyncResult{User: newUser(rec)}, nil
	}

	updated, err := s.update(ctx, rec.Key(), upd)
	if err != nil {
		return nil, err
	}
	s.logger.Info("synced user", zap.String("eta_id", updated.EtaID))
	return &SyncResult{User: newUser(updated)}, nil
}

// match returns nil, nil when no record fits.
func (s *UserService) match(ctx context.Context, req SyncRequest) (*store.Record, error) {
	if req.EtaID != "" {
		rec, err := s.store.Latest(ctx, req.EtaID)
		switch {
		case err == nil:
			return rec, nil
		case !errors.Is(err, store.ErrNotFound):
			return nil, Storage("failed to look up user", err)
		}
	}
	for _, f := range []store.Filter{{Auth0Sub: req.Auth0Sub}, {Email: req.Email}} {
		if f.Auth0Sub == "" && f.Email == "" {
			continue
		}
		found, err := s.store.Scan(ctx, f)
		if err != nil {
			return nil, Storage("failed to look up user", err)
		}
		if len(found) > 0 {
			return &found[0], nil
		}
	}
	return nil, nil
}
