package repository

import (
	"context"

	"sneakernet/internal/model"
)

// Store persists the long-term identity and the contact list.
type Store interface {
	// LoadKeys returns nil, nil when no identity has been saved.
	LoadKeys(ctx context.Context) (*model.StoredKeys, error)
	SaveKeys(ctx context.Context, keys model.StoredKeys) error
	// LoadContacts returns contacts newest first, or an empty slice.
	LoadContacts(ctx context.Context) ([]model.Contact, error)
	SaveContacts(ctx context.Context, contacts []model.Contact) error
	Close(ctx context.Context) error
}
