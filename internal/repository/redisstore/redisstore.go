package redisstore

import (
	"context"
	"encoding/json"
	"fmt"

	"sneakernet/internal/model"
	"sneakernet/internal/repository"
	"sneakernet/internal/service/redis"
)

const (
	KeysKey     = "sneakernet:nostr_keys"
	ContactsKey = "sneakernet:contacts"
)

type (
	// Store keeps the identity as a JSON string and contacts as a list of
	// JSON documents, newest first.
	Store struct {
		redisService *redis.RedisService
	}
)

var _ repository.Store = (*Store)(nil)

func New(redisSvc *redis.RedisService) *Store {
	return &Store{redisService: redisSvc}
}

func (s *Store) LoadKeys(ctx context.Context) (*model.StoredKeys, error) {
	raw, err := s.redisService.Get(ctx, KeysKey)
	if redis.IsNil(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var keys model.StoredKeys
	if err := json.Unmarshal([]byte(raw), &keys); err != nil {
		return nil, fmt.Errorf("decode stored keys: %w", err)
	}
	return &keys, nil
}

func (s *Store) SaveKeys(ctx context.Context, keys model.StoredKeys) error {
	data, err := json.Marshal(keys)
	if err != nil {
		return err
	}
	return s.redisService.Set(ctx, KeysKey, data, 0)
}

func (s *Store) LoadContacts(ctx context.Context) ([]model.Contact, error) {
	items, err := s.redisService.LRange(ctx, ContactsKey)
	if err != nil {
		return nil, err
	}

	contacts := make([]model.Contact, 0, len(items))
	for _, item := range items {
		var c model.Contact
		if err := json.Unmarshal([]byte(item), &c); err != nil {
			return nil, fmt.Errorf("decode contact: %w", err)
		}
		contacts = append(contacts, c)
	}
	return contacts, nil
}

func (s *Store) SaveContacts(ctx context.Context, contacts []model.Contact) error {
	values := make([]any, 0, len(contacts))
	for _, c := range contacts {
		data, err := json.Marshal(c)
		if err != nil {
			return err
		}
		values = append(values, data)
	}
	return s.redisService.ReplaceList(ctx, ContactsKey, values...)
}

func (s *Store) Close(context.Context) error {
	return s.redisService.Close()
}
