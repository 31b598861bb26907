package mongostore

import (
	"context"

	"sneakernet/internal/model"
	"sneakernet/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const keysDocID = "nostr_keys"

type (
	Store struct {
		client   *mongo.Client
		keys     *mongo.Collection
		contacts *mongo.Collection
	}

	keysDoc struct {
		ID               string `bson:"_id"`
		model.StoredKeys `bson:",inline"`
	}

	contactDoc struct {
		Position      int `bson:"position"`
		model.Contact `bson:",inline"`
	}
)

var _ repository.Store = (*Store)(nil)

func New(client *mongo.Client, db *mongo.Database) *Store {
	return &Store{
		client:   client,
		keys:     db.Collection("keys"),
		contacts: db.Collection("contacts"),
	}
}

func (s *Store) LoadKeys(ctx context.Context) (*model.StoredKeys, error) {
	var doc keysDoc
	err := s.keys.FindOne(ctx, bson.M{"_id": keysDocID}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	return &doc.StoredKeys, nil
}

func (s *Store) SaveKeys(ctx context.Context, keys model.StoredKeys) error {
	_, err := s.keys.ReplaceOne(ctx,
		bson.M{"_id": keysDocID},
		keysDoc{ID: keysDocID, StoredKeys: keys},
		options.Replace().SetUpsert(true),
	)
	return err
}

func (s *Store) LoadContacts(ctx context.Context) ([]model.Contact, error) {
	cur, err := s.contacts.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "position", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var docs []contactDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}

	contacts := make([]model.Contact, 0, len(docs))
	for _, d := range docs {
		contacts = append(contacts, d.Contact)
	}
	return contacts, nil
}

// SaveContacts replaces the whole collection, keeping the slice order in
// the position field.
func (s *Store) SaveContacts(ctx context.Context, contacts []model.Contact) error {
	if _, err := s.contacts.DeleteMany(ctx, bson.M{}); err != nil {
		return err
	}
	if len(contacts) == 0 {
		return nil
	}

	docs := make([]any, 0, len(contacts))
	for i, c := range contacts {
		docs = append(docs, contactDoc{Position: i, Contact: c})
	}
	_, err := s.contacts.InsertMany(ctx, docs)
	return err
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
