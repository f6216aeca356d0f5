package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoStore struct {
	DB       *mongo.Client
	Database string
}

func NewMongoStore(db *mongo.Client, database string) *MongoStore {
	return &MongoStore{DB: db, Database: database}
}

func (s *MongoStore) collection(name string) *mongo.Collection {
	return s.DB.Database(s.Database).Collection(name)
}

func (s *MongoStore) Get(ctx context.Context, collection, id string, out any) error {
	err := s.collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(out)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (s *MongoStore) Create(ctx context.Context, collection, id string, doc any) error {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}
	var m bson.M
	if err := bson.Unmarshal(raw, &m); err != nil {
		return err
	}
	m["_id"] = id
	m[VersionField] = int64(1)

	_, err = s.collection(collection).InsertOne(ctx, m)
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicate
	}
	return err
}

func (s *MongoStore) Patch(ctx context.Context, collection, id string, expectedVersion int64, p Patch) error {
	filter := bson.M{"_id": id}
	if expectedVersion >= 0 {
		filter[VersionField] = expectedVersion
	}

	update := bson.M{}
	if len(p.Set) > 0 {
		update["$set"] = bson.M(p.Set)
	}
	if len(p.Unset) > 0 {
		unset := bson.M{}
		for _, path := range p.Unset {
			unset[path] = ""
		}
		update["$unset"] = unset
	}
	if len(p.Push) > 0 {
		update["$push"] = bson.M(p.Push)
	}
	inc := bson.M{VersionField: int64(1)}
	for path, delta := range p.Inc {
		inc[path] = delta
	}
	update["$inc"] = inc
	if len(p.CurrentDate) > 0 {
		cd := bson.M{}
		for _, path := range p.CurrentDate {
			cd[path] = true
		}
		update["$currentDate"] = cd
	}

	// a conditional upsert may only create the document at version 0
	opts := options.Update()
	if p.Upsert && expectedVersion <= 0 {
		opts.SetUpsert(true)
	}
	res, err := s.collection(collection).UpdateOne(ctx, filter, update, opts)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			if expectedVersion >= 0 {
				// the version filter missed an existing document
				return ErrVersionConflict
			}
			return ErrDuplicate
		}
		return err
	}
	if res.MatchedCount > 0 || res.UpsertedCount > 0 {
		return nil
	}

	// nothing matched: tell a missing document from a moved version
	n, err := s.collection(collection).CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return ErrVersionConflict
}

func (s *MongoStore) Query(ctx context.Context, collection string, filters []Filter, order *OrderBy, out any) error {
	and := bson.A{}
	for _, f := range filters {
		switch f.Op {
		case OpEq:
			and = append(and, bson.M{f.Field: f.Value})
		case OpNe:
			and = append(and, bson.M{f.Field: bson.M{"$ne": f.Value}})
		case OpIn:
			and = append(and, bson.M{f.Field: bson.M{"$in": f.Values}})
		default:
			return fmt.Errorf("unsupported filter op %q", f.Op)
		}
	}
	query := bson.M{}
	if len(and) > 0 {
		query["$and"] = and
	}

	opts := options.Find()
	if order != nil {
		dir := 1
		if order.Desc {
			dir = -1
		}
		opts.SetSort(bson.D{{Key: order.Field, Value: dir}, {Key: "_id", Value: 1}})
	} else {
		opts.SetSort(bson.D{{Key: "_id", Value: 1}})
	}

	cursor, err := s.collection(collection).Find(ctx, query, opts)
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)
	return cursor.All(ctx, out)
}

// EnsureIndexes creates the unique indexes listed in UniqueIndexes.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	for collection, indexes := range UniqueIndexes {
		for _, fields := range indexes {
			keys := bson.D{}
			for _, f := range fields {
				keys = append(keys, bson.E{Key: f, Value: 1})
			}
			_, err := s.collection(collection).Indexes().CreateOne(ctx, mongo.IndexModel{
				Keys:    keys,
				Options: options.Index().SetUnique(true),
			})
			if err != nil {
				return fmt.Errorf("create index on %s: %w", collection, err)
			}
		}
	}
	return nil
}
