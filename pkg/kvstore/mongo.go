package kvstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	mlog   = Log.With("driver", "mongo")
	upsert = true
)

func KeyToString(k Key) string {
	return string(k)
}

// KvInMongo is the document stored for each key.
type KvInMongo struct {
	Key    string `bson:"_id"`
	Val    Val    `bson:"val"`
	RawKey Key    `bson:"raw"`
}

var (
	_ KVStore = (*MongoStore)(nil)
	_ Iter    = (*MongoIter)(nil)
	_ DB      = (*mongoDB)(nil)
)

type MongoStore struct {
	col *mongo.Collection
}

type MongoIter struct {
	ctx  context.Context
	cur  *mongo.Cursor
	data *KvInMongo
}

func (m *MongoIter) Next() bool {
	if !m.cur.Next(m.ctx) {
		m.data = nil
		return false
	}

	k := &KvInMongo{}
	if err := m.cur.Decode(k); err != nil {
		mlog.Errorw("decode data from cursor failed", "err", err)
		m.data = nil
		return false
	}

	m.data = k
	return true
}

func (m *MongoIter) Key() Key {
	if m.data == nil {
		return nil
	}

	return m.data.RawKey
}

func (m *MongoIter) View(_ context.Context, f func(Val) error) error {
	if m.data == nil {
		return ErrIterItemNotValid
	}

	return f(m.data.Val)
}

func (m *MongoIter) Close() {
	m.cur.Close(m.ctx)
}

func (m MongoStore) Get(ctx context.Context, key Key) (Val, error) {
	v := KvInMongo{}
	err := m.col.FindOne(ctx, bson.M{"_id": KeyToString(key)}).Decode(&v)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrKeyNotFound
	}

	if err != nil {
		return nil, err
	}

	return v.Val, nil
}

func (m MongoStore) Put(ctx context.Context, key Key, val Val) error {
	_, err := m.col.UpdateOne(ctx, bson.M{"_id": KeyToString(key)}, bson.M{"$set": KvInMongo{
		Key:    KeyToString(key),
		RawKey: key,
		Val:    val,
	}}, &options.UpdateOptions{
		Upsert: &upsert,
	})
	return err
}

func (m MongoStore) Del(ctx context.Context, key Key) error {
	_, err := m.col.DeleteOne(ctx, bson.M{"_id": KeyToString(key)})
	return err
}

func (m MongoStore) Scan(ctx context.Context, prefix Prefix) (Iter, error) {
	filter := bson.M{}
	if len(prefix) > 0 {
		filter = bson.M{"_id": primitive.Regex{Pattern: "^" + regexp.QuoteMeta(KeyToString(prefix))}}
	}

	cur, err := m.col.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}

	return &MongoIter{ctx: ctx, cur: cur}, nil
}

type mongoDB struct {
	client *mongo.Client
	inner  *mongo.Database
}

func (db *mongoDB) Run(context.Context) error {
	return nil
}

func (db *mongoDB) Close(ctx context.Context) error {
	return db.client.Disconnect(ctx)
}

func (db *mongoDB) OpenCollection(_ context.Context, name string) (KVStore, error) {
	return MongoStore{col: db.inner.Collection(name)}, nil
}

func OpenMongo(ctx context.Context, dsn string, dbName string) (DB, error) {
	client, err := mongo.NewClient(options.Client().ApplyURI(dsn).SetAppName("padme-cdr"))
	if err != nil {
		return nil, fmt.Errorf("new mongo client %s: %w", dsn, err)
	}

	if err = client.Connect(ctx); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", dsn, err)
	}

	return &mongoDB{client: client, inner: client.Database(dbName)}, nil
}
