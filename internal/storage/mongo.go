package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/khlemanenka99-ai/news-portal/internal/types"
)

// MongoStore keeps news, categories and authors in MongoDB collections.
type MongoStore struct {
	client     *mongo.Client
	news       *mongo.Collection
	categories *mongo.Collection
	authors    *mongo.Collection
	now        func() time.Time
	logger     *slog.Logger
}

type newsDoc struct {
	ID               primitive.ObjectID `bson:"_id,omitempty"`
	Title            string             `bson:"title"`
	Body             string             `bson:"body"`
	ImageURL         string             `bson:"image_url"`
	Author           string             `bson:"author"`
	CategoryID       int                `bson:"category_id"`
	Status           string             `bson:"status"`
	Views            int64              `bson:"views"`
	ExternalAuthorID string             `bson:"external_author_id"`
	CreatedAt        time.Time          `bson:"created_at"`
	UpdatedAt        time.Time          `bson:"updated_at"`
}

func (d *newsDoc) item() *types.NewsItem {
	return &types.NewsItem{
		ID:               d.ID.Hex(),
		Title:            d.Title,
		Body:             d.Body,
		ImageURL:         d.ImageURL,
		Author:           d.Author,
		CategoryID:       d.CategoryID,
		Status:           types.ModerationStatus(d.Status),
		Views:            d.Views,
		ExternalAuthorID: d.ExternalAuthorID,
		CreatedAt:        d.CreatedAt.UTC(),
		UpdatedAt:        d.UpdatedAt.UTC(),
	}
}

type categoryDoc struct {
	ID   int    `bson:"_id"`
	Name string `bson:"name"`
}

type authorDoc struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	ExternalID int64              `bson:"external_id"`
	Handle     string             `bson:"handle"`
}

// NewMongoStore connects, pings and creates the indexes.
func NewMongoStore(ctx context.Context, uri, database string, logger *slog.Logger) (*MongoStore, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongodb connect: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongodb ping: %w", err)
	}

	db := client.Database(database)
	s := &MongoStore{
		client:     client,
		news:       db.Collection("news"),
		categories: db.Collection("categories"),
		authors:    db.Collection("external_authors"),
		now:        func() time.Time { return time.Now().UTC() },
		logger:     logger.With("component", "mongo_store"),
	}
	if err := s.ensureIndexes(connectCtx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.news.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "title", Value: 1}, {Key: "category_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: -1}},
		},
	})
	if err != nil {
		return fmt.Errorf("mongodb news indexes: %w", err)
	}
	_, err = s.authors.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "external_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("mongodb author indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) Name() string { return "mongodb" }

func (s *MongoStore) UpsertScraped(ctx context.Context, item *types.NewsItem, refresh bool) (types.UpsertOutcome, string, error) {
	outcome, id, err := s.upsert(ctx, item, refresh)
	// two concurrent upserts of a new key: the loser hits the unique index
	if mongo.IsDuplicateKeyError(err) {
		outcome, id, err = s.upsert(ctx, item, refresh)
	}
	return outcome, id, wrap(s.Name(), "UpsertScraped", err)
}

func (s *MongoStore) upsert(ctx context.Context, item *types.NewsItem, refresh bool) (types.UpsertOutcome, string, error) {
	now := s.now()
	created := item.CreatedAt
	if created.IsZero() {
		created = now
	}

	onInsert := bson.M{
		"status":             string(item.Status),
		"views":              int64(0),
		"external_author_id": item.ExternalAuthorID,
		"created_at":         created.UTC(),
	}
	mutable := bson.M{
		"body":       item.Body,
		"image_url":  item.ImageURL,
		"author":     item.Author,
		"updated_at": now,
	}
	update := bson.M{}
	if refresh {
		update["$set"] = mutable
	} else {
		for k, v := range mutable {
			onInsert[k] = v
		}
	}
	update["$setOnInsert"] = onInsert

	filter := bson.M{"title": item.Title, "category_id": item.CategoryID}
	res, err := s.news.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return "", "", err
	}
	if res.UpsertedID != nil {
		oid, _ := res.UpsertedID.(primitive.ObjectID)
		return types.OutcomeCreated, oid.Hex(), nil
	}

	var doc newsDoc
	err = s.news.FindOne(ctx, filter, options.FindOne().SetProjection(bson.M{"_id": 1})).Decode(&doc)
	if err != nil {
		return "", "", err
	}
	if refresh {
		return types.OutcomeUpdated, doc.ID.Hex(), nil
	}
	return types.OutcomeSkipped, doc.ID.Hex(), nil
}

func (s *MongoStore) Create(ctx context.Context, item *types.NewsItem) (string, error) {
	now := s.now()
	doc := newsDoc{
		Title:            item.Title,
		Body:             item.Body,
		ImageURL:         item.ImageURL,
		Author:           item.Author,
		CategoryID:       item.CategoryID,
		Status:           string(item.Status),
		ExternalAuthorID: item.ExternalAuthorID,
		CreatedAt:        item.CreatedAt.UTC(),
		UpdatedAt:        now,
	}
	if item.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}

	res, err := s.news.InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return "", ErrDuplicate
	}
	if err != nil {
		return "", wrap(s.Name(), "Create", err)
	}
	oid, _ := res.InsertedID.(primitive.ObjectID)
	return oid.Hex(), nil
}

func (s *MongoStore) Get(ctx context.Context, id string) (*types.NewsItem, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	var doc newsDoc
	err = s.news.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, wrap(s.Name(), "Get", err)
	}
	return doc.item(), nil
}

func (s *MongoStore) List(ctx context.Context, f Filter) (*Page, error) {
	filter := bson.M{}
	if f.Status != "" {
		filter["status"] = string(f.Status)
	}
	if f.CategoryID != 0 {
		filter["category_id"] = f.CategoryID
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		re := primitive.Regex{Pattern: regexp.QuoteMeta(q), Options: "i"}
		filter["$or"] = bson.A{bson.M{"title": re}, bson.M{"body": re}}
	}

	total, err := s.news.CountDocuments(ctx, filter)
	if err != nil {
		return nil, wrap(s.Name(), "List", err)
	}

	page, pages, perPage, offset := paginate(f, int(total))
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(perPage))

	cur, err := s.news.Find(ctx, filter, opts)
	if err != nil {
		return nil, wrap(s.Name(), "List", err)
	}
	defer cur.Close(ctx)

	items := []types.NewsItem{}
	for cur.Next(ctx) {
		var doc newsDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, wrap(s.Name(), "List", err)
		}
		items = append(items, *doc.item())
	}
	if err := cur.Err(); err != nil {
		return nil, wrap(s.Name(), "List", err)
	}
	return &Page{Items: items, Total: int(total), Page: page, Pages: pages, PerPage: perPage}, nil
}

func (s *MongoStore) ExistsByKey(ctx context.Context, key types.NewsKey) (bool, error) {
	n, err := s.news.CountDocuments(ctx,
		bson.M{"title": key.Title, "category_id": key.CategoryID},
		options.Count().SetLimit(1))
	if err != nil {
		return false, wrap(s.Name(), "ExistsByKey", err)
	}
	return n > 0, nil
}

func (s *MongoStore) IncrementViews(ctx context.Context, id string) (int64, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return 0, ErrNotFound
	}
	var doc newsDoc
	err = s.news.FindOneAndUpdate(ctx,
		bson.M{"_id": oid},
		bson.M{"$inc": bson.M{"views": 1}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, wrap(s.Name(), "IncrementViews", err)
	}
	return doc.Views, nil
}

func (s *MongoStore) SetStatus(ctx context.Context, id string, status types.ModerationStatus) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	res, err := s.news.UpdateOne(ctx, bson.M{"_id": oid},
		bson.M{"$set": bson.M{"status": string(status), "updated_at": s.now()}})
	if err != nil {
		return wrap(s.Name(), "SetStatus", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) EnsureCategories(ctx context.Context, cats []types.Category) error {
	for _, c := range cats {
		_, err := s.categories.UpdateOne(ctx,
			bson.M{"_id": c.ID},
			bson.M{"$set": bson.M{"name": c.Name}},
			options.Update().SetUpsert(true))
		if err != nil {
			return wrap(s.Name(), "EnsureCategories", err)
		}
	}
	return nil
}

func (s *MongoStore) Categories(ctx context.Context) ([]types.Category, error) {
	cur, err := s.categories.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, wrap(s.Name(), "Categories", err)
	}
	var docs []categoryDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, wrap(s.Name(), "Categories", err)
	}
	cats := make([]types.Category, 0, len(docs))
	for _, d := range docs {
		cats = append(cats, types.Category{ID: d.ID, Name: d.Name})
	}
	return cats, nil
}

func (s *MongoStore) GetOrCreateAuthor(ctx context.Context, externalID int64, handle string) (*types.ExternalAuthorRef, error) {
	update := bson.M{"$setOnInsert": bson.M{"external_id": externalID}}
	if handle != "" {
		update["$set"] = bson.M{"handle": handle}
	} else {
		update["$setOnInsert"] = bson.M{"external_id": externalID, "handle": ""}
	}

	var doc authorDoc
	err := s.authors.FindOneAndUpdate(ctx,
		bson.M{"external_id": externalID},
		update,
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		return nil, wrap(s.Name(), "GetOrCreateAuthor", err)
	}
	return &types.ExternalAuthorRef{ID: doc.ID.Hex(), ExternalID: doc.ExternalID, Handle: doc.Handle}, nil
}

func (s *MongoStore) Close() error {
	s.logger.Info("mongodb storage closing")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
