package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	contentCollection = "content_items"
	userCollection    = "user_records"
)

// Document-store backend. Every counter mutation is a single-document update ($inc or an update pipeline), so it is atomic without transactions.
type MongoStore struct {
	client  *mongo.Client
	content *mongo.Collection
	users   *mongo.Collection
}

var _ Store = (*MongoStore)(nil)

// Connects to the given mongodb:// URI and ensures indexes exist. An empty database name defaults to "steward".
func NewMongoStore(ctx context.Context, uri, database string) (*MongoStore, error) {
	if database == "" {
		database = "steward"
	}
	serverAPI := options.ServerAPI(options.ServerAPIVersion1)
	opts := options.Client().ApplyURI(uri).SetServerAPIOptions(serverAPI)

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, opts)
	if err != nil {
		return nil, fmt.Errorf("connecting to mongodb: %w", err)
	}
	if err := client.Database("admin").RunCommand(connectCtx, bson.D{{Key: "ping", Value: 1}}).Err(); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("pinging mongodb: %w", err)
	}

	db := client.Database(database)
	s := &MongoStore{
		client:  client,
		content: db.Collection(contentCollection),
		users:   db.Collection(userCollection),
	}
	if err := s.ensureIndexes(connectCtx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	_, err := s.content.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "parentId", Value: 1}, {Key: "_id", Value: 1}}},
		{Keys: bson.D{{Key: "postId", Value: 1}}},
		{Keys: bson.D{{Key: "authorId", Value: 1}, {Key: "kind", Value: 1}, {Key: "createdAt", Value: 1}}},
		{Keys: bson.D{{Key: "kind", Value: 1}, {Key: "createdAt", Value: 1}}},
		{Keys: bson.D{{Key: "moderationStatus", Value: 1}, {Key: "updatedAt", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("creating content indexes: %w", err)
	}
	_, err = s.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "createdAt", Value: 1}}},
		{Keys: bson.D{{Key: "reputationScore", Value: 1}, {Key: "lastActivityAt", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("creating user indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *MongoStore) CreateContent(ctx context.Context, item *ContentItem) error {
	if item.ID == "" {
		item.ID = NewID()
	}
	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	if item.UpdatedAt.IsZero() {
		item.UpdatedAt = item.CreatedAt
	}
	_, err := s.content.InsertOne(ctx, item)
	return err
}

func (s *MongoStore) GetContent(ctx context.Context, id string) (*ContentItem, error) {
	var item ContentItem
	err := s.content.FindOne(ctx, bson.M{"_id": id}).Decode(&item)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if item.Kind == KindComment {
		children, err := s.ListChildIDs(ctx, id)
		if err != nil {
			return nil, err
		}
		item.ChildIDs = children
	}
	return &item, nil
}

func (s *MongoStore) ListChildIDs(ctx context.Context, parentID string) ([]string, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetProjection(bson.D{{Key: "_id", Value: 1}})
	cur, err := s.content.Find(ctx, bson.M{"parentId": parentID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	ids := []string{}
	for cur.Next(ctx) {
		var doc struct {
			ID string `bson:"_id"`
		}
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		ids = append(ids, doc.ID)
	}
	return ids, cur.Err()
}

func (s *MongoStore) ListPostComments(ctx context.Context, postID string) ([]ContentItem, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetProjection(bson.D{
			{Key: "_id", Value: 1}, {Key: "kind", Value: 1}, {Key: "authorId", Value: 1}, {Key: "postId", Value: 1},
			{Key: "parentId", Value: 1}, {Key: "depth", Value: 1}, {Key: "moderationStatus", Value: 1},
		})
	cur, err := s.content.Find(ctx, bson.M{"postId": postID, "kind": string(KindComment)}, opts)
	if err != nil {
		return nil, err
	}
	var items []ContentItem
	if err := cur.All(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *MongoStore) UpdateModeration(ctx context.Context, id string, status Status, reason string) error {
	res, err := s.content.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"moderationStatus": string(status),
		"moderationReason": reason,
		"isModerated":      true,
		"updatedAt":        time.Now().UTC(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

var contentCounterBSON = map[ContentCounter]string{
	CounterLikes:    "likeCount",
	CounterDislikes: "dislikeCount",
	CounterComments: "commentCount",
}

// update-pipeline expression for field + delta, clamped at zero when clamp is set
func addExpr(field string, delta int64, clamp bool) bson.D {
	sum := bson.D{{Key: "$add", Value: bson.A{"$" + field, delta}}}
	if !clamp {
		return sum
	}
	return bson.D{{Key: "$max", Value: bson.A{0, sum}}}
}

func (s *MongoStore) IncrementContent(ctx context.Context, id string, counter ContentCounter, delta int64) error {
	field, ok := contentCounterBSON[counter]
	if !ok {
		return fmt.Errorf("unknown content counter: %s", counter)
	}
	var update any
	if delta >= 0 {
		update = bson.M{"$inc": bson.M{field: delta}}
	} else {
		update = mongo.Pipeline{{{Key: "$set", Value: bson.D{{Key: field, Value: addExpr(field, delta, true)}}}}}
	}
	res, err := s.content.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) ReportContent(ctx context.Context, id string, threshold int64) (*ContentItem, error) {
	// fields in one $set stage all read the input document, so the condition compares the post-increment count
	next := bson.D{{Key: "$add", Value: bson.A{"$reportCount", 1}}}
	update := mongo.Pipeline{{{Key: "$set", Value: bson.D{
		{Key: "reportCount", Value: next},
		{Key: "moderationStatus", Value: bson.D{{Key: "$cond", Value: bson.A{
			bson.D{{Key: "$gte", Value: bson.A{next, threshold}}},
			string(StatusFlagged),
			"$moderationStatus",
		}}}},
		{Key: "updatedAt", Value: time.Now().UTC()},
	}}}}
	res, err := s.content.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return nil, err
	}
	if res.MatchedCount == 0 {
		return nil, ErrNotFound
	}
	return s.GetContent(ctx, id)
}

func (s *MongoStore) SetLocked(ctx context.Context, id string, locked bool) error {
	res, err := s.content.UpdateOne(ctx,
		bson.M{"_id": id, "kind": string(KindPost)},
		bson.M{"$set": bson.M{"isLocked": locked, "updatedAt": time.Now().UTC()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) DeleteContent(ctx context.Context, id string) error {
	res, err := s.content.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) CountByAuthorSince(ctx context.Context, authorID int64, kind Kind, since time.Time) (int64, error) {
	return s.content.CountDocuments(ctx, bson.M{
		"authorId":  authorID,
		"kind":      string(kind),
		"createdAt": bson.M{"$gte": since.UTC()},
	})
}

func (s *MongoStore) ListRejectedBefore(ctx context.Context, cutoff time.Time, limit int) ([]ContentItem, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}).SetLimit(int64(limit))
	cur, err := s.content.Find(ctx, bson.M{
		"moderationStatus": string(StatusRejected),
		"updatedAt":        bson.M{"$lt": cutoff.UTC()},
	}, opts)
	if err != nil {
		return nil, err
	}
	var items []ContentItem
	if err := cur.All(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *MongoStore) CountByStatus(ctx context.Context, kind Kind, start, end time.Time) (map[Status]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"kind":      string(kind),
			"createdAt": bson.M{"$gte": start.UTC(), "$lt": end.UTC()},
		}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$moderationStatus"},
			{Key: "n", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}
	cur, err := s.content.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	var rows []struct {
		Status string `bson:"_id"`
		N      int64  `bson:"n"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	out := emptyStatusCounts()
	for _, r := range rows {
		out[Status(r.Status)] = r.N
	}
	return out, nil
}

func (s *MongoStore) ensureUser(ctx context.Context, userID int64) (LookupResult, error) {
	now := time.Now().UTC()
	onInsert := bson.M{
		"reputationScore": int64(0),
		"badges":          bson.A{},
		"lastActivityAt":  now,
		"createdAt":       now,
		"updatedAt":       now,
	}
	for field, name := range userFieldBSON {
		if field != FieldReputation {
			onInsert[name] = int64(0)
		}
	}
	res, err := s.users.UpdateOne(ctx,
		bson.M{"_id": userID},
		bson.M{"$setOnInsert": onInsert},
		options.Update().SetUpsert(true),
	)
	if mongo.IsDuplicateKeyError(err) {
		// lost a concurrent upsert race; the record exists now
		return Found, nil
	}
	if err != nil {
		return Found, err
	}
	if res.UpsertedCount > 0 {
		return Created, nil
	}
	return Found, nil
}

func (s *MongoStore) GetOrCreateUser(ctx context.Context, userID int64) (*UserRecord, LookupResult, error) {
	result, err := s.ensureUser(ctx, userID)
	if err != nil {
		return nil, result, err
	}
	u, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, result, err
	}
	return u, result, nil
}

func (s *MongoStore) GetUser(ctx context.Context, userID int64) (*UserRecord, error) {
	var u UserRecord
	err := s.users.FindOne(ctx, bson.M{"_id": userID}).Decode(&u)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if u.Badges == nil {
		u.Badges = []string{}
	}
	return &u, nil
}

func (s *MongoStore) IncrementUser(ctx context.Context, userID int64, deltas map[UserField]int64) (*UserRecord, error) {
	now := time.Now().UTC()
	set := bson.D{
		{Key: "lastActivityAt", Value: now},
		{Key: "updatedAt", Value: now},
	}
	for field, delta := range deltas {
		name, ok := userFieldBSON[field]
		if !ok {
			return nil, fmt.Errorf("unknown user field: %s", field)
		}
		set = append(set, bson.E{Key: name, Value: addExpr(name, delta, field != FieldReputation)})
	}
	if _, err := s.ensureUser(ctx, userID); err != nil {
		return nil, err
	}
	_, err := s.users.UpdateOne(ctx, bson.M{"_id": userID}, mongo.Pipeline{{{Key: "$set", Value: set}}})
	if err != nil {
		return nil, err
	}
	return s.GetUser(ctx, userID)
}

func (s *MongoStore) AwardBadge(ctx context.Context, userID int64, name string, bonus int64) (bool, error) {
	if _, err := s.ensureUser(ctx, userID); err != nil {
		return false, err
	}
	// the $ne guard makes the grant and its bonus a single conditional write
	res, err := s.users.UpdateOne(ctx,
		bson.M{"_id": userID, "badges": bson.M{"$ne": name}},
		bson.M{
			"$push": bson.M{"badges": name},
			"$inc":  bson.M{"reputationScore": bonus},
			"$set":  bson.M{"updatedAt": time.Now().UTC()},
		},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

func (s *MongoStore) CountUsersInRange(ctx context.Context, start, end time.Time) (*UserRangeCounts, error) {
	var out UserRangeCounts
	var err error
	out.NewUsers, err = s.users.CountDocuments(ctx, bson.M{
		"createdAt": bson.M{"$gte": start.UTC(), "$lt": end.UTC()},
	})
	if err != nil {
		return nil, err
	}
	out.LowReputationUsers, err = s.users.CountDocuments(ctx, bson.M{
		"reputationScore": bson.M{"$lt": 0},
		"lastActivityAt":  bson.M{"$gte": start.UTC(), "$lt": end.UTC()},
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
