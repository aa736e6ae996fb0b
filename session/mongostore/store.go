// Package mongostore provides a session.Store backed by MongoDB, adapted
// from the teacher's Mongo-backed session store to the Content/Event/state
// model used by this runtime. Sessions and their event logs are persisted in
// a single document per (appName, userId, sessionId) so AppendEvent and
// ApplyStateDelta can be applied atomically with one update operation.
package mongostore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/relaykit/agentcore/event"
	"github.com/relaykit/agentcore/session"
)

const defaultCollection = "agent_sessions"

// Options configures the Mongo-backed store.
type Options struct {
	Client     *mongo.Client
	Database   string
	Collection string
	Timeout    time.Duration
}

// Store implements session.Store against a MongoDB collection.
type Store struct {
	coll    *mongo.Collection
	timeout time.Duration
}

// sessionDoc is the on-disk document shape. Events are stored as
// JSON-encoded blobs rather than native BSON subdocuments because Content's
// Part field is a Go interface; event.Event already knows how to encode and
// decode itself through encoding/json, so the document defers to it instead
// of re-deriving a BSON encoding for the same tagged union.
type sessionDoc struct {
	Key            string         `bson:"_id"`
	AppName        string         `bson:"app_name"`
	UserID         string         `bson:"user_id"`
	SessionID      string         `bson:"session_id"`
	State          map[string]any `bson:"state"`
	Events         [][]byte       `bson:"events"`
	LastUpdateTime time.Time      `bson:"last_update_time"`
}

// New constructs a Store. It creates no index: the composite key is stored
// as the document _id, whose built-in index keeps it unique.
func New(ctx context.Context, opts Options) (*Store, error) {
	if opts.Client == nil {
		return nil, errors.New("mongostore: client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("mongostore: database is required")
	}
	collName := opts.Collection
	if collName == "" {
		collName = defaultCollection
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	coll := opts.Client.Database(opts.Database).Collection(collName)
	return &Store{coll: coll, timeout: timeout}, nil
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

func (s *Store) CreateSession(ctx context.Context, appName, userID, sessionID string) (session.Session, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	key := session.Key(appName, userID, sessionID)
	doc := sessionDoc{
		Key:            key,
		AppName:        appName,
		UserID:         userID,
		SessionID:      sessionID,
		State:          map[string]any{},
		LastUpdateTime: time.Now().UTC(),
	}
	_, err := s.coll.InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return session.Session{}, session.ErrSessionExists
	}
	if err != nil {
		return session.Session{}, err
	}
	return toSession(doc)
}

func (s *Store) GetSession(ctx context.Context, appName, userID, sessionID string) (session.Session, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	var doc sessionDoc
	err := s.coll.FindOne(ctx, bson.M{"_id": session.Key(appName, userID, sessionID)}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return session.Session{}, session.ErrSessionNotFound
	}
	if err != nil {
		return session.Session{}, err
	}
	return toSession(doc)
}

func (s *Store) AppendEvent(ctx context.Context, appName, userID, sessionID string, ev *event.Event) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	update := bson.M{
		"$push": bson.M{"events": raw},
		"$set":  bson.M{"last_update_time": time.Now().UTC()},
	}
	if ev.Actions != nil {
		for k, v := range ev.Actions.StateDelta {
			update["$set"].(bson.M)["state."+k] = v
		}
	}
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": session.Key(appName, userID, sessionID)}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return session.ErrSessionNotFound
	}
	return nil
}

func (s *Store) ApplyStateDelta(ctx context.Context, appName, userID, sessionID string, delta map[string]any) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	set := bson.M{"last_update_time": time.Now().UTC()}
	for k, v := range delta {
		set["state."+k] = v
	}
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": session.Key(appName, userID, sessionID)}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return session.ErrSessionNotFound
	}
	return nil
}

func (s *Store) DeleteSession(ctx context.Context, appName, userID, sessionID string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	_, err := s.coll.DeleteOne(ctx, bson.M{"_id": session.Key(appName, userID, sessionID)})
	return err
}

func toSession(doc sessionDoc) (session.Session, error) {
	evts := make([]*event.Event, 0, len(doc.Events))
	for _, raw := range doc.Events {
		var ev event.Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			return session.Session{}, err
		}
		evts = append(evts, &ev)
	}
	return session.Session{
		ID:             doc.SessionID,
		AppName:        doc.AppName,
		UserID:         doc.UserID,
		Events:         evts,
		State:          doc.State,
		LastUpdateTime: doc.LastUpdateTime,
	}, nil
}
