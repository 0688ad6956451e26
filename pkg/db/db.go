package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

type Database interface {
	GetToken(ctx context.Context, chatID int64) (string, error)
	PutToken(ctx context.Context, chatID int64, token string) error
	DeleteToken(ctx context.Context, chatID int64) error
	GetSession(ctx context.Context, chatID int64) (Session, error)
	SaveSession(ctx context.Context, session Session) error
	Close(ctx context.Context) error
	Ping(ctx context.Context) error
	GetStats(ctx context.Context) (*Stats, error)
}

type Stats struct {
	StoredTokens  int64 `json:"stored_tokens"`
	Sessions      int64 `json:"sessions"`
	AwaitingToken int64 `json:"awaiting_token"`
}

// Session is the per-conversation state that outlives a single update:
// the credential-capture flag and the position inside a delete flow.
// Persisting it means multi-step flows survive a process restart.
type Session struct {
	ChatID             int64  `bson:"chat_id"`
	AwaitingToken      bool   `bson:"awaiting_token"`
	PendingPage        *int   `bson:"pending_page,omitempty"`
	PendingDeleteIndex *int   `bson:"pending_delete_index,omitempty"`
	UpdatedAt          int64  `bson:"updated_at"`
}

type storedToken struct {
	ChatID    int64  `bson:"chat_id"`
	Token     string `bson:"token"`
	UpdatedAt int64  `bson:"updated_at"`
}

type db struct {
	conn *mongo.Client
	log  *zap.Logger

	// Collections
	tokensCollection   *mongo.Collection
	sessionsCollection *mongo.Collection
	dbname             string
}

func NewDatabase(ctx context.Context, log *zap.Logger, url, dbname string) (Database, error) {
	conn, err := mongo.Connect(ctx, options.Client().ApplyURI(url))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// Verify connection
	if err := conn.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return &db{
		conn:   conn,
		log:    log,
		dbname: dbname,

		tokensCollection:   conn.Database(dbname).Collection("tokens"),
		sessionsCollection: conn.Database(dbname).Collection("sessions"),
	}, nil
}

func (d *db) Close(ctx context.Context) error {
	return d.conn.Disconnect(ctx)
}

func (d *db) Ping(ctx context.Context) error {
	return d.conn.Ping(ctx, nil)
}

// GetToken returns mongo.ErrNoDocuments when the conversation never
// stored a credential.
func (d *db) GetToken(ctx context.Context, chatID int64) (string, error) {
	var stored storedToken
	err := d.tokensCollection.FindOne(ctx, bson.M{"chat_id": chatID}).Decode(&stored)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return "", err
		}
		return "", fmt.Errorf("failed to get token: %w", err)
	}

	return stored.Token, nil
}

func (d *db) PutToken(ctx context.Context, chatID int64, token string) error {
	_, err := d.tokensCollection.UpdateOne(ctx,
		bson.M{"chat_id": chatID},
		bson.M{"$set": storedToken{
			ChatID:    chatID,
			Token:     token,
			UpdatedAt: time.Now().Unix(),
		}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to store token: %w", err)
	}

	return nil
}

func (d *db) DeleteToken(ctx context.Context, chatID int64) error {
	_, err := d.tokensCollection.DeleteOne(ctx, bson.M{"chat_id": chatID})
	if err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}

	return nil
}

// GetSession creates the session lazily: an unknown chat gets a zero
// session instead of an error.
func (d *db) GetSession(ctx context.Context, chatID int64) (Session, error) {
	var session Session
	err := d.sessionsCollection.FindOne(ctx, bson.M{"chat_id": chatID}).Decode(&session)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return Session{ChatID: chatID}, nil
		}
		return Session{}, fmt.Errorf("failed to get session: %w", err)
	}

	return session, nil
}

func (d *db) SaveSession(ctx context.Context, session Session) error {
	session.UpdatedAt = time.Now().Unix()

	_, err := d.sessionsCollection.ReplaceOne(ctx,
		bson.M{"chat_id": session.ChatID},
		session,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	return nil
}

func (d *db) GetStats(ctx context.Context) (*Stats, error) {
	tokens, err := d.tokensCollection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to count tokens: %w", err)
	}

	sessions, err := d.sessionsCollection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to count sessions: %w", err)
	}

	awaiting, err := d.sessionsCollection.CountDocuments(ctx, bson.M{"awaiting_token": true})
	if err != nil {
		return nil, fmt.Errorf("failed to count awaiting sessions: %w", err)
	}

	return &Stats{
		StoredTokens:  tokens,
		Sessions:      sessions,
		AwaitingToken: awaiting,
	}, nil
}
