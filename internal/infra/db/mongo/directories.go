package mongo

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"adboard/internal/app/policies"
)

// AdDirectory resolves ad ownership from the marketplace's ads
// collection. Read-only from this subsystem's point of view.
type AdDirectory struct {
	col *mongo.Collection
}

func NewAdDirectory(db *mongo.Database) *AdDirectory {
	return &AdDirectory{col: db.Collection("ads")}
}

// OwnerOf batches the ownership lookup into one query; deleted ads are
// absent from the result rather than erroring.
func (d *AdDirectory) OwnerOf(ctx context.Context, adIDs []string) (map[string]string, error) {
	out := make(map[string]string, len(adIDs))
	if len(adIDs) == 0 {
		return out, nil
	}
	filter := bson.M{"_id": bson.M{"$in": adIDs}}
	opts := options.Find().SetProjection(bson.M{"owner_id": 1})
	cursor, err := d.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	for cursor.Next(ctx) {
		var doc struct {
			ID      string `bson:"_id"`
			OwnerID string `bson:"owner_id"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		if doc.OwnerID != "" {
			out[doc.ID] = doc.OwnerID
		}
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// UserDirectory reads and writes chat display metadata on the users
// collection, and resolves bearer tokens for the HTTP layer.
type UserDirectory struct {
	col *mongo.Collection
}

func NewUserDirectory(db *mongo.Database) *UserDirectory {
	col := db.Collection("users")
	_, _ = col.Indexes().CreateOne(context.Background(), mongo.IndexModel{
		Keys:    bson.D{{Key: "api_token", Value: 1}},
		Options: options.Index().SetUnique(true).SetSparse(true),
	})
	return &UserDirectory{col: col}
}

func (d *UserDirectory) DisplayNameOf(ctx context.Context, userID string) (string, error) {
	var doc struct {
		DisplayName string `bson:"chat_display_name"`
		Name        string `bson:"name"`
	}
	opts := options.FindOne().SetProjection(bson.M{"chat_display_name": 1, "name": 1})
	if err := d.col.FindOne(ctx, bson.M{"_id": userID}, opts).Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return "", policies.ErrUserNotFound
		}
		return "", err
	}
	if doc.DisplayName != "" {
		return doc.DisplayName, nil
	}
	return doc.Name, nil
}

func (d *UserDirectory) SetDisplayName(ctx context.Context, userID, name string) error {
	res, err := d.col.UpdateByID(ctx, userID, bson.M{"$set": bson.M{"chat_display_name": name}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return policies.ErrUserNotFound
	}
	return nil
}

// ResolveToken maps a bearer token to a user id.
func (d *UserDirectory) ResolveToken(ctx context.Context, token string) (string, error) {
	var doc struct {
		ID string `bson:"_id"`
	}
	opts := options.FindOne().SetProjection(bson.M{"_id": 1})
	if err := d.col.FindOne(ctx, bson.M{"api_token": token}, opts).Decode(&doc); err != nil {
		if err == mongo.ErrNoDocuments {
			return "", policies.ErrUserNotFound
		}
		return "", err
	}
	return doc.ID, nil
}
