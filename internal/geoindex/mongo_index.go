package geoindex

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/resqnet/backend/internal/geo"
	"github.com/resqnet/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const volunteerLocationsCollection = "volunteer_locations"

// MongoIndex mirrors volunteer points into a 2dsphere-indexed collection and
// answers queries with $geoNear.
type MongoIndex struct {
	collection *mongo.Collection
}

func NewMongoIndex(db *mongo.Database) *MongoIndex {
	return &MongoIndex{collection: db.Collection(volunteerLocationsCollection)}
}

type locationDocument struct {
	ID           string       `bson:"_id"`
	Location     geoJSONPoint `bson:"location"`
	Role         string       `bson:"role"`
	Availability bool         `bson:"availability"`
}

type geoJSONPoint struct {
	Type        string    `bson:"type"`
	Coordinates []float64 `bson:"coordinates"`
}

// EnsureIndexes creates the 2dsphere index $geoNear requires.
func (m *MongoIndex) EnsureIndexes(ctx context.Context) error {
	_, err := m.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "location", Value: "2dsphere"}}},
		{Keys: bson.D{{Key: "role", Value: 1}, {Key: "availability", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("creating volunteer location indexes: %w", err)
	}
	return nil
}

func (m *MongoIndex) Nearby(ctx context.Context, q Query) ([]Match, error) {
	cursor, err := m.collection.Aggregate(ctx, nearbyPipeline(q))
	if err != nil {
		return nil, fmt.Errorf("running $geoNear: %w", err)
	}
	defer cursor.Close(ctx)

	matches := []Match{}
	for cursor.Next(ctx) {
		var doc struct {
			ID       string  `bson:"_id"`
			Distance float64 `bson:"distance"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decoding $geoNear result: %w", err)
		}
		if match, ok := matchFromResult(doc.ID, doc.Distance); ok {
			matches = append(matches, match)
		}
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterating $geoNear results: %w", err)
	}

	sortMatches(matches)
	return matches, nil
}

func (m *MongoIndex) Sync(ctx context.Context, user *models.User) error {
	if user == nil {
		return nil
	}
	doc, upsert := locationDocumentFor(user)
	if !upsert {
		if _, err := m.collection.DeleteOne(ctx, bson.M{"_id": doc.ID}); err != nil {
			return fmt.Errorf("removing volunteer location: %w", err)
		}
		return nil
	}
	_, err := m.collection.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upserting volunteer location: %w", err)
	}
	return nil
}

// locationDocumentFor builds the stored document for user. The bool is false
// when the user has no place in the collection and its entry must be deleted;
// only ID is set in that case.
func locationDocumentFor(user *models.User) (locationDocument, bool) {
	doc := locationDocument{ID: user.ID.String()}
	if !user.IsVolunteer() {
		return doc, false
	}
	coords := user.Location.Coordinates()
	doc.Location = geoJSONPoint{Type: "Point", Coordinates: coords[:]}
	doc.Role = string(user.Role)
	doc.Availability = user.VolunteerProfile.Availability
	return doc, true
}

// matchFromResult converts one $geoNear row. Rows whose _id is not a UUID were
// not written by Sync and are skipped.
func matchFromResult(id string, distance float64) (Match, bool) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return Match{}, false
	}
	return Match{VolunteerID: parsed, DistanceMeters: distance}, true
}

func nearbyPipeline(q Query) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$geoNear", Value: bson.D{
			{Key: "near", Value: bson.D{
				{Key: "type", Value: "Point"},
				{Key: "coordinates", Value: centerCoordinates(q.Center)},
			}},
			{Key: "distanceField", Value: "distance"},
			{Key: "maxDistance", Value: q.RadiusMeters},
			{Key: "query", Value: bson.D{
				{Key: "role", Value: string(models.UserRoleVolunteer)},
				{Key: "availability", Value: true},
			}},
			{Key: "spherical", Value: true},
		}}},
		{{Key: "$limit", Value: q.EffectiveLimit()}},
	}
}

func centerCoordinates(p geo.Point) bson.A {
	c := p.Coordinates()
	return bson.A{c[0], c[1]}
}
