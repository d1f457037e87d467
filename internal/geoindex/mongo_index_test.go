package geoindex

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/resqnet/backend/internal/geo"
	"github.com/resqnet/backend/internal/models"
	"go.mongodb.org/mongo-driver/bson"
)

func TestLocationDocumentFor(t *testing.T) {
	volunteer := &models.User{
		BaseModel:        models.BaseModel{ID: uuid.New()},
		Role:             models.UserRoleVolunteer,
		Location:         geo.NewPoint(77.5946, 12.9716),
		VolunteerProfile: &models.VolunteerProfile{Availability: true},
	}

	t.Run("available volunteer is upserted", func(t *testing.T) {
		doc, upsert := locationDocumentFor(volunteer)
		if !upsert {
			t.Fatal("expected upsert for a volunteer")
		}
		if doc.ID != volunteer.ID.String() {
			t.Fatalf("expected _id %s, got %s", volunteer.ID, doc.ID)
		}
		if doc.Location.Type != "Point" || len(doc.Location.Coordinates) != 2 {
			t.Fatalf("unexpected GeoJSON %+v", doc.Location)
		}
		if doc.Location.Coordinates[0] != 77.5946 || doc.Location.Coordinates[1] != 12.9716 {
			t.Fatalf("expected [lng, lat] ordering, got %v", doc.Location.Coordinates)
		}
		if doc.Role != "volunteer" || !doc.Availability {
			t.Fatalf("unexpected role/availability %s/%v", doc.Role, doc.Availability)
		}
	})

	t.Run("unavailable volunteer stays indexed", func(t *testing.T) {
		off := *volunteer
		off.VolunteerProfile = &models.VolunteerProfile{Availability: false}
		doc, upsert := locationDocumentFor(&off)
		if !upsert {
			t.Fatal("expected upsert for an unavailable volunteer")
		}
		if doc.Availability {
			t.Fatal("expected availability false in document")
		}
	})

	t.Run("plain user is deleted", func(t *testing.T) {
		user := &models.User{BaseModel: models.BaseModel{ID: uuid.New()}, Role: models.UserRoleUser, Location: geo.NewPoint(1, 1)}
		doc, upsert := locationDocumentFor(user)
		if upsert {
			t.Fatal("expected delete for a non-volunteer")
		}
		if doc.ID != user.ID.String() {
			t.Fatalf("expected delete keyed on %s, got %s", user.ID, doc.ID)
		}
	})

	t.Run("volunteer role without profile is deleted", func(t *testing.T) {
		orphan := &models.User{BaseModel: models.BaseModel{ID: uuid.New()}, Role: models.UserRoleVolunteer}
		if _, upsert := locationDocumentFor(orphan); upsert {
			t.Fatal("expected delete for a volunteer with no profile")
		}
	})

	t.Run("admin is deleted", func(t *testing.T) {
		admin := &models.User{BaseModel: models.BaseModel{ID: uuid.New()}, Role: models.UserRoleAdmin}
		if _, upsert := locationDocumentFor(admin); upsert {
			t.Fatal("expected delete for an admin")
		}
	})
}

func TestMatchFromResult(t *testing.T) {
	id := uuid.New()
	match, ok := matchFromResult(id.String(), 1234.5)
	if !ok {
		t.Fatal("expected a UUID _id to convert")
	}
	if match.VolunteerID != id || match.DistanceMeters != 1234.5 {
		t.Fatalf("unexpected match %+v", match)
	}

	for _, bad := range []string{"", "not-a-uuid", "507f1f77bcf86cd799439011"} {
		if _, ok := matchFromResult(bad, 10); ok {
			t.Fatalf("expected _id %q to be skipped", bad)
		}
	}
}

func TestMongoIndexSyncIgnoresNilUser(t *testing.T) {
	var index MongoIndex
	if err := index.Sync(context.Background(), nil); err != nil {
		t.Fatalf("expected nil user to be a no-op, got %v", err)
	}
}

func TestNearbyPipelineShape(t *testing.T) {
	pipeline := nearbyPipeline(Query{
		Center:       geo.NewPoint(77.5946, 12.9716),
		RadiusMeters: 2500,
		Limit:        4,
	})
	if len(pipeline) != 2 {
		t.Fatalf("expected 2 stages, got %d", len(pipeline))
	}

	if pipeline[0][0].Key != "$geoNear" {
		t.Fatalf("expected first stage $geoNear, got %s", pipeline[0][0].Key)
	}
	geoNear := pipeline[0][0].Value.(bson.D).Map()
	if geoNear["maxDistance"] != 2500.0 {
		t.Fatalf("unexpected maxDistance %v", geoNear["maxDistance"])
	}
	if geoNear["spherical"] != true {
		t.Fatalf("expected spherical query")
	}
	near := geoNear["near"].(bson.D).Map()
	coords := near["coordinates"].(bson.A)
	if coords[0] != 77.5946 || coords[1] != 12.9716 {
		t.Fatalf("expected [lng, lat] ordering, got %v", coords)
	}
	filter := geoNear["query"].(bson.D).Map()
	if filter["role"] != "volunteer" || filter["availability"] != true {
		t.Fatalf("unexpected filter %v", filter)
	}

	if pipeline[1][0].Key != "$limit" || pipeline[1][0].Value != 4 {
		t.Fatalf("unexpected limit stage %v", pipeline[1])
	}
}
