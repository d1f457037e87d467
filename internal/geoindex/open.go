package geoindex

import (
	"context"
	"errors"
	"fmt"

	"github.com/resqnet/backend/internal/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"gorm.io/gorm"
)

var ErrUnknownBackend = errors.New("unknown geo backend")

// Open builds the configured index. The returned close func releases any
// external connection and is never nil.
func Open(ctx context.Context, geoCfg config.GeoConfig, mongoCfg config.MongoConfig, db *gorm.DB) (Index, func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }

	switch geoCfg.Backend {
	case "", config.GeoBackendSQL:
		return NewSQLIndex(db), noop, nil
	case config.GeoBackendMongo:
		connectCtx, cancel := context.WithTimeout(ctx, mongoCfg.Timeout)
		defer cancel()

		client, err := mongo.Connect(connectCtx, options.Client().
			ApplyURI(mongoCfg.URI).
			SetServerSelectionTimeout(mongoCfg.Timeout))
		if err != nil {
			return nil, noop, fmt.Errorf("connecting to mongo: %w", err)
		}
		if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, noop, fmt.Errorf("pinging mongo: %w", err)
		}

		index := NewMongoIndex(client.Database(mongoCfg.Database))
		if err := index.EnsureIndexes(connectCtx); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, noop, err
		}
		return index, client.Disconnect, nil
	default:
		return nil, noop, fmt.Errorf("%w: %q", ErrUnknownBackend, geoCfg.Backend)
	}
}
