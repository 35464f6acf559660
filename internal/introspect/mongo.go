package introspect

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Annany2002/nebula-apigen/config"
	"github.com/Annany2002/nebula-apigen/internal/core"
	"github.com/Annany2002/nebula-apigen/internal/domain"
)

// Mongo samples documents of every collection in one database.
type Mongo struct {
	client     *mongo.Client
	database   string
	sampleSize int64
}

// OpenMongo connects and pings the server, both bounded by the configured
// connect timeout.
func OpenMongo(ctx context.Context, cfg *config.Config) (*Mongo, error) {
	opts := options.Client().
		ApplyURI(MongoURI(cfg)).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetServerSelectionTimeout(cfg.ConnectTimeout)

	customLog.Printf("Introspect: Connecting to MongoDB database '%s'", cfg.DBName)
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, &core.ConnectionError{Engine: config.DBTypeMongoDB, Err: err}
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		customLog.Printf("Introspect: Failed to ping MongoDB: %v", err)
		return nil, &core.ConnectionError{Engine: config.DBTypeMongoDB, Err: err}
	}

	return &Mongo{client: client, database: cfg.DBName, sampleSize: int64(cfg.MongoSampleSize)}, nil
}

// MongoURI returns DB_URI when set, otherwise a URI built from the parts.
func MongoURI(cfg *config.Config) string {
	if cfg.DBURI != "" {
		return cfg.DBURI
	}
	host := cfg.DBHost
	if host == "" {
		host = "localhost"
	}
	u := url.URL{
		Scheme: "mongodb",
		Host:   net.JoinHostPort(host, strconv.Itoa(cfg.DBPort)),
		Path:   "/" + cfg.DBName,
	}
	if cfg.DBUser != "" {
		u.User = url.UserPassword(cfg.DBUser, cfg.DBPassword)
	}
	return u.String()
}

func (m *Mongo) Dialect() string { return config.DBTypeMongoDB }

func (m *Mongo) Close() error {
	return m.client.Disconnect(context.Background())
}

// Introspect samples up to sampleSize documents of each collection and
// infers a descriptor per collection. System collections are skipped.
func (m *Mongo) Introspect(ctx context.Context) ([]domain.TableDescriptor, error) {
	db := m.client.Database(m.database)
	names, err := db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return nil, &core.ConnectionError{Engine: config.DBTypeMongoDB, Err: err}
	}
	sort.Strings(names)
	customLog.Printf("Introspect: Found %d MongoDB collections", len(names))

	tables := make([]domain.TableDescriptor, 0, len(names))
	for _, name := range names {
		if strings.HasPrefix(name, "system.") {
			continue
		}
		cur, err := db.Collection(name).Find(ctx, bson.D{}, options.Find().SetLimit(m.sampleSize))
		if err != nil {
			return nil, fmt.Errorf("sample collection %s: %w", name, err)
		}
		var docs []bson.D
		if err := cur.All(ctx, &docs); err != nil {
			return nil, fmt.Errorf("sample collection %s: %w", name, err)
		}
		customLog.Debugf("Introspect: Sampled %d documents from '%s'", len(docs), name)
		tables = append(tables, InferCollection(name, docs))
	}
	return finalize(tables)
}
