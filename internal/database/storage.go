package database

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"help112-bot/internal/database/models"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	// DisabledURI turns the primary store off when used as connection string.
	DisabledURI = "disabled"

	// TextFileName and JSONFileName are the fallback file names inside the data directory.
	TextFileName = "users.txt"
	JSONFileName = "users_backup.json"

	defaultConnectTimeout = 5 * time.Second
)

// StorageConfig is the part of the configuration that drives backend selection.
type StorageConfig struct {
	UseMongo       bool
	MongoURI       string
	MongoDatabase  string
	ConnectTimeout time.Duration
	DataDir        string
}

// Storage is the backend chosen once at startup. It is passed explicitly to the
// components that need it and never changes afterwards.
type Storage struct {
	Mode     models.StorageKind
	Users    UserStore
	Commands CommandLogger

	client *mongo.Client
}

// connectMongo is replaced in tests.
var connectMongo = ConnectMongo

// Open selects the storage backend:
//   - primary store disabled (flag off or DisabledURI) -> text file
//   - primary store enabled but unreachable -> JSON file
//   - otherwise -> MongoDB
//
// Open never fails; reachability problems only change the selected mode.
func Open(ctx context.Context, cfg StorageConfig, logger logrus.FieldLogger) *Storage {
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}

	if !cfg.UseMongo || strings.EqualFold(strings.TrimSpace(cfg.MongoURI), DisabledURI) {
		path := filepath.Join(cfg.DataDir, TextFileName)
		logger.WithField("path", path).Info("Primary store disabled, using text file storage")
		return &Storage{
			Mode:     models.StorageTextFile,
			Users:    NewFileStore(NewTextFile(path, logger)),
			Commands: NopCommandLogger{},
		}
	}

	var (
		client *mongo.Client
		err    error
	)
	if strings.TrimSpace(cfg.MongoURI) == "" {
		err = errEmptyURI
	} else {
		client, err = connectMongo(ctx, cfg.MongoURI, timeout, logger)
	}
	if err != nil {
		path := filepath.Join(cfg.DataDir, JSONFileName)
		logger.WithError(err).WithField("path", path).Warn("MongoDB unreachable, falling back to JSON backup storage")
		return &Storage{
			Mode:     models.StorageJSON,
			Users:    NewFileStore(NewJSONFile(path)),
			Commands: NopCommandLogger{},
		}
	}

	db := client.Database(cfg.MongoDatabase)
	logger.WithField("database", cfg.MongoDatabase).Info("Using MongoDB storage")
	return &Storage{
		Mode:     models.StorageMongo,
		Users:    NewMongoUserStore(db),
		Commands: NewMongoCommandLogger(db),
		client:   client,
	}
}

// Close disconnects from MongoDB when a connection was made.
func (s *Storage) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(ctx)
}
