package users

import (
	"context"
	"fmt"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const firestoreBackend = "firestore"

// FirestoreConfig represents Firestore connection configuration
type FirestoreConfig struct {
	ProjectID       string `json:"project_id" yaml:"project_id"`
	DatabaseID      string `json:"database_id" yaml:"database_id"`
	Collection      string `json:"collection" yaml:"collection"`
	CredentialsFile string `json:"credentials_file" yaml:"credentials_file"`
	// EmulatorHost points the client at a local emulator, e.g. localhost:8081
	EmulatorHost string `json:"emulator_host" yaml:"emulator_host"`
}

// FirestoreStore implements UserStore with one Firestore document per user,
// using the uid as document ID.
type FirestoreStore struct {
	client *firestore.Client
	users  *firestore.CollectionRef
	logger *zap.Logger
}

// NewFirestoreStore creates a Firestore client for the configured project
func NewFirestoreStore(ctx context.Context, config FirestoreConfig, logger *zap.Logger) (*FirestoreStore, error) {
	if config.ProjectID == "" {
		return nil, fmt.Errorf("firestore project ID is required")
	}
	if config.Collection == "" {
		config.Collection = "users"
	}
	if config.DatabaseID == "" {
		config.DatabaseID = firestore.DefaultDatabaseID
	}
	if config.EmulatorHost != "" {
		// The client library only reads the emulator address from the environment.
		if err := os.Setenv("FIRESTORE_EMULATOR_HOST", config.EmulatorHost); err != nil {
			return nil, fmt.Errorf("failed to set emulator host: %w", err)
		}
	}

	var opts []option.ClientOption
	if config.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(config.CredentialsFile))
	}

	client, err := firestore.NewClientWithDatabase(ctx, config.ProjectID, config.DatabaseID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	logger.Info("Firestore client initialized successfully",
		zap.String("project_id", config.ProjectID),
		zap.String("database_id", config.DatabaseID),
		zap.String("collection", config.Collection))

	return &FirestoreStore{
		client: client,
		users:  client.Collection(config.Collection),
		logger: logger,
	}, nil
}

func (s *FirestoreStore) Backend() string {
	return firestoreBackend
}

// Save writes the whole document, replacing any previous one for the uid
func (s *FirestoreStore) Save(ctx context.Context, user *User) error {
	if err := requireUID(user.UID); err != nil {
		return err
	}

	if _, err := s.users.Doc(user.UID).Set(ctx, user); err != nil {
		return classifyFirestore("save", err)
	}
	return nil
}

func (s *FirestoreStore) FindAll(ctx context.Context) ([]*User, error) {
	docs, err := s.users.Documents(ctx).GetAll()
	if err != nil {
		return nil, classifyFirestore("find_all", err)
	}

	result := make([]*User, 0, len(docs))
	for _, doc := range docs {
		var user User
		if err := doc.DataTo(&user); err != nil {
			return nil, NewStoreQueryError("find_all", firestoreBackend, fmt.Errorf("decode document %s: %w", doc.Ref.ID, err))
		}
		result = append(result, &user)
	}
	return result, nil
}

func (s *FirestoreStore) FindByUID(ctx context.Context, uid string) (*User, error) {
	if err := requireUID(uid); err != nil {
		return nil, err
	}

	snap, err := s.users.Doc(uid).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, NewNotFoundError(uid)
		}
		return nil, classifyFirestore("find_by_uid", err)
	}
	if !snap.Exists() {
		return nil, NewNotFoundError(uid)
	}

	var user User
	if err := snap.DataTo(&user); err != nil {
		return nil, NewStoreQueryError("find_by_uid", firestoreBackend, err)
	}
	return &user, nil
}

func (s *FirestoreStore) ExistsByUID(ctx context.Context, uid string) (bool, error) {
	if err := requireUID(uid); err != nil {
		return false, err
	}

	snap, err := s.users.Doc(uid).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return false, nil
		}
		return false, classifyFirestore("exists_by_uid", err)
	}
	return snap.Exists(), nil
}

// Delete removes the document and returns its write time. The Exists
// precondition makes a missing document fail with NotFound.
func (s *FirestoreStore) Delete(ctx context.Context, uid string) (time.Time, error) {
	if err := requireUID(uid); err != nil {
		return time.Time{}, err
	}

	result, err := s.users.Doc(uid).Delete(ctx, firestore.Exists)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return time.Time{}, NewNotFoundError(uid)
		}
		return time.Time{}, classifyFirestore("delete", err)
	}
	return result.UpdateTime, nil
}

// Update applies a field-level update; Firestore rejects it with NotFound
// when the document does not exist.
func (s *FirestoreStore) Update(ctx context.Context, uid string, update UserUpdate) error {
	if err := requireUID(uid); err != nil {
		return err
	}
	fields, err := update.Fields()
	if err != nil {
		return err
	}

	updates := make([]firestore.Update, 0, len(fields))
	for _, name := range sortedFieldNames(fields) {
		updates = append(updates, firestore.Update{Path: name, Value: fields[name]})
	}

	if _, err := s.users.Doc(uid).Update(ctx, updates); err != nil {
		if status.Code(err) == codes.NotFound {
			return NewNotFoundError(uid)
		}
		return classifyFirestore("update", err)
	}
	return nil
}

// Ping reads at most one document; Firestore has no dedicated health call
func (s *FirestoreStore) Ping(ctx context.Context) error {
	if _, err := s.users.Limit(1).Documents(ctx).GetAll(); err != nil {
		return NewStoreConnectionError("ping", firestoreBackend, err)
	}
	return nil
}

func (s *FirestoreStore) Close(ctx context.Context) error {
	return s.client.Close()
}

func classifyFirestore(operation string, err error) error {
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.Unauthenticated, codes.PermissionDenied:
		return NewStoreConnectionError(operation, firestoreBackend, err)
	case codes.AlreadyExists, codes.FailedPrecondition:
		return NewStoreConstraintError(operation, firestoreBackend, err)
	default:
		return NewStoreQueryError(operation, firestoreBackend, err)
	}
}
