package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"
)

const neo4jBackend = "neo4j"

// Neo4jConfig represents Neo4j connection configuration
type Neo4jConfig struct {
	URI      string `json:"uri" yaml:"uri"`
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	Database string `json:"database" yaml:"database"`
}

// Neo4jStore implements UserStore with one (:User) node per user. The node
// is addressed by its uid property, which carries a uniqueness constraint.
type Neo4jStore struct {
	driver   neo4j.DriverWithContext
	database string
	logger   *zap.Logger
}

// NewNeo4jStore connects to Neo4j and installs the uid constraint
func NewNeo4jStore(ctx context.Context, config Neo4jConfig, logger *zap.Logger) (*Neo4jStore, error) {
	if config.URI == "" {
		return nil, fmt.Errorf("Neo4j URI is required")
	}

	auth := neo4j.BasicAuth(config.Username, config.Password, "")
	driver, err := neo4j.NewDriverWithContext(config.URI, auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create Neo4j driver: %w", err)
	}

	store := &Neo4jStore{
		driver:   driver,
		database: config.Database,
		logger:   logger,
	}

	// Test connection
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := driver.VerifyConnectivity(connectCtx); err != nil {
		driver.Close(connectCtx)
		return nil, fmt.Errorf("failed to connect to Neo4j: %w", err)
	}

	if err := store.initializeSchema(connectCtx); err != nil {
		driver.Close(connectCtx)
		return nil, fmt.Errorf("failed to initialize Neo4j schema: %w", err)
	}

	logger.Info("Neo4j client initialized successfully",
		zap.String("uri", config.URI),
		zap.String("database", config.Database))

	return store, nil
}

func (s *Neo4jStore) initializeSchema(ctx context.Context) error {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	constraints := []string{
		"CREATE CONSTRAINT user_uid IF NOT EXISTS FOR (u:User) REQUIRE u.uid IS UNIQUE",
	}

	for _, constraint := range constraints {
		result, err := session.Run(ctx, constraint, nil)
		if err == nil {
			_, err = result.Consume(ctx)
		}
		if err != nil {
			return fmt.Errorf("create constraint %q: %w", constraint, err)
		}
	}
	return nil
}

func (s *Neo4jStore) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: s.database,
		AccessMode:   mode,
	})
}

func (s *Neo4jStore) Backend() string {
	return neo4jBackend
}

// Save merges the node on uid and replaces all of its properties
func (s *Neo4jStore) Save(ctx context.Context, user *User) error {
	if err := requireUID(user.UID); err != nil {
		return err
	}

	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	query := `
		MERGE (u:User {uid: $uid})
		SET u = $props
	`
	params := map[string]any{
		"uid":   user.UID,
		"props": userToProps(user),
	}

	result, err := session.Run(ctx, query, params)
	if err == nil {
		_, err = result.Consume(ctx)
	}
	if err != nil {
		return classifyNeo4j("save", err)
	}

	s.logger.Debug("Stored user node", zap.String("uid", user.UID))
	return nil
}

func (s *Neo4jStore) FindAll(ctx context.Context) ([]*User, error) {
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	result, err := session.Run(ctx, "MATCH (u:User) RETURN u ORDER BY u.uid", nil)
	if err != nil {
		return nil, classifyNeo4j("find_all", err)
	}
	records, err := result.Collect(ctx)
	if err != nil {
		return nil, classifyNeo4j("find_all", err)
	}

	users := make([]*User, 0, len(records))
	for _, record := range records {
		user, err := userFromRecord(record)
		if err != nil {
			return nil, NewStoreQueryError("find_all", neo4jBackend, err)
		}
		users = append(users, user)
	}
	return users, nil
}

func (s *Neo4jStore) FindByUID(ctx context.Context, uid string) (*User, error) {
	if err := requireUID(uid); err != nil {
		return nil, err
	}

	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	result, err := session.Run(ctx, "MATCH (u:User {uid: $uid}) RETURN u LIMIT 1", map[string]any{"uid": uid})
	if err != nil {
		return nil, classifyNeo4j("find_by_uid", err)
	}
	records, err := result.Collect(ctx)
	if err != nil {
		return nil, classifyNeo4j("find_by_uid", err)
	}
	if len(records) == 0 {
		return nil, NewNotFoundError(uid)
	}

	user, err := userFromRecord(records[0])
	if err != nil {
		return nil, NewStoreQueryError("find_by_uid", neo4jBackend, err)
	}
	return user, nil
}

func (s *Neo4jStore) ExistsByUID(ctx context.Context, uid string) (bool, error) {
	if err := requireUID(uid); err != nil {
		return false, err
	}

	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	result, err := session.Run(ctx, "MATCH (u:User {uid: $uid}) RETURN count(u) > 0 AS exists", map[string]any{"uid": uid})
	if err != nil {
		return false, classifyNeo4j("exists_by_uid", err)
	}
	record, err := result.Single(ctx)
	if err != nil {
		return false, classifyNeo4j("exists_by_uid", err)
	}

	exists, _ := record.Get("exists")
	found, ok := exists.(bool)
	if !ok {
		return false, NewStoreQueryError("exists_by_uid", neo4jBackend, fmt.Errorf("unexpected exists value %v", exists))
	}
	return found, nil
}

// Delete removes the node. Neo4j reports no write time.
func (s *Neo4jStore) Delete(ctx context.Context, uid string) (time.Time, error) {
	if err := requireUID(uid); err != nil {
		return time.Time{}, err
	}

	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	result, err := session.Run(ctx, "MATCH (u:User {uid: $uid}) DETACH DELETE u", map[string]any{"uid": uid})
	if err != nil {
		return time.Time{}, classifyNeo4j("delete", err)
	}
	summary, err := result.Consume(ctx)
	if err != nil {
		return time.Time{}, classifyNeo4j("delete", err)
	}
	if summary.Counters().NodesDeleted() == 0 {
		return time.Time{}, NewNotFoundError(uid)
	}
	return time.Time{}, nil
}

// Update merges the changed properties into the existing node
func (s *Neo4jStore) Update(ctx context.Context, uid string, update UserUpdate) error {
	if err := requireUID(uid); err != nil {
		return err
	}
	fields, err := update.Fields()
	if err != nil {
		return err
	}

	props := make(map[string]any, len(fields))
	for name, value := range fields {
		props[name] = value
	}

	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	query := `
		MATCH (u:User {uid: $uid})
		SET u += $props
		RETURN u.uid AS uid
	`
	result, err := session.Run(ctx, query, map[string]any{"uid": uid, "props": props})
	if err != nil {
		return classifyNeo4j("update", err)
	}
	records, err := result.Collect(ctx)
	if err != nil {
		return classifyNeo4j("update", err)
	}
	if len(records) == 0 {
		return NewNotFoundError(uid)
	}
	return nil
}

func (s *Neo4jStore) Ping(ctx context.Context) error {
	if err := s.driver.VerifyConnectivity(ctx); err != nil {
		return NewStoreConnectionError("ping", neo4jBackend, err)
	}
	return nil
}

// Close closes the Neo4j driver
func (s *Neo4jStore) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

func userToProps(user *User) map[string]any {
	return map[string]any{
		"uid":         user.UID,
		"username":    user.Username,
		"email":       user.Email,
		"dateOfBirth": user.DateOfBirth,
		"gender":      user.Gender,
		"region":      user.Region,
		"photo":       user.Photo,
	}
}

func userFromRecord(record *neo4j.Record) (*User, error) {
	value, ok := record.Get("u")
	if !ok {
		return nil, fmt.Errorf("record has no user node")
	}
	node, ok := value.(neo4j.Node)
	if !ok {
		return nil, fmt.Errorf("unexpected value type %T for user node", value)
	}

	prop := func(name string) string {
		str, _ := node.Props[name].(string)
		return str
	}
	return &User{
		UID:         prop("uid"),
		Username:    prop("username"),
		Email:       prop("email"),
		DateOfBirth: prop("dateOfBirth"),
		Gender:      prop("gender"),
		Region:      prop("region"),
		Photo:       prop("photo"),
	}, nil
}

func classifyNeo4j(operation string, err error) error {
	var neoErr *neo4j.Neo4jError
	switch {
	case neo4j.IsConnectivityError(err):
		return NewStoreConnectionError(operation, neo4jBackend, err)
	case errors.As(err, &neoErr) && strings.Contains(neoErr.Code, "ConstraintValidationFailed"):
		return NewStoreConstraintError(operation, neo4jBackend, err)
	default:
		return NewStoreQueryError(operation, neo4jBackend, err)
	}
}
