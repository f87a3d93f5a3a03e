package backend

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/snabb-tech/dispatch/core/apierror"
	"github.com/snabb-tech/dispatch/core/csql"
)

// sqlStore persists one resource kind in its own Postgres table. The
// configured fields live in an untyped properties JSON column, except for
// unique indices which become varchar columns with a partial unique index
// so the database enforces uniqueness atomically.
type sqlStore struct {
	db       *csql.DB
	resource string
	unique   []string

	getQuery    string
	listQuery   string
	insertQuery string
	updateQuery string
	deleteQuery string
}

func newSQLStore(db *csql.DB, rc collectionConfiguration) (*sqlStore, error) {
	schema := db.Schema
	resource := rc.Resource

	createQuery := fmt.Sprintf(`CREATE table IF NOT EXISTS %s."%s" `+
		`(id uuid NOT NULL DEFAULT uuid_generate_v4() PRIMARY KEY, `+
		`created_at timestamp NOT NULL DEFAULT now(), `+
		`properties json NOT NULL DEFAULT '{}'::jsonb);`, schema, resource)
	createQuery += fmt.Sprintf(`CREATE index IF NOT EXISTS %s ON %s."%s"(created_at);`,
		"sort_index_"+resource+"_created_at", schema, resource)

	// a unique index is a varchar column with a partial unique index, the
	// empty string counts as absent
	for _, property := range rc.UniqueIndices {
		createQuery += fmt.Sprintf(`ALTER TABLE %s."%s" ADD COLUMN IF NOT EXISTS "%s" varchar NOT NULL DEFAULT '';`,
			schema, resource, property)
		createQuery += fmt.Sprintf(`CREATE UNIQUE index IF NOT EXISTS %s ON %s."%s"("%s") WHERE "%s" <> '';`,
			"unique_index_"+resource+"_"+property, schema, resource, property, property)
	}

	if _, err := db.Exec(createQuery); err != nil {
		return nil, fmt.Errorf("cannot create table for resource %s: %w", resource, err)
	}

	quoted := make([]string, len(rc.UniqueIndices))
	for n, property := range rc.UniqueIndices {
		quoted[n] = `"` + property + `"`
	}
	columns := append([]string{"id", "created_at", "properties"}, quoted...)
	readQuery := "SELECT " + strings.Join(columns, ", ") + fmt.Sprintf(` FROM %s."%s" `, schema, resource)

	writeColumns := append([]string{"properties"}, quoted...)
	sets := make([]string, len(writeColumns))
	for n, column := range writeColumns {
		sets[n] = column + " = $" + strconv.Itoa(n+2)
	}

	s := &sqlStore{
		db:        db,
		resource:  resource,
		unique:    rc.UniqueIndices,
		getQuery:  readQuery + "WHERE id = $1;",
		listQuery: readQuery + "ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2;",
		insertQuery: fmt.Sprintf(`INSERT INTO %s."%s" (`, schema, resource) +
			strings.Join(writeColumns, ", ") + ") VALUES(" + parameterString(len(writeColumns)) +
			") RETURNING id, created_at;",
		updateQuery: fmt.Sprintf(`UPDATE %s."%s" SET `, schema, resource) +
			strings.Join(sets, ", ") + " WHERE id = $1 RETURNING created_at;",
		deleteQuery: fmt.Sprintf(`DELETE FROM %s."%s" WHERE id = $1 RETURNING id;`, schema, resource),
	}
	return s, nil
}

// returns $1,...,$n
func parameterString(n int) string {
	result := ""
	for i := 0; i < n; i++ {
		if i > 0 {
			result += ","
		}
		result += "$" + strconv.Itoa(i+1)
	}
	return result
}

// instance assembles the API object from the scanned row parts.
func (s *sqlStore) instance(id uuid.UUID, createdAt time.Time, properties json.RawMessage, uniqueValues []string) (Instance, error) {
	object := Instance{}
	if err := json.Unmarshal(properties, (*map[string]interface{})(&object)); err != nil {
		return nil, fmt.Errorf("corrupt properties for %s %s: %w", s.resource, id, err)
	}
	for n, key := range s.unique {
		if uniqueValues[n] != "" {
			object[key] = uniqueValues[n]
		}
	}
	object["id"] = id.String()
	object["createdAt"] = createdAt.UTC()
	return object, nil
}

func (s *sqlStore) scanDest(id *uuid.UUID, createdAt *time.Time, properties *json.RawMessage, uniqueValues []string) []interface{} {
	dest := []interface{}{id, createdAt, properties}
	for n := range uniqueValues {
		dest = append(dest, &uniqueValues[n])
	}
	return dest
}

// Get fetches one instance by id. The id goes into the query untouched; a
// malformed id makes the database report a syntax failure which surfaces
// as a generic internal error, not as not-found.
func (s *sqlStore) Get(ctx context.Context, id string) (Instance, error) {
	var (
		instanceID uuid.UUID
		createdAt  time.Time
		properties json.RawMessage
	)
	uniqueValues := make([]string, len(s.unique))
	err := s.db.QueryRowContext(ctx, s.getQuery, id).
		Scan(s.scanDest(&instanceID, &createdAt, &properties, uniqueValues)...)
	if err == csql.ErrNoRows {
		return nil, apierror.NotFound(s.resource)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s %q: %w", s.resource, id, err)
	}
	return s.instance(instanceID, createdAt, properties, uniqueValues)
}

// List returns up to limit instances ordered by creation time descending,
// skipping the first skip.
func (s *sqlStore) List(ctx context.Context, limit, skip int) ([]Instance, error) {
	rows, err := s.db.QueryContext(ctx, s.listQuery, limit, skip)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.resource, err)
	}
	defer rows.Close()

	result := []Instance{}
	for rows.Next() {
		var (
			instanceID uuid.UUID
			createdAt  time.Time
			properties json.RawMessage
		)
		uniqueValues := make([]string, len(s.unique))
		if err := rows.Scan(s.scanDest(&instanceID, &createdAt, &properties, uniqueValues)...); err != nil {
			return nil, fmt.Errorf("list %s: %w", s.resource, err)
		}
		object, err := s.instance(instanceID, createdAt, properties, uniqueValues)
		if err != nil {
			return nil, err
		}
		result = append(result, object)
	}
	return result, rows.Err()
}

// Create persists a new instance and returns it with id and createdAt
// assigned by the database.
func (s *sqlStore) Create(ctx context.Context, fields Instance) (Instance, error) {
	properties, uniqueValues := splitFields(fields, s.unique)
	propertiesJSON, err := json.Marshal(properties)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", s.resource, err)
	}
	values := []interface{}{propertiesJSON}
	for _, value := range uniqueValues {
		values = append(values, value)
	}

	var (
		instanceID uuid.UUID
		createdAt  time.Time
	)
	err = s.db.QueryRowContext(ctx, s.insertQuery, values...).Scan(&instanceID, &createdAt)
	if err != nil {
		// unique violations are reported as code 23505
		if err, ok := err.(*pq.Error); ok && err.Code == "23505" {
			return nil, apierror.AlreadyExists(s.resource)
		}
		return nil, fmt.Errorf("create %s: %w", s.resource, err)
	}
	return s.instance(instanceID, createdAt, propertiesJSON, uniqueValues)
}

// Update replaces the mutable fields of an existing instance wholesale.
func (s *sqlStore) Update(ctx context.Context, id string, fields Instance) (Instance, error) {
	properties, uniqueValues := splitFields(fields, s.unique)
	propertiesJSON, err := json.Marshal(properties)
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", s.resource, err)
	}
	values := []interface{}{id, propertiesJSON}
	for _, value := range uniqueValues {
		values = append(values, value)
	}

	var createdAt time.Time
	err = s.db.QueryRowContext(ctx, s.updateQuery, values...).Scan(&createdAt)
	if err == csql.ErrNoRows {
		return nil, apierror.NotFound(s.resource)
	}
	if err != nil {
		if err, ok := err.(*pq.Error); ok && err.Code == "23505" {
			return nil, apierror.AlreadyExists(s.resource)
		}
		return nil, fmt.Errorf("update %s %q: %w", s.resource, id, err)
	}
	instanceID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("update %s %q: %w", s.resource, id, err)
	}
	return s.instance(instanceID, createdAt, propertiesJSON, uniqueValues)
}

// Remove deletes the instance permanently.
func (s *sqlStore) Remove(ctx context.Context, id string) error {
	var instanceID uuid.UUID
	err := s.db.QueryRowContext(ctx, s.deleteQuery, id).Scan(&instanceID)
	if err == csql.ErrNoRows {
		return apierror.NotFound(s.resource)
	}
	if err != nil {
		return fmt.Errorf("remove %s %q: %w", s.resource, id, err)
	}
	return nil
}
