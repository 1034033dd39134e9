package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"reflect"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "modelnormalizer/internal/errors"
	"modelnormalizer/internal/model"
	"modelnormalizer/internal/ordered"
)

// RecordRepository loads and stores models of any registered type.
type RecordRepository interface {
	// Find loads one record by primary key. with names relations to load,
	// dotted for nesting ("card.account").
	Find(ctx context.Context, typ reflect.Type, id any, with ...string) (model.Model, error)
	List(ctx context.Context, typ reflect.Type, limit int) ([]model.Model, error)
	Create(ctx context.Context, m model.Model) error
	// Transaction methods
	WithTransaction(ctx context.Context, fn func(ctx context.Context, repo RecordRepository) error) error
}

type recordRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewRecordRepository creates a new record repository.
func NewRecordRepository(db *gorm.DB) RecordRepository {
	return &recordRepository{db: db, now: time.Now}
}

// Find finds a record by primary key and loads the requested relations.
func (r *recordRepository) Find(ctx context.Context, typ reflect.Type, id any, with ...string) (model.Model, error) {
	schema, err := schemaOf(typ)
	if err != nil {
		return nil, err
	}

	rows, err := r.query(ctx, schema).
		Where(clause.Eq{Column: clause.Column{Name: schema.Key()}, Value: id}).
		Limit(1).
		Rows()
	if err != nil {
		return nil, errors.Wrapf(err, "find %s %v", schema.Table(), id)
	}
	loaded, err := scanModels(rows, typ)
	if err != nil {
		return nil, errors.Wrapf(err, "scan %s %v", schema.Table(), id)
	}
	if len(loaded) == 0 {
		return nil, errors.Wrapf(apperrors.ErrRecordNotFound, "%s %v", schema.Table(), id)
	}

	m := loaded[0]
	if err := r.eagerLoad(ctx, m, with); err != nil {
		return nil, err
	}
	return m, nil
}

// List lists records ordered by primary key. A non-positive limit lists all.
func (r *recordRepository) List(ctx context.Context, typ reflect.Type, limit int) ([]model.Model, error) {
	schema, err := schemaOf(typ)
	if err != nil {
		return nil, err
	}

	q := r.query(ctx, schema).Order(clause.OrderByColumn{Column: clause.Column{Name: schema.Key()}})
	if limit > 0 {
		q = q.Limit(limit)
	}
	rows, err := q.Rows()
	if err != nil {
		return nil, errors.Wrapf(err, "list %s", schema.Table())
	}
	models, err := scanModels(rows, typ)
	if err != nil {
		return nil, errors.Wrapf(err, "scan %s", schema.Table())
	}
	return models, nil
}

// Create inserts the model's attributes. UUID keys and timestamps are filled
// in when missing, and loaded relations set their foreign keys.
func (r *recordRepository) Create(ctx context.Context, m model.Model) error {
	schema := m.Schema()

	if schema.KeyType() == model.KeyUUID {
		if key, ok := m.GetAttribute(schema.Key()); !ok || key == nil || key == "" {
			m.SetRawAttribute(schema.Key(), uuid.NewString())
		}
	}

	now := r.now()
	for _, field := range []string{"created_at", "updated_at"} {
		if !lo.Contains(schema.Dates(), field) {
			continue
		}
		if v, ok := m.GetAttribute(field); !ok || v == nil {
			m.SetRawAttribute(field, now)
		}
	}

	m.Relations().Range(func(name string, related model.Model) bool {
		if model.IsNil(related) {
			return true
		}
		fk := model.ForeignKeyFor(m, name, related)
		if v, ok := m.GetAttribute(fk); ok && v != nil {
			return true
		}
		if key, ok := related.GetAttribute(related.Schema().Key()); ok && key != nil {
			m.SetRawAttribute(fk, key)
		}
		return true
	})

	values := map[string]any{}
	var err error
	m.Attributes().Range(func(field string, value any) bool {
		if _, computed := schema.Getter(field); computed {
			return true
		}
		values[field], err = columnArg(field, value)
		return err == nil
	})
	if err != nil {
		return err
	}

	if err := r.db.WithContext(ctx).Table(schema.Table()).Create(values).Error; err != nil {
		return errors.Wrapf(err, "create %s", schema.Table())
	}
	return nil
}

// WithTransaction executes a function within a database transaction.
func (r *recordRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context, repo RecordRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := &recordRepository{db: tx, now: r.now}
		return fn(ctx, txRepo)
	})
}

func (r *recordRepository) query(ctx context.Context, schema *model.Schema) *gorm.DB {
	q := r.db.WithContext(ctx).Table(schema.Table())
	if lo.Contains(schema.Dates(), "deleted_at") {
		q = q.Where("deleted_at IS NULL")
	}
	return q
}

func (r *recordRepository) eagerLoad(ctx context.Context, m model.Model, with []string) error {
	groups := ordered.New[[]string]()
	for _, path := range with {
		head, rest, _ := strings.Cut(strings.TrimSpace(path), ".")
		if head == "" {
			continue
		}
		nested, _ := groups.Get(head)
		if rest != "" {
			nested = append(nested, rest)
		}
		groups.Set(head, nested)
	}

	var err error
	groups.Range(func(name string, nested []string) bool {
		err = r.loadRelation(ctx, m, name, nested)
		return err == nil
	})
	return err
}

// loadRelation loads a belongs-to relation. A null or dangling foreign key
// stores a loaded but empty relation.
func (r *recordRepository) loadRelation(ctx context.Context, m model.Model, name string, nested []string) error {
	rel, ok := m.Schema().RelationFor(name)
	if !ok {
		return errors.Wrapf(apperrors.ErrUnknownRelation, "%s has no relation %q", m.Schema().Name(), name)
	}
	related, err := model.New(rel.Related)
	if err != nil {
		return err
	}

	fk := model.ForeignKeyFor(m, rel.Name, related)
	key, _ := m.GetAttribute(fk)
	if key == nil {
		m.SetRelation(rel.Name, nil)
		return nil
	}

	loaded, err := r.Find(ctx, rel.Related, key, nested...)
	if errors.Is(err, apperrors.ErrRecordNotFound) {
		m.SetRelation(rel.Name, nil)
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "load %s.%s", m.Schema().Name(), rel.Name)
	}
	m.SetRelation(rel.Name, loaded)
	return nil
}

func schemaOf(typ reflect.Type) (*model.Schema, error) {
	m, err := model.New(typ)
	if err != nil {
		return nil, err
	}
	return m.Schema(), nil
}

// scanModels reads every row into a new model, keeping column order.
func scanModels(rows *sql.Rows, typ reflect.Type) ([]model.Model, error) {
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []model.Model
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		m, err := model.New(typ)
		if err != nil {
			return nil, err
		}
		for i, column := range columns {
			m.SetRawAttribute(column, columnValue(values[i]))
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func columnValue(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

func columnArg(field string, value any) (any, error) {
	switch v := value.(type) {
	case json.Number:
		return v.String(), nil
	case *ordered.Map[any], map[string]any, []any:
		return nil, errors.Wrapf(apperrors.ErrInvalidFormat, "attribute %q holds structured data", field)
	}
	return value, nil
}
