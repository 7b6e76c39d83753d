package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// Repository is the only reader and writer of the product collection.
// Every call loads the whole document and mutations save it back whole.
// It does no locking: concurrent writers can lose each other's updates.
type Repository struct {
	store        DocStore
	log          *zap.Logger
	nextID       IDStrategy
	strictWrites bool
	metrics      *RepoMetrics
	validate     *validator.Validate
}

type Option func(*Repository)

func WithLogger(log *zap.Logger) Option {
	return func(r *Repository) {
		if log != nil {
			r.log = log
		}
	}
}

func WithIDStrategy(s IDStrategy) Option {
	return func(r *Repository) {
		if s != nil {
			r.nextID = s
		}
	}
}

// WithStrictWrites makes Save and the mutations return write failures
// instead of logging and dropping them.
func WithStrictWrites(strict bool) Option {
	return func(r *Repository) { r.strictWrites = strict }
}

func WithMetrics(m *RepoMetrics) Option {
	return func(r *Repository) { r.metrics = m }
}

func NewRepository(store DocStore, opts ...Option) *Repository {
	r := &Repository{
		store:    store,
		log:      zap.NewNop(),
		nextID:   LengthIDs,
		validate: newValidator(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.store.Ping(ctx)
}

// Load returns the stored collection. A missing, unreadable or unparsable
// document reads as an empty collection.
func (r *Repository) Load(ctx context.Context) []Product {
	data, err := r.store.Read(ctx)
	if errors.Is(err, ErrNoDocument) {
		r.log.Debug("catalog document not found, using empty collection")
		r.metrics.observe(opLoad, outcomeEmpty)
		return []Product{}
	}
	if err != nil {
		r.log.Error("read catalog document failed, using empty collection", zap.Error(err))
		r.metrics.observe(opLoad, outcomeFailed)
		return []Product{}
	}

	var products []Product
	if err := json.Unmarshal(data, &products); err != nil {
		r.log.Error("parse catalog document failed, using empty collection", zap.Error(err))
		r.metrics.observe(opLoad, outcomeCorrupt)
		return []Product{}
	}
	if products == nil {
		products = []Product{}
	}

	r.metrics.observe(opLoad, outcomeOK)
	return products
}

// Save overwrites the stored collection with products. Failures are logged
// and dropped unless strict writes are enabled.
func (r *Repository) Save(ctx context.Context, products []Product) error {
	if products == nil {
		products = []Product{}
	}

	err := r.write(ctx, products)
	if err == nil {
		r.metrics.observe(opSave, outcomeOK)
		return nil
	}

	r.log.Error("save products failed", zap.Error(err), zap.Int("count", len(products)))
	r.metrics.observe(opSave, outcomeFailed)

	if r.strictWrites {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	return nil
}

func (r *Repository) write(ctx context.Context, products []Product) error {
	data, err := json.MarshalIndent(products, "", "\t")
	if err != nil {
		return err
	}
	return r.store.Write(ctx, data)
}

func (r *Repository) Add(ctx context.Context, p Product) (Product, error) {
	if err := r.check(p); err != nil {
		r.log.Info("product rejected", zap.Error(err), zap.String("code", p.Code))
		r.metrics.observe(opAdd, outcomeInvalid)
		return Product{}, err
	}

	products := r.Load(ctx)

	if slices.ContainsFunc(products, func(e Product) bool { return e.Code == p.Code }) {
		r.log.Info("product code already exists", zap.String("code", p.Code))
		r.metrics.observe(opAdd, outcomeDuplicate)
		return Product{}, ErrDuplicateCode
	}

	p.ID = r.nextID(products)
	products = append(products, p)

	if err := r.Save(ctx, products); err != nil {
		return Product{}, err
	}

	r.metrics.observe(opAdd, outcomeOK)
	return p, nil
}

func (r *Repository) check(p Product) error {
	err := r.validate.Struct(p)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	missing := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		missing = append(missing, fe.Field())
	}
	return &ValidationError{Missing: missing}
}

func (r *Repository) Update(ctx context.Context, id int, patch Patch) (Product, error) {
	products := r.Load(ctx)

	i := indexByID(products, id)
	if i < 0 {
		r.log.Info("product not found", zap.Int("id", id))
		r.metrics.observe(opUpdate, outcomeNotFound)
		return Product{}, ErrNotFound
	}

	if patch.Code != nil && *patch.Code != products[i].Code {
		for j, e := range products {
			if j != i && e.Code == *patch.Code {
				r.log.Info("product code already exists", zap.Int("id", id), zap.String("code", e.Code))
				r.metrics.observe(opUpdate, outcomeDuplicate)
				return Product{}, ErrDuplicateCode
			}
		}
	}

	patch.applyTo(&products[i])

	if err := r.Save(ctx, products); err != nil {
		return Product{}, err
	}

	r.log.Info("product updated", zap.Int("id", id))
	r.metrics.observe(opUpdate, outcomeOK)
	return products[i], nil
}

func (r *Repository) Delete(ctx context.Context, id int) error {
	products := r.Load(ctx)

	i := indexByID(products, id)
	if i < 0 {
		r.log.Info("product not found", zap.Int("id", id))
		r.metrics.observe(opDelete, outcomeNotFound)
		return ErrNotFound
	}

	products = slices.Delete(products, i, i+1)

	if err := r.Save(ctx, products); err != nil {
		return err
	}

	r.log.Info("product deleted", zap.Int("id", id))
	r.metrics.observe(opDelete, outcomeOK)
	return nil
}

func (r *Repository) GetAll(ctx context.Context) []Product {
	return r.Load(ctx)
}

func (r *Repository) GetByID(ctx context.Context, id int) (Product, bool) {
	products := r.Load(ctx)

	i := indexByID(products, id)
	if i < 0 {
		r.log.Info("product not found", zap.Int("id", id))
		r.metrics.observe(opGet, outcomeNotFound)
		return Product{}, false
	}

	r.metrics.observe(opGet, outcomeOK)
	return products[i], true
}

func indexByID(products []Product, id int) int {
	return slices.IndexFunc(products, func(p Product) bool { return p.ID == id })
}
