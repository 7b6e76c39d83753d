package catalog

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrNotFound       = errors.New("product not found")
	ErrDuplicateCode  = errors.New("product code already exists")
	ErrInvalidProduct = errors.New("all product fields are required")
	ErrPersist        = errors.New("persist products")
	ErrNoDocument     = errors.New("catalog document does not exist")
)

type Product struct {
	ID          int     `json:"id"`
	Title       string  `json:"title" validate:"required"`
	Description string  `json:"description" validate:"required"`
	Price       float64 `json:"price" validate:"required"`
	Thumbnail   string  `json:"thumbnail" validate:"required"`
	Code        string  `json:"code" validate:"required"`
	Stock       float64 `json:"stock" validate:"required"`
}

// Patch carries a partial update. Nil fields keep their stored value.
type Patch struct {
	Title       *string  `json:"title,omitempty"`
	Description *string  `json:"description,omitempty"`
	Price       *float64 `json:"price,omitempty"`
	Thumbnail   *string  `json:"thumbnail,omitempty"`
	Code        *string  `json:"code,omitempty"`
	Stock       *float64 `json:"stock,omitempty"`
}

func (p Patch) applyTo(dst *Product) {
	if p.Title != nil {
		dst.Title = *p.Title
	}
	if p.Description != nil {
		dst.Description = *p.Description
	}
	if p.Price != nil {
		dst.Price = *p.Price
	}
	if p.Thumbnail != nil {
		dst.Thumbnail = *p.Thumbnail
	}
	if p.Code != nil {
		dst.Code = *p.Code
	}
	if p.Stock != nil {
		dst.Stock = *p.Stock
	}
}

// ValidationError lists the JSON names of required fields that were empty or zero.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return ErrInvalidProduct.Error() + ": missing " + strings.Join(e.Missing, ", ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidProduct }

// DocStore holds the whole product collection as one serialized document.
type DocStore interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Ping(ctx context.Context) error
}
