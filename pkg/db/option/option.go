package option

import (
	"github.com/landonhauser7-sys/Everguardio-sub000/pkg/db/pagination"
	"gorm.io/gorm"
)

// QueryOption mutates a gorm statement before it is executed.
type QueryOption interface {
	Apply(*gorm.DB) *gorm.DB
}

type optionFunc func(*gorm.DB) *gorm.DB

func (f optionFunc) Apply(db *gorm.DB) *gorm.DB {
	return f(db)
}

func WithLimit(limit int) QueryOption {
	return optionFunc(func(db *gorm.DB) *gorm.DB {
		if limit <= 0 {
			return db
		}
		return db.Limit(limit)
	})
}

func OrderBy(expr string) QueryOption {
	return optionFunc(func(db *gorm.DB) *gorm.DB {
		if expr == "" {
			return db
		}
		return db.Order(expr)
	})
}

// ApplyPagination applies page-size limiting; cursor decoding is left to
// repositories that know their sort columns.
func ApplyPagination(page pagination.Pagination) QueryOption {
	return optionFunc(func(db *gorm.DB) *gorm.DB {
		size := page.PageSize
		if size <= 0 {
			size = 25
		}
		if size > 250 {
			size = 250
		}
		return db.Limit(size)
	})
}
