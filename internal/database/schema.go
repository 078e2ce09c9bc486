package database

import (
	"errors"
	"fmt"
	"slices"

	"gorm.io/gorm"
)

const resultTable = "results"

// ErrSchemaMismatch indicates that a required constraint is missing or malformed.
var ErrSchemaMismatch = errors.New("database: schema mismatch")

var requiredResultIndexes = map[string][]string{
	"idx_results_competition_position": {"competition_id", "position"},
	"idx_results_competition_user":     {"competition_id", "user_id"},
	"idx_results_competition_photo":    {"competition_id", "photo_id"},
}

type indexInfo struct {
	Name   string `gorm:"column:name"`
	Unique bool   `gorm:"column:is_unique"`
	Origin string `gorm:"column:origin"`
}

func requiredResultIndexNames() []string {
	names := make([]string, 0, len(requiredResultIndexes))
	for name := range requiredResultIndexes {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// VerifySchema checks that the results table carries the three unique keys result
// synchronization relies on.
func VerifySchema(db *gorm.DB) error {
	indexes, err := listIndexes(db, resultTable)
	if err != nil {
		return err
	}
	byName := make(map[string]indexInfo, len(indexes))
	for _, index := range indexes {
		byName[index.Name] = index
	}

	for _, name := range requiredResultIndexNames() {
		index, ok := byName[name]
		if !ok {
			return fmt.Errorf("%w: missing index %s", ErrSchemaMismatch, name)
		}
		if !index.Unique {
			return fmt.Errorf("%w: index %s is not unique", ErrSchemaMismatch, name)
		}
		columns, err := indexColumns(db, name)
		if err != nil {
			return err
		}
		if expected := requiredResultIndexes[name]; !equalColumns(expected, columns) {
			return fmt.Errorf("%w: index %s covers %v, expected %v", ErrSchemaMismatch, name, columns, expected)
		}
	}
	return nil
}

func listIndexes(db *gorm.DB, table string) ([]indexInfo, error) {
	var indexes []indexInfo
	err := db.Raw(`SELECT name, "unique" AS is_unique, origin FROM pragma_index_list(?)`, table).
		Scan(&indexes).Error
	return indexes, err
}

func indexColumns(db *gorm.DB, index string) ([]string, error) {
	var columns []string
	err := db.Raw(`SELECT name FROM pragma_index_info(?) ORDER BY seqno`, index).
		Scan(&columns).Error
	return columns, err
}

func equalColumns(expected, actual []string) bool {
	return slices.Equal(expected, actual)
}
