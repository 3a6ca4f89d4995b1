package docstore

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RemoteDocument struct {
	Path       string `gorm:"primaryKey;type:varchar(512)"`
	Collection string `gorm:"type:varchar(512);index;not null"`
	DocKey     string `gorm:"type:varchar(255);not null"`
	Data       string `gorm:"type:text;not null"`
	UpdatedAt  time.Time
}

func (RemoteDocument) TableName() string { return "remote_documents" }

// SQL keeps documents in one table keyed by full path. Commit runs in a single
// transaction.
type SQL struct {
	db *gorm.DB
}

func NewSQL(db *gorm.DB) *SQL {
	return &SQL{db: db}
}

func (s *SQL) Migrate() error {
	return s.db.AutoMigrate(&RemoteDocument{})
}

func (s *SQL) List(ctx context.Context, collection Path) ([]Document, error) {
	if err := collection.validate(); err != nil {
		return nil, err
	}
	var rows []RemoteDocument
	if err := s.db.WithContext(ctx).
		Where("collection = ?", collection.String()).
		Order("doc_key ASC").
		Find(&rows).Error; err != nil {
		return nil, errors.Wrapf(err, "listing %s", collection)
	}

	out := make([]Document, 0, len(rows))
	for _, row := range rows {
		data, err := decodeFields([]byte(row.Data))
		if err != nil {
			return nil, err
		}
		out = append(out, Document{Path: collection.Doc(row.DocKey), Data: data})
	}
	return out, nil
}

func (s *SQL) Batch() Batch {
	return &sqlBatch{store: s}
}

type sqlBatch struct {
	opLog
	store *SQL
}

func (b *sqlBatch) Commit(ctx context.Context) error {
	ops, err := b.take()
	if err != nil {
		return err
	}
	err = b.store.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, o := range ops {
			switch o.kind {
			case opSet:
				row := &RemoteDocument{
					Path:       o.path.String(),
					Collection: o.path.Parent().String(),
					DocKey:     o.path.Key(),
					Data:       string(o.data),
				}
				if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(row).Error; err != nil {
					return err
				}
			case opDelete:
				if err := tx.Where("path = ?", o.path.String()).Delete(&RemoteDocument{}).Error; err != nil {
					return err
				}
			}
		}
		return nil
	})
	return errors.Wrap(err, "sql commit")
}
