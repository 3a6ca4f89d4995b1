package chat

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LocalSnapshot is the locally persisted copy of an account's Local Store.
// The guest (unauthenticated) store is kept under the empty account.
type LocalSnapshot struct {
	Account   string    `gorm:"primaryKey;type:varchar(255)"`
	Chats     string    `gorm:"type:text;not null"`
	Bots      string    `gorm:"type:text;not null"`
	UpdatedAt time.Time
	// last successful push of this account
	PushedAt *time.Time
}

func (LocalSnapshot) TableName() string { return "local_snapshots" }

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) Migrate() error {
	return r.db.AutoMigrate(&LocalSnapshot{})
}

func (r *Repo) Save(ctx context.Context, account string, snap Snapshot) error {
	chats, err := json.Marshal(snap.Chats)
	if err != nil {
		return errors.Wrap(err, "marshaling chats")
	}
	bots, err := json.Marshal(snap.Bots)
	if err != nil {
		return errors.Wrap(err, "marshaling bots")
	}
	row := &LocalSnapshot{
		Account: account,
		Chats:   string(chats),
		Bots:    string(bots),
	}
	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "account"}},
			DoUpdates: clause.AssignmentColumns([]string{"chats", "bots", "updated_at"}),
		}).
		Create(row).Error
	return errors.Wrapf(err, "saving snapshot for %q", account)
}

func (r *Repo) find(ctx context.Context, account string) (*LocalSnapshot, error) {
	var rows []LocalSnapshot
	res := r.db.WithContext(ctx).
		Where("account = ?", account).
		Limit(1).
		Find(&rows)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return &rows[0], nil
}

// Load returns gorm.ErrRecordNotFound when nothing was saved for the account.
func (r *Repo) Load(ctx context.Context, account string) (Snapshot, error) {
	row, err := r.find(ctx, account)
	if err != nil {
		return Snapshot{}, err
	}

	var snap Snapshot
	if err := json.Unmarshal([]byte(row.Chats), &snap.Chats); err != nil {
		return Snapshot{}, errors.Wrap(err, "decoding chats")
	}
	if err := json.Unmarshal([]byte(row.Bots), &snap.Bots); err != nil {
		return Snapshot{}, errors.Wrap(err, "decoding bots")
	}
	return snap, nil
}

func (r *Repo) MarkPushed(ctx context.Context, account string) error {
	return r.db.WithContext(ctx).Model(&LocalSnapshot{}).
		Where("account = ?", account).
		Update("pushed_at", time.Now().UTC()).Error
}

// PushedAt is the time of the account's last successful push, zero when it was
// never pushed.
func (r *Repo) PushedAt(ctx context.Context, account string) (time.Time, error) {
	row, err := r.find(ctx, account)
	if err != nil {
		return time.Time{}, err
	}
	if row.PushedAt == nil {
		return time.Time{}, nil
	}
	return *row.PushedAt, nil
}

func (r *Repo) Delete(ctx context.Context, account string) error {
	return r.db.WithContext(ctx).
		Where("account = ?", account).
		Delete(&LocalSnapshot{}).Error
}

// Accounts lists every account with a saved snapshot, the guest included.
func (r *Repo) Accounts(ctx context.Context) ([]string, error) {
	var accounts []string
	if err := r.db.WithContext(ctx).
		Model(&LocalSnapshot{}).
		Order("account ASC").
		Pluck("account", &accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}
