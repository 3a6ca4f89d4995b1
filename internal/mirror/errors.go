package mirror

import (
	"errors"
	"fmt"
	"strings"

	"github.com/emirg23/multi-BotChat/internal/docstore"
)

var (
	// ErrNotAuthenticated is returned when no account is bound to the store.
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrRemoteList       = errors.New("remote list failed")
	ErrRemoteCommit     = errors.New("remote commit failed")
)

// BranchError records a listing failure at one node of the remote tree. The node
// is treated as childless.
type BranchError struct {
	Collection string
	Err        error
}

func (e BranchError) Error() string {
	return fmt.Sprintf("list %s: %v", e.Collection, e.Err)
}

func (e BranchError) Unwrap() []error { return []error{ErrRemoteList, e.Err} }

// CommitError wraps the failure of the final batch commit. Nothing was written.
type CommitError struct {
	Account string
	Err     error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("commit sync for %s: %v", e.Account, e.Err)
}

func (e *CommitError) Unwrap() []error { return []error{ErrRemoteCommit, e.Err} }

func accountRoot(account string) (docstore.Path, error) {
	if strings.TrimSpace(account) == "" {
		return nil, ErrNotAuthenticated
	}
	return docstore.AccountRoot(account), nil
}
