package projection

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"docsearch/internal/docerrors"
)

// WriteScope is the explicit ambient-transaction abstraction used in place of an ORM's implicit current-transaction accessor: a
// {transaction, guard token, owning writer} value threaded through every
// projection operation. No singletons; no package-global "current
// transaction".
type WriteScope struct {
	Tx         *sql.Tx
	guardToken string
	owner      *Writer
}

// Begin opens a transaction against the writer's pool connection and
// returns a WriteScope bound to this Writer. Callers commit/rollback via
// the returned scope's Tx directly; the Writer only verifies ownership.
func (w *Writer) Begin(ctx context.Context, conn *sql.Conn) (*WriteScope, error) {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &WriteScope{Tx: tx, guardToken: uuid.NewString(), owner: w}, nil
}

// verify checks that scope is non-nil and was minted by this Writer,
// returning NoAmbientTransaction / WrongTransaction on guard mismatch.
func (w *Writer) verify(scope *WriteScope) error {
	if scope == nil {
		return docerrors.New(docerrors.KindNoAmbientTransaction, "projection operation requires an active WriteScope")
	}
	if scope.owner != w {
		return docerrors.New(docerrors.KindWrongTransaction, "WriteScope guard token %s does not belong to this writer", scope.guardToken)
	}
	return nil
}
