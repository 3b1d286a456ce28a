package mongo

import (
	"context"
	"errors"
	"fmt"

	apperrors "apartur/pkg/errors"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

type TransactionFunc func(ctx mongo.SessionContext) error

type TransactionManager interface {
	ExecuteTransaction(ctx context.Context, fn TransactionFunc) error
}

type mongoTransactionManager struct {
	client *mongo.Client
	opts   *options.TransactionOptions
}

// NewTransactionManager runs callbacks with snapshot reads and majority writes,
// so an availability read inside the callback sees every committed reservation.
func NewTransactionManager(client *mongo.Client) TransactionManager {
	return &mongoTransactionManager{
		client: client,
		opts: options.Transaction().
			SetReadConcern(readconcern.Snapshot()).
			SetWriteConcern(writeconcern.Majority()),
	}
}

func (m *mongoTransactionManager) ExecuteTransaction(ctx context.Context, fn TransactionFunc) error {
	session, err := m.client.StartSession()
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (any, error) {
		return nil, fn(sessCtx)
	}, m.opts)

	switch {
	case err == nil:
		return nil
	case apperrors.IsAppError(err):
		return err
	case isWriteConflict(err):
		// Two writers touched the same apartment and the driver gave up retrying.
		return apperrors.Conflict("Reservation was modified concurrently, please retry")
	default:
		return fmt.Errorf("transaction failed: %w", err)
	}
}

func isWriteConflict(err error) bool {
	var labeled mongo.LabeledError
	if errors.As(err, &labeled) && labeled.HasErrorLabel("TransientTransactionError") {
		return true
	}
	var cmdErr mongo.CommandError
	return errors.As(err, &cmdErr) && cmdErr.Name == "WriteConflict"
}
