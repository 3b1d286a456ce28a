package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	reservationserrors "apartur/internal/reservations/errors"
	"apartur/pkg/config"
	mongotx "apartur/pkg/db/mongo"
	"apartur/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Reservations"
)

type ReservationRepository interface {
	Create(ctx context.Context, reservation *model.Reservation) error
	FindByID(ctx context.Context, id string) (*model.Reservation, error)
	FindAll(ctx context.Context, limit int, offset int64) ([]*model.Reservation, error)
	Count(ctx context.Context) (int64, error)
	FindByApartment(ctx context.Context, apartmentID string, from, to *time.Time, limit int, offset int64) ([]*model.Reservation, error)
	CountByApartment(ctx context.Context, apartmentID string, from, to *time.Time) (int64, error)
	FindByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Reservation, error)
	CountByUser(ctx context.Context, userID string) (int64, error)
	FindActiveOverlapping(ctx context.Context, apartmentID string, entry, exit time.Time) ([]*model.Reservation, error)
	Update(ctx context.Context, id string, reservation *model.Reservation) error
	UpdateStatus(ctx context.Context, id string, from, to string) error
	Delete(ctx context.Context, id string) error
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

type mongoReservationRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

func NewMongoReservationRepository(cfg *config.Config) ReservationRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoReservationRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

// withTimeout leaves a SessionContext untouched: wrapping it would detach
// the operation from the running transaction.
func (r *mongoReservationRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

func (r *mongoReservationRepository) Create(ctx context.Context, reservation *model.Reservation) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	reservation.CreatedAt = now
	reservation.UpdatedAt = now

	doc, err := toDocument(reservation)
	if err != nil {
		return err
	}

	result, err := r.collection.InsertOne(ctx, doc)
	if err != nil {
		return fmt.Errorf("failed to create reservation: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		reservation.ID = oid.Hex()
	}
	return nil
}

func (r *mongoReservationRepository) FindByID(ctx context.Context, id string) (*model.Reservation, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", reservationserrors.ErrInvalidID, id)
	}

	var doc reservationDocument
	if err := r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, reservationserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find reservation: %w", err)
	}

	return doc.toModel(), nil
}

func (r *mongoReservationRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*model.Reservation, error) {
	return r.find(ctx, bson.M{}, limit, offset)
}

func (r *mongoReservationRepository) Count(ctx context.Context) (int64, error) {
	return r.count(ctx, bson.M{})
}

func (r *mongoReservationRepository) FindByApartment(ctx context.Context, apartmentID string, from, to *time.Time, limit int, offset int64) ([]*model.Reservation, error) {
	filter, err := apartmentFilter(apartmentID, from, to)
	if err != nil {
		return nil, err
	}
	return r.find(ctx, filter, limit, offset)
}

func (r *mongoReservationRepository) CountByApartment(ctx context.Context, apartmentID string, from, to *time.Time) (int64, error) {
	filter, err := apartmentFilter(apartmentID, from, to)
	if err != nil {
		return 0, err
	}
	return r.count(ctx, filter)
}

func (r *mongoReservationRepository) FindByUser(ctx context.Context, userID string, limit int, offset int64) ([]*model.Reservation, error) {
	return r.find(ctx, bson.M{"user_id": userID}, limit, offset)
}

func (r *mongoReservationRepository) CountByUser(ctx context.Context, userID string) (int64, error) {
	return r.count(ctx, bson.M{"user_id": userID})
}

// FindActiveOverlapping pre-filters with the same half-open predicate the
// availability checker applies: entry < exit' AND entry' < exit.
func (r *mongoReservationRepository) FindActiveOverlapping(ctx context.Context, apartmentID string, entry, exit time.Time) ([]*model.Reservation, error) {
	aptOID, err := primitive.ObjectIDFromHex(apartmentID)
	if err != nil {
		return nil, fmt.Errorf("%w: apartment %s", reservationserrors.ErrInvalidID, apartmentID)
	}

	filter := bson.M{
		"apartment_id": aptOID,
		"status":       bson.M{"$in": model.ActiveStatuses()},
		"entry":        bson.M{"$lt": exit},
		"exit":         bson.M{"$gt": entry},
	}
	return r.find(ctx, filter, 0, 0)
}

func (r *mongoReservationRepository) Update(ctx context.Context, id string, reservation *model.Reservation) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", reservationserrors.ErrInvalidID, id)
	}

	reservation.UpdatedAt = time.Now().UTC().Truncate(time.Millisecond)
	update := bson.M{
		"$set": bson.M{
			"guest_name":  reservation.GuestName,
			"guest_phone": reservation.GuestPhone,
			"guest_email": reservation.GuestEmail,
			"entry":       reservation.Entry,
			"exit":        reservation.Exit,
			"guests":      reservation.Guests,
			"price":       reservation.Price,
			"status":      reservation.Status,
			"updated_at":  reservation.UpdatedAt,
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": objectID}, update)
	if err != nil {
		return fmt.Errorf("failed to update reservation: %w", err)
	}
	if result.MatchedCount == 0 {
		return reservationserrors.ErrNotFound
	}
	return nil
}

// UpdateStatus is a compare-and-set on status; a concurrent change makes it
// report ErrInvalidTransition.
func (r *mongoReservationRepository) UpdateStatus(ctx context.Context, id string, from, to string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", reservationserrors.ErrInvalidID, id)
	}

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": objectID, "status": from},
		bson.M{"$set": bson.M{"status": to, "updated_at": time.Now().UTC().Truncate(time.Millisecond)}},
	)
	if err != nil {
		return fmt.Errorf("failed to update reservation status: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: %s is no longer %s", reservationserrors.ErrInvalidTransition, id, from)
	}
	return nil
}

func (r *mongoReservationRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", reservationserrors.ErrInvalidID, id)
	}

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": objectID})
	if err != nil {
		return fmt.Errorf("failed to delete reservation: %w", err)
	}
	if result.DeletedCount == 0 {
		return reservationserrors.ErrNotFound
	}
	return nil
}

func (r *mongoReservationRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}

func (r *mongoReservationRepository) find(ctx context.Context, filter bson.M, limit int, offset int64) ([]*model.Reservation, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "entry", Value: 1}, {Key: "_id", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	if offset > 0 {
		opts.SetSkip(offset)
	}

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find reservations: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []reservationDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode reservations: %w", err)
	}

	reservations := make([]*model.Reservation, 0, len(docs))
	for i := range docs {
		reservations = append(reservations, docs[i].toModel())
	}
	return reservations, nil
}

func (r *mongoReservationRepository) count(ctx context.Context, filter bson.M) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count reservations: %w", err)
	}
	return count, nil
}

func apartmentFilter(apartmentID string, from, to *time.Time) (bson.M, error) {
	aptOID, err := primitive.ObjectIDFromHex(apartmentID)
	if err != nil {
		return nil, fmt.Errorf("%w: apartment %s", reservationserrors.ErrInvalidID, apartmentID)
	}

	filter := bson.M{"apartment_id": aptOID}
	if to != nil {
		filter["entry"] = bson.M{"$lt": *to}
	}
	if from != nil {
		filter["exit"] = bson.M{"$gt": *from}
	}
	return filter, nil
}
