package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/shestoi/nextbuy/services/analytics/internal/repository"
)

const (
	processedCollection = "processed_events"
	countersCollection  = "behavior_counters"
)

// counterDocument документ коллекции behavior_counters
type counterDocument struct {
	Day       string               `bson:"day"`
	ShopID    string               `bson:"shop_id"`
	ProductID string               `bson:"product_id"`
	Action    string               `bson:"action"`
	Count     int64                `bson:"count"`
	Amount    primitive.Decimal128 `bson:"amount"`
	UpdatedAt time.Time            `bson:"updated_at"`
}

// Repository реализует CounterRepository поверх MongoDB.
// Идемпотентность держится на уникальном _id в processed_events.
type Repository struct {
	processed *mongo.Collection
	counters  *mongo.Collection
	now       func() time.Time
}

// NewRepository создаёт репозиторий и индекс по ключу счётчика
func NewRepository(client *mongo.Client, dbName string) *Repository {
	db := client.Database(dbName)
	counters := db.Collection(countersCollection)

	indexModel := mongo.IndexModel{
		Keys: bson.D{
			{Key: "shop_id", Value: 1},
			{Key: "day", Value: 1},
			{Key: "product_id", Value: 1},
			{Key: "action", Value: 1},
		},
		Options: options.Index().SetUnique(true),
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Индекс уже может существовать
	_, _ = counters.Indexes().CreateOne(ctx, indexModel)

	return &Repository{
		processed: db.Collection(processedCollection),
		counters:  counters,
		now:       time.Now,
	}
}

// Apply сначала помечает событие обработанным, затем увеличивает счётчик.
// Если инкремент не удался, отметка снимается, чтобы повторная доставка учла событие.
func (r *Repository) Apply(ctx context.Context, eventID string, key repository.CounterKey, amount decimal.Decimal) error {
	now := r.now().UTC()

	_, err := r.processed.InsertOne(ctx, bson.M{"_id": eventID, "processed_at": now})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repository.ErrAlreadyApplied
		}
		return fmt.Errorf("mark event processed: %w", err)
	}

	inc, err := primitive.ParseDecimal128(amount.String())
	if err != nil {
		return withUnmark(fmt.Errorf("convert amount %s: %w", amount, err), r.unmark(ctx, eventID))
	}

	filter := bson.M{
		"shop_id":    key.ShopID,
		"day":        key.Day,
		"product_id": key.ProductID,
		"action":     key.Action,
	}
	update := bson.M{
		"$inc": bson.M{"count": int64(1), "amount": inc},
		"$set": bson.M{"updated_at": now},
	}

	if _, err := r.counters.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true)); err != nil {
		return withUnmark(fmt.Errorf("increment counter: %w", err), r.unmark(ctx, eventID))
	}
	return nil
}

func (r *Repository) unmark(ctx context.Context, eventID string) error {
	// отметка снимается даже при отменённом ctx запроса
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if _, err := r.processed.DeleteOne(ctx, bson.M{"_id": eventID}); err != nil {
		return fmt.Errorf("unmark event %s: %w", eventID, err)
	}
	return nil
}

// withUnmark добавляет к ошибке применения ошибку снятия отметки:
// событие с неснятой отметкой больше не будет учтено
func withUnmark(applyErr, unmarkErr error) error {
	if unmarkErr == nil {
		return applyErr
	}
	return errors.Join(applyErr, unmarkErr)
}

func (r *Repository) ListByShopDay(ctx context.Context, shopID, day string) ([]repository.Counter, error) {
	opts := options.Find().SetSort(bson.D{{Key: "product_id", Value: 1}, {Key: "action", Value: 1}})
	cur, err := r.counters.Find(ctx, bson.M{"shop_id": shopID, "day": day}, opts)
	if err != nil {
		return nil, fmt.Errorf("find counters: %w", err)
	}
	defer cur.Close(ctx)

	out := make([]repository.Counter, 0)
	for cur.Next(ctx) {
		var doc counterDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode counter: %w", err)
		}

		amount, err := decimal.NewFromString(doc.Amount.String())
		if err != nil {
			return nil, fmt.Errorf("parse counter amount %s: %w", doc.Amount, err)
		}

		out = append(out, repository.Counter{
			CounterKey: repository.CounterKey{
				Day:       doc.Day,
				ShopID:    doc.ShopID,
				ProductID: doc.ProductID,
				Action:    doc.Action,
			},
			Count:  doc.Count,
			Amount: amount,
		})
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterate counters: %w", err)
	}
	return out, nil
}
