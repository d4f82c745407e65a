package sink

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bhavcopy-ingest/internal/interfaces"
	"bhavcopy-ingest/internal/logger"
	"bhavcopy-ingest/internal/types"

	"github.com/jinzhu/copier"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type bhavcopyDoc struct {
	Symbol         string    `bson:"symbol"`
	Series         string    `bson:"series"`
	TradeDate      time.Time `bson:"trade_date"`
	PrevClose      float64   `bson:"prev_close"`
	OpenPrice      float64   `bson:"open_price"`
	HighPrice      float64   `bson:"high_price"`
	LowPrice       float64   `bson:"low_price"`
	LastPrice      float64   `bson:"last_price"`
	ClosePrice     float64   `bson:"close_price"`
	AvgPrice       float64   `bson:"avg_price"`
	TotalTradedQty int64     `bson:"ttl_trd_qnty"`
	TurnoverLacs   float64   `bson:"turnover_lacs"`
	NoOfTrades     int64     `bson:"no_of_trades"`
	DeliveredQty   int64     `bson:"deliv_qty"`
	DeliveredPct   float64   `bson:"deliv_per"`
	UpdatedAt      time.Time `bson:"updated_at"`
}

// Mongo upserts with one unordered bulk write per date. MongoDB gives no multi-document
// atomicity here, so a crash during the bulk write can leave a date partly applied;
// re-running the date converges because every write is an upsert.
type Mongo struct {
	client *mongo.Client
	coll   *mongo.Collection
}

var _ interfaces.Sink = (*Mongo)(nil)

func OpenMongo(ctx context.Context, uri, database, collection string) (*Mongo, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	coll := client.Database(database).Collection(collection)
	_, err = coll.Indexes().CreateOne(connectCtx, mongo.IndexModel{
		Keys:    bson.D{{Key: "symbol", Value: 1}, {Key: "series", Value: 1}, {Key: "trade_date", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("natural_key"),
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("create index: %w", err)
	}

	logger.Info(ctx, "Mongo sink opened", "database", database, "collection", collection)
	return &Mongo{client: client, coll: coll}, nil
}

func (m *Mongo) Apply(ctx context.Context, records []types.DailyRecord) (types.Counts, error) {
	var counts types.Counts

	now := time.Now().UTC()
	models := make([]mongo.WriteModel, 0, len(records))
	for _, r := range records {
		if err := r.Validate(); err != nil {
			counts.Errored++
			logger.Debug(ctx, "Row rejected", "error", err)
			continue
		}
		var doc bhavcopyDoc
		if err := copier.Copy(&doc, &r); err != nil {
			counts.Errored++
			continue
		}
		doc.UpdatedAt = now

		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"symbol": r.Symbol, "series": r.Series, "trade_date": r.TradeDate}).
			SetUpdate(bson.M{"$set": doc}).
			SetUpsert(true))
	}
	if len(models) == 0 {
		return counts, nil
	}

	res, err := m.coll.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	tally, err := tallyBulkWrite(ctx, len(models), res, err)
	if err != nil {
		return types.Counts{}, err
	}
	counts.Created += tally.Created
	counts.Updated += tally.Updated
	counts.Errored += tally.Errored
	return counts, nil
}

var errNoBulkResult = errors.New("bulk write: no result")

// tallyBulkWrite splits n upsert models into created, updated and errored.
func tallyBulkWrite(ctx context.Context, n int, res *mongo.BulkWriteResult, err error) (types.Counts, error) {
	failed := map[int64]bool{}
	var bwe mongo.BulkWriteException
	if errors.As(err, &bwe) {
		for _, we := range bwe.WriteErrors {
			failed[int64(we.Index)] = true
			logger.Debug(ctx, "Row upsert failed", "index", we.Index, "error", we.Message)
		}
	} else if err != nil {
		return types.Counts{}, fmt.Errorf("bulk write: %w", err)
	}
	if res == nil {
		if err != nil {
			return types.Counts{}, fmt.Errorf("bulk write: %w", err)
		}
		return types.Counts{}, errNoBulkResult
	}

	var counts types.Counts
	for i := range n {
		idx := int64(i)
		switch {
		case failed[idx]:
			counts.Errored++
		case res.UpsertedIDs[idx] != nil:
			counts.Created++
		default:
			counts.Updated++
		}
	}
	return counts, nil
}

func (m *Mongo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}
