package token

import (
	"context"
	"errors"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/guregu/dynamo/v2"
)

// tokenRow is the cached-token item. ExpiresAt doubles as the table's
// TTL attribute; DynamoDB deletes expired items lazily, so Get still
// checks the instant itself.
type tokenRow struct {
	CacheKey  string `dynamo:"cache_key,hash"` // Primary key
	Value     string `dynamo:"value"`
	ExpiresAt int64  `dynamo:"expires_at"`
}

// DdbStore is the DynamoDB-backed token cache, for deployments where
// several web processes share one cache.
type DdbStore struct {
	ddbClient   *dynamodb.Client
	tableName   string
	tokensTable dynamo.Table
	now         func() time.Time
}

// NewDdbStore initializes a new DdbStore over an existing table.
func NewDdbStore(ddbClient *dynamodb.Client, tableName string) *DdbStore {
	ddb := &DdbStore{
		ddbClient: ddbClient,
		tableName: tableName,
		now:       time.Now,
	}
	db := dynamo.NewFromIface(ddb.ddbClient)
	ddb.tokensTable = db.Table(ddb.tableName)

	return ddb
}

func (ddb *DdbStore) Get(ctx context.Context, key string) (string, bool, error) {
	row := new(tokenRow)

	err := ddb.tokensTable.Get("cache_key", key).One(ctx, row)
	if err != nil {
		if errors.Is(err, dynamo.ErrNotFound) {
			return "", false, nil
		}
		return "", false, err
	}

	if row.ExpiresAt <= ddb.now().Unix() {
		return "", false, nil
	}
	return row.Value, true, nil
}

func (ddb *DdbStore) SetTTL(ctx context.Context, key string, value string, ttl time.Duration) error {
	row := &tokenRow{
		CacheKey:  key,
		Value:     value,
		ExpiresAt: ddb.now().Add(ttl).Unix(),
	}
	return ddb.tokensTable.Put(row).Run(ctx)
}
