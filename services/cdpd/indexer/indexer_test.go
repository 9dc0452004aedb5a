package indexer

import (
	"context"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"cdpchain/core/events"
	"cdpchain/crypto"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func owner() crypto.Address { return crypto.ModuleAddress("indexer-test-owner") }

func TestRecordAndQueryVaultEvents(t *testing.T) {
	store, err := New(setupTestDB(t), nil)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Record(ctx, events.VaultCreated{VaultID: 1, Owner: owner(), Collateral: big.NewInt(100)}))
	require.NoError(t, store.Record(ctx, events.VaultCreated{VaultID: 2, Owner: owner(), Collateral: big.NewInt(5)}))
	require.NoError(t, store.Record(ctx, events.VaultDebtMinted{VaultID: 1, Owner: owner(), Amount: big.NewInt(10), Debt: big.NewInt(10)}))

	records, err := store.VaultEvents(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, events.TypeVaultDebtMinted, records[0].Type, "newest first")
	require.Equal(t, events.TypeVaultCreated, records[1].Type)
	require.Equal(t, owner().String(), records[1].Account)

	attrs, err := records[1].DecodeAttributes()
	require.NoError(t, err)
	require.Equal(t, "100", attrs["collateral"])

	minted, err := store.Recent(ctx, events.TypeVaultDebtMinted, 10)
	require.NoError(t, err)
	require.Len(t, minted, 1)
}

func TestRunPersistsEmittedEvents(t *testing.T) {
	store, err := New(setupTestDB(t), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		store.Run(ctx)
		close(done)
	}()

	for i := 0; i < 5; i++ {
		store.Emit(events.OraclePriceSet{Asset: "STX", Price: big.NewInt(int64(i + 1)), Source: owner()})
	}
	require.Eventually(t, func() bool {
		records, err := store.Recent(context.Background(), events.TypeOraclePriceSet, 10)
		return err == nil && len(records) == 5
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done
}

func TestSequenceResumesAfterReopen(t *testing.T) {
	db := setupTestDB(t)
	first, err := New(db, nil)
	require.NoError(t, err)
	require.NoError(t, first.Record(context.Background(), events.VaultDebtRepaid{VaultID: 3, Owner: owner(), Amount: big.NewInt(1), Debt: big.NewInt(0)}))

	second, err := New(db, nil)
	require.NoError(t, err)
	require.NoError(t, second.Record(context.Background(), events.VaultDebtRepaid{VaultID: 3, Owner: owner(), Amount: big.NewInt(1), Debt: big.NewInt(0)}))

	records, err := second.VaultEvents(context.Background(), 3, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, records[1].Sequence+1, records[0].Sequence)
}

func TestClampLimit(t *testing.T) {
	require.Equal(t, defaultLimit, clampLimit(0))
	require.Equal(t, maxLimit, clampLimit(maxLimit+1))
	require.Equal(t, 7, clampLimit(7))
}
