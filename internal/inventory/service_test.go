package inventory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threadline/threadline-backend/pkg/clock"
	"github.com/threadline/threadline-backend/pkg/db/dbtest"
	pkgerrors "github.com/threadline/threadline-backend/pkg/errors"
	"github.com/threadline/threadline-backend/pkg/metrics"
	"github.com/threadline/threadline-backend/pkg/types"
)

func TestServiceCommitSale(t *testing.T) {
	client, conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ledger, err := NewLedger(repo, clock.NewFixed(ledgerNow))
	require.NoError(t, err)
	reg := prometheus.NewRegistry()
	svc, err := NewService(client, repo, ledger, metrics.NewOperationMetrics(reg), nil)
	require.NoError(t, err)

	product := seedProduct(t, conn, types.SizeMap{"M": 2}, types.SizeMap{"M": 1})

	got, err := svc.CommitSale(context.Background(), product.ID, types.SizeMap{"M": 1})
	require.NoError(t, err)
	assert.Equal(t, types.SizeMap{"M": 1}, got.Sizes)
	assert.Empty(t, got.ReservedSizes)

	_, err = svc.CommitSale(context.Background(), product.ID, types.SizeMap{"M": 5})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock))

	mfs, err := reg.Gather()
	require.NoError(t, err)
	counts := map[string]float64{}
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			if m.GetCounter() != nil {
				counts[mf.GetName()] += m.GetCounter().GetValue()
			}
		}
	}
	assert.Equal(t, 1.0, counts["operation_success"])
	assert.Equal(t, 1.0, counts["operation_failure"])
}

func TestServiceGetProductNotFound(t *testing.T) {
	client, conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ledger, err := NewLedger(repo, clock.NewSystem())
	require.NoError(t, err)
	svc, err := NewService(client, repo, ledger, nil, nil)
	require.NoError(t, err)

	_, err = svc.GetProduct(context.Background(), uuid.New())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestNewServiceRequiresDependencies(t *testing.T) {
	_, err := NewService(nil, nil, nil, nil, nil)
	require.Error(t, err)
}
