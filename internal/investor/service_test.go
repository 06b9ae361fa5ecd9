package investor_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/seaward/backoffice/internal/investor"
)

var errMiss = errors.New("key not found")

func TestService_Create(t *testing.T) {
	type testCase struct {
		name      string
		params    investor.CreateParams
		setupMock func(m *investor.MockRepository)
		wantErr   error
	}

	joined := time.Date(2024, 3, 9, 15, 4, 5, 0, time.UTC)

	tests := []testCase{
		{
			name: "Success",
			params: investor.CreateParams{
				Name:           "  Ada Lovelace ",
				AccountType:    "Fixed",
				InvestmentTerm: "12 months",
				ROI:            decimal.RequireFromString("10"),
				DateJoined:     &joined,
			},
			setupMock: func(m *investor.MockRepository) {
				m.EXPECT().
					CreateInvestor(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, inv *investor.Investor) error {
						assert.Equal(t, "Ada Lovelace", inv.Name)
						assert.Equal(t, investor.StatusActive, inv.Status)
						assert.True(t, inv.AccountBalance.IsZero())
						assert.True(t, inv.CurrentBalance.IsZero())
						assert.Equal(t, time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC), inv.DateJoined)
						inv.ID = uuid.New()
						return nil
					})
			},
		},
		{
			name:    "MissingName",
			params:  investor.CreateParams{Name: "   "},
			wantErr: investor.ErrInvalidInput,
		},
		{
			name:    "NegativeROI",
			params:  investor.CreateParams{Name: "Bob", ROI: decimal.RequireFromString("-1")},
			wantErr: investor.ErrInvalidInput,
		},
		{
			name:    "ROIAboveColumnPrecision",
			params:  investor.CreateParams{Name: "Bob", ROI: decimal.RequireFromString("1000")},
			wantErr: investor.ErrInvalidInput,
		},
		{
			name:   "MaximumROI",
			params: investor.CreateParams{Name: "Bob", ROI: decimal.RequireFromString("999.9999")},
			setupMock: func(m *investor.MockRepository) {
				m.EXPECT().
					CreateInvestor(gomock.Any(), gomock.Any()).
					DoAndReturn(func(_ context.Context, inv *investor.Investor) error {
						inv.ID = uuid.New()
						return nil
					})
			},
		},
		{
			name:   "RepoError",
			params: investor.CreateParams{Name: "Bob"},
			setupMock: func(m *investor.MockRepository) {
				m.EXPECT().CreateInvestor(gomock.Any(), gomock.Any()).Return(errors.New("db error"))
			},
			wantErr: errors.New("db error"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			repo := investor.NewMockRepository(ctrl)
			if tt.setupMock != nil {
				tt.setupMock(repo)
			}

			svc := investor.NewService(repo, investor.NewMockCache(ctrl), time.Minute)
			got, err := svc.Create(context.Background(), tt.params)

			if tt.wantErr != nil {
				assert.Error(t, err)
				assert.Nil(t, got)

				if errors.Is(tt.wantErr, investor.ErrInvalidInput) {
					assert.ErrorIs(t, err, investor.ErrInvalidInput)
				}

				return
			}

			require.NoError(t, err)
			assert.NotEqual(t, uuid.Nil, got.ID)
		})
	}
}

func TestService_Create_DefaultsDateJoinedToToday(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := investor.NewMockRepository(ctrl)
	repo.EXPECT().CreateInvestor(gomock.Any(), gomock.Any()).Return(nil)

	svc := investor.NewService(repo, investor.NewMockCache(ctrl), time.Minute)

	got, err := svc.Create(context.Background(), investor.CreateParams{Name: "Grace"})
	require.NoError(t, err)

	y, m, d := time.Now().UTC().Date()
	assert.Equal(t, time.Date(y, m, d, 0, 0, 0, 0, time.UTC), got.DateJoined)
	assert.Nil(t, got.DatePayable)
}

func TestService_Get(t *testing.T) {
	id := uuid.New()
	genKey := investor.GenerationKey(id)
	key := investor.SnapshotKey(id, 3)
	stored := &investor.Investor{
		ID:             id,
		Name:           "Ada",
		ROI:            decimal.RequireFromString("10"),
		AccountBalance: decimal.RequireFromString("60"),
		CurrentBalance: decimal.RequireFromString("66"),
	}

	t.Run("CacheHit", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		raw, err := json.Marshal(stored)
		require.NoError(t, err)

		repo := investor.NewMockRepository(ctrl)
		cache := investor.NewMockCache(ctrl)
		cache.EXPECT().Counter(gomock.Any(), genKey).Return(int64(3), nil)
		cache.EXPECT().Get(gomock.Any(), key).Return(string(raw), nil)

		got, err := investor.NewService(repo, cache, time.Minute).Get(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, "Ada", got.Name)
		assert.True(t, stored.CurrentBalance.Equal(got.CurrentBalance))
	})

	t.Run("CacheMissFillsCache", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := investor.NewMockRepository(ctrl)
		cache := investor.NewMockCache(ctrl)
		cache.EXPECT().Counter(gomock.Any(), genKey).Return(int64(3), nil)
		cache.EXPECT().Get(gomock.Any(), key).Return("", errMiss)
		repo.EXPECT().GetInvestor(gomock.Any(), id).Return(stored, nil)
		cache.EXPECT().Set(gomock.Any(), key, gomock.Any(), time.Minute).Return(nil)

		got, err := investor.NewService(repo, cache, time.Minute).Get(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, stored, got)
	})

	t.Run("NotFound", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := investor.NewMockRepository(ctrl)
		cache := investor.NewMockCache(ctrl)
		cache.EXPECT().Counter(gomock.Any(), genKey).Return(int64(3), nil)
		cache.EXPECT().Get(gomock.Any(), key).Return("", errMiss)
		repo.EXPECT().GetInvestor(gomock.Any(), id).Return(nil, investor.ErrNotFound)

		_, err := investor.NewService(repo, cache, time.Minute).Get(context.Background(), id)
		assert.ErrorIs(t, err, investor.ErrNotFound)
	})

	t.Run("CorruptSnapshotFallsBackToStore", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := investor.NewMockRepository(ctrl)
		cache := investor.NewMockCache(ctrl)
		cache.EXPECT().Counter(gomock.Any(), genKey).Return(int64(3), nil)
		cache.EXPECT().Get(gomock.Any(), key).Return("{not json", nil)
		repo.EXPECT().GetInvestor(gomock.Any(), id).Return(stored, nil)
		cache.EXPECT().Set(gomock.Any(), key, gomock.Any(), time.Minute).Return(errors.New("redis down"))

		got, err := investor.NewService(repo, cache, time.Minute).Get(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, stored, got)
	})

	t.Run("CounterUnavailableBypassesCache", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := investor.NewMockRepository(ctrl)
		cache := investor.NewMockCache(ctrl)
		cache.EXPECT().Counter(gomock.Any(), genKey).Return(int64(0), errors.New("redis down"))
		repo.EXPECT().GetInvestor(gomock.Any(), id).Return(stored, nil)

		got, err := investor.NewService(repo, cache, time.Minute).Get(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, stored, got)
	})

	t.Run("SnapshotFromReadRacingAWriteIsNotServed", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		stale := *stored
		fresh := *stored
		fresh.AccountBalance = decimal.RequireFromString("70")
		fresh.CurrentBalance = decimal.RequireFromString("77")

		cache := newMemCache()
		repo := investor.NewMockRepository(ctrl)
		gomock.InOrder(
			repo.EXPECT().GetInvestor(gomock.Any(), id).
				DoAndReturn(func(ctx context.Context, _ uuid.UUID) (*investor.Investor, error) {
					// A ledger write commits between this read and the cache fill.
					_, err := cache.Incr(ctx, investor.GenerationKey(id))
					require.NoError(t, err)
					return &stale, nil
				}),
			repo.EXPECT().GetInvestor(gomock.Any(), id).Return(&fresh, nil),
		)

		svc := investor.NewService(repo, cache, time.Minute)
		ctx := context.Background()

		first, err := svc.Get(ctx, id)
		require.NoError(t, err)
		assert.True(t, stale.CurrentBalance.Equal(first.CurrentBalance))

		second, err := svc.Get(ctx, id)
		require.NoError(t, err)
		assert.True(t, fresh.CurrentBalance.Equal(second.CurrentBalance))

		// Served from the cache; the repository expects no further call.
		third, err := svc.Get(ctx, id)
		require.NoError(t, err)
		assert.True(t, fresh.CurrentBalance.Equal(third.CurrentBalance))
	})
}

// memCache is an in-process investor.Cache for tests that need real
// read-after-write behavior.
type memCache struct {
	mu       sync.Mutex
	values   map[string]string
	counters map[string]int64
}

func newMemCache() *memCache {
	return &memCache{values: map[string]string{}, counters: map[string]int64{}}
}

func (c *memCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.values[key]
	if !ok {
		return "", errMiss
	}

	return v, nil
}

func (c *memCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.values[key] = value.(string)

	return nil
}

func (c *memCache) Counter(_ context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.counters[key], nil
}

func (c *memCache) Incr(_ context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.counters[key]++

	return c.counters[key], nil
}

func TestService_Update(t *testing.T) {
	id := uuid.New()

	current := func() *investor.Investor {
		payable := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

		return &investor.Investor{
			ID:             id,
			Name:           "Ada",
			AccountType:    "Fixed",
			Status:         investor.StatusActive,
			ROI:            decimal.RequireFromString("10"),
			DatePayable:    &payable,
			AccountBalance: decimal.RequireFromString("60"),
			CurrentBalance: decimal.RequireFromString("66"),
		}
	}

	// runApply wires the mock repository to apply the patch onto a fresh row.
	runApply := func(m *investor.MockRepository) {
		m.EXPECT().
			UpdateInvestor(gomock.Any(), id, gomock.Any()).
			DoAndReturn(func(_ context.Context, _ uuid.UUID, apply func(*investor.Investor) error) (*investor.Investor, error) {
				inv := current()
				if err := apply(inv); err != nil {
					return nil, err
				}

				return inv, nil
			})
	}

	t.Run("ZeroROIIsAppliedAndReprices", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := investor.NewMockRepository(ctrl)
		cache := investor.NewMockCache(ctrl)
		runApply(repo)
		cache.EXPECT().Incr(gomock.Any(), investor.GenerationKey(id)).Return(int64(4), nil)

		got, err := investor.NewService(repo, cache, time.Minute).Update(context.Background(), id, investor.Patch{
			ROI: new(decimal.Zero),
		})
		require.NoError(t, err)
		assert.True(t, got.ROI.IsZero())
		assert.True(t, decimal.RequireFromString("60").Equal(got.CurrentBalance))
		assert.True(t, decimal.RequireFromString("60").Equal(got.AccountBalance))
	})

	t.Run("EmptyAccountTypeIsApplied", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := investor.NewMockRepository(ctrl)
		cache := investor.NewMockCache(ctrl)
		runApply(repo)
		cache.EXPECT().Incr(gomock.Any(), investor.GenerationKey(id)).Return(int64(4), nil)

		got, err := investor.NewService(repo, cache, time.Minute).Update(context.Background(), id, investor.Patch{
			AccountType: new(""),
		})
		require.NoError(t, err)
		assert.Empty(t, got.AccountType)
		assert.Equal(t, "Ada", got.Name)
		assert.True(t, decimal.RequireFromString("66").Equal(got.CurrentBalance))
	})

	t.Run("ClearDatePayable", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := investor.NewMockRepository(ctrl)
		cache := investor.NewMockCache(ctrl)
		runApply(repo)
		cache.EXPECT().Incr(gomock.Any(), investor.GenerationKey(id)).Return(int64(0), errors.New("redis down"))

		got, err := investor.NewService(repo, cache, time.Minute).Update(context.Background(), id, investor.Patch{
			ClearDatePayable: true,
		})
		require.NoError(t, err)
		assert.Nil(t, got.DatePayable)
	})

	t.Run("EmptyNameRejected", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		svc := investor.NewService(investor.NewMockRepository(ctrl), investor.NewMockCache(ctrl), time.Minute)

		_, err := svc.Update(context.Background(), id, investor.Patch{Name: new(" ")})
		assert.ErrorIs(t, err, investor.ErrInvalidInput)
	})

	t.Run("ROIAboveColumnPrecisionRejected", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		svc := investor.NewService(investor.NewMockRepository(ctrl), investor.NewMockCache(ctrl), time.Minute)

		_, err := svc.Update(context.Background(), id, investor.Patch{ROI: new(decimal.RequireFromString("1000"))})
		assert.ErrorIs(t, err, investor.ErrInvalidInput)
	})

	t.Run("RepricedBalanceOverflowRejected", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := investor.NewMockRepository(ctrl)
		repo.EXPECT().
			UpdateInvestor(gomock.Any(), id, gomock.Any()).
			DoAndReturn(func(_ context.Context, _ uuid.UUID, apply func(*investor.Investor) error) (*investor.Investor, error) {
				inv := current()
				inv.AccountBalance = decimal.RequireFromString("9999999999999.99")
				inv.CurrentBalance = inv.AccountBalance
				inv.ROI = decimal.Zero

				if err := apply(inv); err != nil {
					return nil, err
				}

				return inv, nil
			})

		// No generation bump is expected: nothing was written.
		svc := investor.NewService(repo, investor.NewMockCache(ctrl), time.Minute)

		_, err := svc.Update(context.Background(), id, investor.Patch{ROI: new(decimal.RequireFromString("1"))})
		assert.ErrorIs(t, err, investor.ErrInvalidInput)
	})

	t.Run("NotFound", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		repo := investor.NewMockRepository(ctrl)
		repo.EXPECT().UpdateInvestor(gomock.Any(), id, gomock.Any()).Return(nil, investor.ErrNotFound)

		svc := investor.NewService(repo, investor.NewMockCache(ctrl), time.Minute)

		_, err := svc.Update(context.Background(), id, investor.Patch{Name: new("Ada")})
		assert.ErrorIs(t, err, investor.ErrNotFound)
	})
}

func TestService_List(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	repo := investor.NewMockRepository(ctrl)
	repo.EXPECT().ListInvestors(gomock.Any()).Return([]*investor.Investor{{ID: uuid.New()}, {ID: uuid.New()}}, nil)

	got, err := investor.NewService(repo, investor.NewMockCache(ctrl), time.Minute).List(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 2)
}
