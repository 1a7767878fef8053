package settings

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iurnickita/moneybirdsync/internal/model"
	"github.com/iurnickita/moneybirdsync/internal/store"
)

func TestSettingsLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewSettings(store.NewMemStore())

	loaded, err := s.Load(ctx)
	require.NoError(t, err)
	require.False(t, loaded.Configured())
	require.Equal(t, model.OrderStatusCompleted, loaded.SyncOnStatus)

	require.NoError(t, s.Connect(ctx, "token", "adm-1"))
	loaded, err = s.Load(ctx)
	require.NoError(t, err)
	require.True(t, loaded.Connected())
	require.False(t, loaded.Configured())

	require.NoError(t, s.Update(ctx, "ledger-1", "", model.OrderStatusProcessing))
	loaded, err = s.Load(ctx)
	require.NoError(t, err)
	require.True(t, loaded.Configured())
	require.Equal(t, model.Settings{
		APIToken:         "token",
		AdministrationID: "adm-1",
		LedgerAccountID:  "ledger-1",
		SyncOnStatus:     model.OrderStatusProcessing,
	}, loaded)

	require.NoError(t, s.Reset(ctx))
	loaded, err = s.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, model.Settings{SyncOnStatus: model.DefaultSyncOnStatus}, loaded)
}
