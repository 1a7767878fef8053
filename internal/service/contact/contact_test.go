package contact

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/iurnickita/moneybirdsync/internal/model"
	"github.com/iurnickita/moneybirdsync/internal/service/moneybirdclient"
	"github.com/iurnickita/moneybirdsync/internal/store"
)

type fakeAPI struct {
	byEmail   map[string]moneybirdclient.Contact
	findErr   error
	createErr error
	createdID string

	findCalls int
	created   []moneybirdclient.ContactAttributes
}

func (api *fakeAPI) FindContactByEmail(_ context.Context, email string) (*moneybirdclient.Contact, error) {
	api.findCalls++
	if api.findErr != nil {
		return nil, api.findErr
	}
	if c, ok := api.byEmail[email]; ok {
		return &c, nil
	}
	return nil, nil
}

func (api *fakeAPI) CreateContact(_ context.Context, contact moneybirdclient.ContactAttributes) (moneybirdclient.Contact, error) {
	api.created = append(api.created, contact)
	if api.createErr != nil {
		return moneybirdclient.Contact{}, api.createErr
	}
	return moneybirdclient.Contact{ID: api.createdID}, nil
}

type failingPut struct {
	store.Store
}

func (failingPut) CustomerContactPut(context.Context, int64, string) error {
	return errors.New("db down")
}

func testOrder(customerID int64) model.Order {
	return model.Order{
		ID:         501,
		CustomerID: customerID,
		Billing: model.Billing{
			FirstName: "Jan",
			LastName:  "Jansen",
			Address1:  "Damrak 1",
			Postcode:  "1012 LG",
			City:      "Amsterdam",
			Country:   "NL",
			Email:     "jan@example.com",
			Phone:     "06 12345678",
		},
	}
}

func TestResolveCachedMapping(t *testing.T) {
	st := store.NewMemStore()
	require.NoError(t, st.CustomerContactPut(context.Background(), 42, "777"))
	api := &fakeAPI{}

	id, err := NewResolver(api, st, zap.NewNop()).Resolve(context.Background(), testOrder(42))
	require.NoError(t, err)
	require.Equal(t, "777", id)
	require.Zero(t, api.findCalls)
	require.Empty(t, api.created)
}

func TestResolveFoundByEmailIsCached(t *testing.T) {
	st := store.NewMemStore()
	api := &fakeAPI{byEmail: map[string]moneybirdclient.Contact{"jan@example.com": {ID: "300"}}}

	id, err := NewResolver(api, st, zap.NewNop()).Resolve(context.Background(), testOrder(42))
	require.NoError(t, err)
	require.Equal(t, "300", id)
	require.Empty(t, api.created)

	cached, err := st.CustomerContactGet(context.Background(), 42)
	require.NoError(t, err)
	require.Equal(t, "300", cached)
}

func TestResolveCreatesContact(t *testing.T) {
	st := store.NewMemStore()
	api := &fakeAPI{createdID: "555"}

	id, err := NewResolver(api, st, zap.NewNop()).Resolve(context.Background(), testOrder(42))
	require.NoError(t, err)
	require.Equal(t, "555", id)
	require.Len(t, api.created, 1)

	sent := api.created[0]
	require.Equal(t, "Jan Jansen", sent.CompanyName)
	require.Equal(t, "wc_42", sent.CustomerID)
	require.Equal(t, "1012 LG", sent.Zipcode)
	require.Equal(t, "+31612345678", sent.Phone)

	cached, err := st.CustomerContactGet(context.Background(), 42)
	require.NoError(t, err)
	require.Equal(t, "555", cached)
}

func TestResolveGuestNeverCached(t *testing.T) {
	st := store.NewMemStore()
	api := &fakeAPI{createdID: "556"}
	resolver := NewResolver(api, st, zap.NewNop())

	id, err := resolver.Resolve(context.Background(), testOrder(0))
	require.NoError(t, err)
	require.Equal(t, "556", id)
	require.Equal(t, "wc_501", api.created[0].CustomerID)

	_, err = st.CustomerContactGet(context.Background(), 0)
	require.ErrorIs(t, err, store.ErrNoRows)

	// гость ищется заново
	_, err = resolver.Resolve(context.Background(), testOrder(0))
	require.NoError(t, err)
	require.Equal(t, 2, api.findCalls)
}

func TestResolveCompanyName(t *testing.T) {
	order := testOrder(0)
	order.Billing.Company = "Jansen B.V."
	require.Equal(t, "Jansen B.V.", Attributes(order).CompanyName)

	order.Billing.Company = ""
	order.Billing.LastName = ""
	require.Equal(t, "Jan", Attributes(order).CompanyName)
}

func TestResolveFailures(t *testing.T) {
	apiErr := &moneybirdclient.APIError{StatusCode: 422, Message: "Email is invalid"}

	tests := []struct {
		name string
		api  *fakeAPI
	}{
		{name: "find", api: &fakeAPI{findErr: &moneybirdclient.TransportError{Err: context.DeadlineExceeded}}},
		{name: "create", api: &fakeAPI{createErr: apiErr}},
		{name: "empty_id", api: &fakeAPI{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := store.NewMemStore()
			_, err := NewResolver(tt.api, st, zap.NewNop()).Resolve(context.Background(), testOrder(42))
			require.ErrorIs(t, err, ErrContactResolution)

			_, err = st.CustomerContactGet(context.Background(), 42)
			require.ErrorIs(t, err, store.ErrNoRows)
		})
	}

	_, err := NewResolver(&fakeAPI{createErr: apiErr}, store.NewMemStore(), zap.NewNop()).
		Resolve(context.Background(), testOrder(42))
	var gotAPIErr *moneybirdclient.APIError
	require.ErrorAs(t, err, &gotAPIErr)
	require.Equal(t, "Email is invalid", gotAPIErr.Message)
}

func TestResolveCacheWriteFailureIsWarning(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	api := &fakeAPI{createdID: "555"}

	id, err := NewResolver(api, failingPut{store.NewMemStore()}, zap.New(core)).
		Resolve(context.Background(), testOrder(42))
	require.NoError(t, err)
	require.Equal(t, "555", id)
	require.Equal(t, 1, logs.FilterMessage("contact mapping write failed").Len())
}

func TestNormalizePhone(t *testing.T) {
	require.Equal(t, "+31612345678", NormalizePhone("06 12345678", "nl"))
	require.Equal(t, "+31612345678", NormalizePhone("+31 6 12345678", ""))
	require.Equal(t, "call me", NormalizePhone(" call me ", "NL"))
	require.Equal(t, "", NormalizePhone("", "NL"))
}
