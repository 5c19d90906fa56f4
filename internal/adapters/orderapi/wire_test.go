package orderapi

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rider-tracking-service/internal/domain"
)

func decodeOrder(t *testing.T, raw string) wireOrder {
	t.Helper()
	var w wireOrder
	require.NoError(t, json.Unmarshal([]byte(raw), &w))
	return w
}

func TestItemsStringAndListNormalizeEqually(t *testing.T) {
	asList := decodeOrder(t, `{"id": 7, "status": "accepted",
		"items": [{"product_name": "Chickenjoy Bucket", "quantity": 1}, {"product_name": "Jolly Spaghetti", "quantity": 2}]}`)
	asString := decodeOrder(t, `{"id": 7, "status": "accepted",
		"items": "[{\"product_name\": \"Chickenjoy Bucket\", \"quantity\": 1}, {\"product_name\": \"Jolly Spaghetti\", \"quantity\": \"2\"}]"}`)

	a, err := normalizeOrder(asList)
	require.NoError(t, err)
	b, err := normalizeOrder(asString)
	require.NoError(t, err)

	want := []domain.Item{
		{ProductName: "Chickenjoy Bucket", Quantity: 1},
		{ProductName: "Jolly Spaghetti", Quantity: 2},
	}
	assert.Equal(t, want, a.Items)
	assert.Equal(t, a.Items, b.Items)
}

func TestMalformedItemsBecomeEmpty(t *testing.T) {
	for _, items := range []string{`"not json"`, `"{\"a\":1}"`, `42`, `null`, `{"x": 1}`} {
		w := decodeOrder(t, `{"id": "A1", "status": "accepted", "items": `+items+`}`)
		o, err := normalizeOrder(w)
		require.NoError(t, err, items)
		assert.NotNil(t, o.Items, items)
		assert.Empty(t, o.Items, items)
	}
}

func TestDestinationConventions(t *testing.T) {
	cases := []struct {
		name string
		json string
		want *domain.Coordinates
	}{
		{"latitude pair", `"latitude": 14.6, "longitude": 121.0`, &domain.Coordinates{Lat: 14.6, Lng: 121.0}},
		{"customer pair", `"customer_latitude": "14.6", "customer_longitude": "121.0"`, &domain.Coordinates{Lat: 14.6, Lng: 121.0}},
		{"partial pair", `"latitude": 14.6`, nil},
		{"mixed pairs are not combined", `"latitude": 14.6, "customer_longitude": 121.0`, nil},
		{"null", `"latitude": null, "longitude": null`, nil},
		{"empty strings", `"latitude": "", "longitude": ""`, nil},
		{"nan string", `"latitude": "NaN", "longitude": "121.0"`, nil},
		{"garbage", `"latitude": "north", "longitude": "121.0"`, nil},
		{"fallback after invalid primary", `"latitude": "NaN", "longitude": 1, "customer_latitude": 14.6, "customer_longitude": 121.0`, &domain.Coordinates{Lat: 14.6, Lng: 121.0}},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			w := decodeOrder(t, `{"id": 1, "status": "accepted", `+c.json+`}`)
			o, err := normalizeOrder(w)
			require.NoError(t, err)
			assert.Equal(t, c.want, o.Destination)
			assert.Equal(t, c.want != nil, o.HasDestination())
		})
	}
}

func TestNormalizeOrderFields(t *testing.T) {
	w := decodeOrder(t, `{
		"id": "ORD12345",
		"status": "In-Transit",
		"delivery_full_name": " John Doe ",
		"delivery_phone": "0917",
		"total_amount": "750.50",
		"created_at": "2026-01-01 08:00:00"
	}`)

	o, err := normalizeOrder(w)
	require.NoError(t, err)

	assert.Equal(t, "ORD12345", o.ID)
	assert.Equal(t, domain.StatusInTransit, o.Status)
	assert.Equal(t, "John Doe", o.DeliveryFullName)
	assert.Equal(t, "750.5", o.TotalAmount.String())
	assert.Equal(t, 2026, o.CreatedAt.Year())
	assert.Equal(t, 8, o.CreatedAt.Hour())
}

func TestNormalizeOrderRejectsMissingIDAndUnknownStatus(t *testing.T) {
	_, err := normalizeOrder(decodeOrder(t, `{"status": "accepted"}`))
	assert.ErrorIs(t, err, errMissingID)

	_, err = normalizeOrder(decodeOrder(t, `{"id": 3, "status": "teleported"}`))
	assert.ErrorIs(t, err, domain.ErrUnknownStatus)
}
