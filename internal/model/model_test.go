package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestListing_DecodeBackendShapes(t *testing.T) {
	t.Parallel()

	raw := `{"id":42,"title":"Yoga by the lake","description":"d","date":"2024-07-10T00:00:00.000Z",
		"location":"Goa","price":"1200.50","type":"Signature","condition":"Mental wellness",
		"image":"https://img/1.png","duration":5,"tags":["yoga","lake"]}`
	var l Listing
	require.NoError(t, json.Unmarshal([]byte(raw), &l))
	require.Equal(t, 42, l.ID)
	require.Equal(t, "2024-07-10", l.Date.String())
	require.Equal(t, Price("1200.50"), l.Price)
	require.Equal(t, []string{"yoga", "lake"}, l.Tags)

	raw = `{"id":1,"date":"2024-01-02","price":99.9}`
	require.NoError(t, json.Unmarshal([]byte(raw), &l))
	require.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), l.Date.Time)
	require.Equal(t, Price("99.9"), l.Price)
}

func TestDate_Errors_And_Null(t *testing.T) {
	t.Parallel()

	var d Date
	require.Error(t, json.Unmarshal([]byte(`"tomorrow"`), &d))
	require.NoError(t, json.Unmarshal([]byte(`null`), &d))
	require.True(t, d.IsZero())
	require.Equal(t, "", d.String())

	out, err := json.Marshal(Date{time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	require.JSONEq(t, `"2025-03-09"`, string(out))
}

func TestSearchQuery_Normalize(t *testing.T) {
	t.Parallel()

	q := SearchQuery{Term: "yoga"}.Normalize()
	require.Equal(t, 1, q.Page)
	require.Equal(t, DefaultPageSize, q.PageSize)

	q = SearchQuery{Page: 3, PageSize: 10}.Normalize()
	require.Equal(t, 3, q.Page)
	require.Equal(t, 10, q.PageSize)
}
