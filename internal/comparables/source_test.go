package comparables

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestListingsAPISource_Fetch(t *testing.T) {
	var gotQuery map[string]string
	var gotKey string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{
			"location":      r.URL.Query().Get("location"),
			"beds":          r.URL.Query().Get("beds"),
			"property_type": r.URL.Query().Get("property_type"),
		}
		gotKey = r.Header.Get("X-Api-Key")

		_, _ = w.Write([]byte(`[
			{"address":"1 Test St","price":700000,"beds":3,"baths":2,"status":"sold","url":"https://example.com/1"},
			{"address":"2 Test St","beds":3,"baths":1,"status":"listed"}
		]`))
	}))
	defer server.Close()

	source := NewListingsAPISource(logrus.New(), "listings-api", server.URL, "secret-key")

	comps, err := source.Fetch(context.Background(), Query{
		Location:     "Richmond VIC",
		Beds:         3,
		Baths:        2,
		PropertyType: "house",
	})
	assert.NoError(t, err)
	assert.Len(t, comps, 2)

	assert.Equal(t, "Richmond VIC", gotQuery["location"])
	assert.Equal(t, "3", gotQuery["beds"])
	assert.Equal(t, "house", gotQuery["property_type"])
	assert.Equal(t, "secret-key", gotKey)

	assert.Equal(t, "1 Test St", comps[0].Address)
	assert.NotNil(t, comps[0].Price)
	assert.Equal(t, 700000.0, *comps[0].Price)
	assert.Equal(t, "sold", comps[0].Status)
	assert.Equal(t, "listings-api", comps[0].Source)

	// Price stays absent when the listing carries none
	assert.Nil(t, comps[1].Price)
}

func TestListingsAPISource_UpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	source := NewListingsAPISource(logrus.New(), "listings-api", server.URL, "")

	_, err := source.Fetch(context.Background(), Query{Location: "Richmond VIC"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
}

func TestListingsAPISource_BadPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"not":"a list"}`))
	}))
	defer server.Close()

	source := NewListingsAPISource(logrus.New(), "listings-api", server.URL, "")

	_, err := source.Fetch(context.Background(), Query{Location: "Richmond VIC"})
	assert.Error(t, err)
}
