package coingecko

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestListTopAssets(t *testing.T) {
	var gotQuery map[string]string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/coins/markets" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		gotQuery = map[string]string{
			"vs_currency": r.URL.Query().Get("vs_currency"),
			"order":       r.URL.Query().Get("order"),
			"per_page":    r.URL.Query().Get("per_page"),
			"api_key":     r.URL.Query().Get("x_cg_demo_api_key"),
		}
		w.Write([]byte(`[
			{"id":"bitcoin","symbol":"btc","name":"Bitcoin"},
			{"id":"ethereum","symbol":"eth","name":"Ethereum"}
		]`))
	}))
	defer server.Close()

	client := NewClient(Config{
		BaseURL:    server.URL,
		APIKey:     "demo-key",
		VsCurrency: "usd",
		TopNCoins:  5,
	}, testLogger())

	assets, err := client.ListTopAssets(context.Background())
	if err != nil {
		t.Fatalf("ListTopAssets failed: %v", err)
	}

	if len(assets) != 2 {
		t.Fatalf("expected 2 assets, got %d", len(assets))
	}
	if assets[0].ID != "bitcoin" || assets[0].Symbol != "btc" || assets[0].Name != "Bitcoin" {
		t.Errorf("unexpected first asset: %+v", assets[0])
	}
	if gotQuery["vs_currency"] != "usd" || gotQuery["order"] != "market_cap_desc" || gotQuery["per_page"] != "5" {
		t.Errorf("unexpected query parameters: %v", gotQuery)
	}
	if gotQuery["api_key"] != "demo-key" {
		t.Errorf("expected API key parameter, got %q", gotQuery["api_key"])
	}
}

func TestFetchTickers(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/coins/bitcoin/tickers" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if order := r.URL.Query().Get("order"); order != "volume_desc" {
			t.Errorf("expected order=volume_desc, got %q", order)
		}
		w.Write([]byte(`{"tickers":[
			{"target":"USD","last":64250.5,"trust_score":"green",
			 "market":{"name":"Binance","identifier":"binance"},
			 "converted_volume":{"usd":123456.7}},
			{"target":"EUR","last":null,"trust_score":"yellow",
			 "market":{"name":"Kraken","identifier":"kraken"},
			 "converted_volume":{"usd":99.9}}
		]}`))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, VsCurrency: "usd"}, testLogger())

	tickers, err := client.FetchTickers(context.Background(), "bitcoin")
	if err != nil {
		t.Fatalf("FetchTickers failed: %v", err)
	}
	if len(tickers) != 2 {
		t.Fatalf("expected 2 tickers, got %d", len(tickers))
	}

	first := tickers[0]
	if first.Target != "USD" || first.TrustScore != "green" || first.Market.Name != "Binance" {
		t.Errorf("unexpected first ticker: %+v", first)
	}
	if first.Last == nil || *first.Last != 64250.5 {
		t.Errorf("expected last 64250.5, got %v", first.Last)
	}
	if first.ConvertedVolume.USD != 123456.7 {
		t.Errorf("expected converted volume 123456.7, got %f", first.ConvertedVolume.USD)
	}

	// A null last price must decode as absent, not zero.
	if tickers[1].Last != nil {
		t.Errorf("expected nil last for null price, got %v", *tickers[1].Last)
	}
}

func TestRateLimitedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, VsCurrency: "usd"}, testLogger())

	if _, err := client.ListTopAssets(context.Background()); !errors.Is(err, ErrRateLimited) {
		t.Errorf("ListTopAssets: expected ErrRateLimited, got %v", err)
	}
	if _, err := client.FetchTickers(context.Background(), "bitcoin"); !errors.Is(err, ErrRateLimited) {
		t.Errorf("FetchTickers: expected ErrRateLimited, got %v", err)
	}
}

func TestServerErrorResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, VsCurrency: "usd"}, testLogger())

	if _, err := client.ListTopAssets(context.Background()); err == nil {
		t.Error("expected error on 500 response, got nil")
	}
}
