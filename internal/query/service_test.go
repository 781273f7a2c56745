package query

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"tradecollector/internal/bitget/memorystore"
	"tradecollector/internal/cache"
)

var testNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeReader struct {
	snap *cache.Snapshot
	err  error
}

func (f *fakeReader) Data() (*cache.Snapshot, error) { return f.snap, f.err }

func (f *fakeReader) Stats() (cache.Stats, time.Time, error) {
	if f.err != nil {
		return cache.Stats{}, time.Time{}, f.err
	}
	return cache.ComputeStats(f.snap.Records, f.snap.FileSize), testNow.Add(-15 * time.Second), nil
}

func (f *fakeReader) LastRefresh() (time.Time, bool) { return testNow, f.snap != nil }

func records(n int, symbols ...string) []memorystore.TradeRecord {
	out := make([]memorystore.TradeRecord, n)
	for i := range out {
		out[i] = memorystore.TradeRecord{
			RecordedAt: memorystore.FormatRecordedAt(testNow.Add(time.Duration(i-n) * time.Second)),
			Symbol:     symbols[i%len(symbols)],
			Data: memorystore.TradeData{
				Price:   json.RawMessage(`"1"`),
				Size:    json.RawMessage(`"1"`),
				TradeID: json.RawMessage(fmt.Sprintf(`"%d"`, i)),
			},
		}
	}
	return out
}

func newTestService(recs []memorystore.TradeRecord) *Service {
	s := NewService(&fakeReader{snap: &cache.Snapshot{Records: recs, FileExists: true, FileSize: 3 * 1024 * 1024}}, Limits{
		MaxRecordsPerRequest: 1000,
		LatestMaxLimit:       500,
		FreshWithin:          time.Hour,
		StaleWithin:          2 * time.Hour,
	})
	s.now = func() time.Time { return testNow }
	return s
}

func tradeID(r memorystore.TradeRecord) string {
	return string(r.Data.TradeID)
}

// go test -v --run TestListPagination
func TestListPagination(t *testing.T) {
	s := newTestService(records(25, "BTCUSDT"))

	page, err := s.List(10, 0, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Records) != 10 || !page.HasMore || page.TotalRecords != 25 {
		t.Errorf("offset 0: %d records has_more=%v total=%d", len(page.Records), page.HasMore, page.TotalRecords)
	}

	page, _ = s.List(10, 20, "")
	if len(page.Records) != 5 || page.HasMore {
		t.Errorf("offset 20: %d records has_more=%v", len(page.Records), page.HasMore)
	}
	if tradeID(page.Records[0]) != `"20"` {
		t.Errorf("first record = %s, want \"20\"", tradeID(page.Records[0]))
	}

	page, _ = s.List(10, 100, "")
	if len(page.Records) != 0 || page.Records == nil {
		t.Errorf("offset past end should be an empty slice, got %v", page.Records)
	}
}

// go test -v --run TestListClampsInput
func TestListClampsInput(t *testing.T) {
	s := newTestService(records(1500, "BTCUSDT"))

	page, _ := s.List(5000, -3, "")
	if page.Limit != 1000 || page.Offset != 0 || len(page.Records) != 1000 {
		t.Errorf("clamped page = limit %d offset %d len %d", page.Limit, page.Offset, len(page.Records))
	}

	page, _ = s.List(-1, 0, "")
	if page.Limit != 0 || len(page.Records) != 0 || !page.HasMore {
		t.Errorf("negative limit = limit %d len %d has_more %v", page.Limit, len(page.Records), page.HasMore)
	}

	page, _ = s.List(100, math.MaxInt, "")
	if len(page.Records) != 0 || page.HasMore || page.TotalRecords != 1500 {
		t.Errorf("offset past int range = len %d has_more %v total %d", len(page.Records), page.HasMore, page.TotalRecords)
	}
}

// go test -v --run TestListSymbolFilter
func TestListSymbolFilter(t *testing.T) {
	s := newTestService(records(9, "BTCUSDT", "ETHUSDT", "SOLUSDT"))

	page, _ := s.List(100, 0, "ethusdt")
	if page.TotalRecords != 3 {
		t.Fatalf("matched %d, want 3", page.TotalRecords)
	}
	for _, r := range page.Records {
		if r.Symbol != "ETHUSDT" {
			t.Errorf("unexpected symbol %s", r.Symbol)
		}
	}
}

// go test -v --run TestLatest
func TestLatest(t *testing.T) {
	s := newTestService(records(20, "BTCUSDT"))

	got, _ := s.Latest(3)
	if len(got) != 3 || tradeID(got[0]) != `"17"` || tradeID(got[2]) != `"19"` {
		t.Errorf("latest 3 = %v", got)
	}

	got, _ = s.Latest(50)
	if len(got) != 20 {
		t.Errorf("latest 50 of 20 = %d", len(got))
	}

	s = newTestService(records(800, "BTCUSDT"))
	if got, _ = s.Latest(10000); len(got) != 500 {
		t.Errorf("latest is capped at 500, got %d", len(got))
	}
}

// go test -v --run TestBySymbol
func TestBySymbol(t *testing.T) {
	s := newTestService(records(30, "BTCUSDT", "ETHUSDT"))

	got, _ := s.BySymbol("btcusdt", 5)
	if len(got) != 5 {
		t.Fatalf("got %d records, want 5", len(got))
	}
	for _, r := range got {
		if r.Symbol != "BTCUSDT" {
			t.Errorf("unexpected symbol %s", r.Symbol)
		}
	}
	// BTCUSDT holds the even IDs; the 5 most recent are 20..28.
	if tradeID(got[0]) != `"20"` || tradeID(got[4]) != `"28"` {
		t.Errorf("window = %s..%s", tradeID(got[0]), tradeID(got[4]))
	}

	if got, _ = s.BySymbol("DOGEUSDT", 5); len(got) != 0 {
		t.Errorf("unknown symbol returned %d records", len(got))
	}

	// A non-positive limit returns every match.
	if got, _ = s.BySymbol("BTCUSDT", 0); len(got) != 15 {
		t.Errorf("limit 0 returned %d records, want 15", len(got))
	}
	if got, _ = s.BySymbol("BTCUSDT", -1); len(got) != 15 {
		t.Errorf("limit -1 returned %d records, want 15", len(got))
	}
}

// go test -v --run TestStatsCacheAge
func TestStatsCacheAge(t *testing.T) {
	s := newTestService(records(4, "BTCUSDT"))

	res, err := s.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if res.Stats.TotalTrades != 4 || res.CacheAge != 15*time.Second {
		t.Errorf("stats = %d trades, age %v", res.Stats.TotalTrades, res.CacheAge)
	}
}

// go test -v --run TestHealthFreshness
func TestHealthFreshness(t *testing.T) {
	at := func(d time.Duration) []memorystore.TradeRecord {
		return []memorystore.TradeRecord{{RecordedAt: memorystore.FormatRecordedAt(testNow.Add(-d)), Symbol: "BTCUSDT"}}
	}

	cases := []struct {
		name      string
		records   []memorystore.TradeRecord
		freshness string
		status    string
	}{
		{"30 minutes", at(30 * time.Minute), FreshnessFresh, StatusHealthy},
		{"90 minutes", at(90 * time.Minute), FreshnessStale, StatusHealthy},
		{"3 hours", at(3 * time.Hour), FreshnessVeryStale, StatusWarning},
		{"empty", nil, FreshnessUnknown, StatusWarning},
		{"unparseable timestamp", []memorystore.TradeRecord{{RecordedAt: "not-a-time", Symbol: "X"}}, FreshnessUnknown, StatusWarning},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h, err := newTestService(tc.records).Health()
			if err != nil {
				t.Fatal(err)
			}
			if h.Freshness != tc.freshness || h.Status != tc.status {
				t.Errorf("got %s/%s, want %s/%s", h.Freshness, h.Status, tc.freshness, tc.status)
			}
		})
	}

	h, _ := newTestService(at(time.Minute)).Health()
	if h.FileSizeMB != 3 || !h.FileExists || h.LastRefresh == nil {
		t.Errorf("disk/cache status = %+v", h)
	}
}

// go test -v --run TestServicePropagatesErrors
func TestServicePropagatesErrors(t *testing.T) {
	s := NewService(&fakeReader{err: cache.ErrNoSnapshot}, Limits{MaxRecordsPerRequest: 10, LatestMaxLimit: 10})

	if _, err := s.List(1, 0, ""); !errors.Is(err, cache.ErrNoSnapshot) {
		t.Errorf("List err = %v", err)
	}
	if _, err := s.Health(); !errors.Is(err, cache.ErrNoSnapshot) {
		t.Errorf("Health err = %v", err)
	}
}
