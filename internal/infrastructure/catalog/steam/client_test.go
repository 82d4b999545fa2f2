package steam

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/kirillkom/steam-game-recommender/internal/core/domain"
)

const listingFixture = `<html><body><div id="search_resultsRows">
<a href="https://store.steampowered.com/app/1091500/" data-ds-appid="1091500" class="search_result_row ds_collapse_flag">
  <div class="responsive_search_name_combined">
    <div class="search_name"><span class="title">赛博朋克 2077</span></div>
    <div class="search_released">2020年12月9日</div>
    <div class="search_price_discount_combined">
      <div class="discount_block search_discount_block">
        <div class="discount_pct">-60%</div>
        <div class="discount_prices">
          <div class="discount_original_price">¥ 298.00</div>
          <div class="discount_final_price">¥ 119.20</div>
        </div>
      </div>
    </div>
  </div>
</a>
<a href="https://store.steampowered.com/app/570/" data-ds-appid="570" class="search_result_row">
  <span class="title">Dota 2</span>
  <div class="search_released">2013年7月9日</div>
  <div class="search_price">免费开玩</div>
</a>
<a href="https://store.steampowered.com/sub/1/" class="search_result_row">
  <span class="title">No id bundle</span>
</a>
<a href="https://store.steampowered.com/app/292030/" data-ds-appid="292030,378648" class="search_result_row">
  <span class="title">巫师 3：狂猎</span>
  <div class="search_price"><strike>¥ 1,127.00</strike><br>¥ 45.60</div>
</a>
<a href="https://store.steampowered.com/app/9/" data-ds-appid="9" class="search_result_row">
  <span class="title">Broken price</span>
  <div class="search_price">TBA</div>
  <div class="discount_pct">soon</div>
</a>
</div></body></html>`

func TestParseListingRows(t *testing.T) {
	items, err := parseListing(strings.NewReader(listingFixture), 0)
	if err != nil {
		t.Fatalf("parseListing() error = %v", err)
	}
	if len(items) != 4 {
		t.Fatalf("expected 4 rows with ids, got %d: %+v", len(items), items)
	}

	cyberpunk := items[0]
	if cyberpunk.ID != "1091500" || cyberpunk.Name != "赛博朋克 2077" {
		t.Fatalf("unexpected first row: %+v", cyberpunk)
	}
	if cyberpunk.Price != 119.2 || cyberpunk.DiscountPercent != 60 {
		t.Fatalf("unexpected price/discount: %v/%d", cyberpunk.Price, cyberpunk.DiscountPercent)
	}
	if cyberpunk.ReleaseDate != "2020年12月9日" || cyberpunk.URL != "https://store.steampowered.com/app/1091500/" {
		t.Fatalf("unexpected release/url: %+v", cyberpunk)
	}

	if items[1].Price != 0 {
		t.Fatalf("expected free item price 0, got %v", items[1].Price)
	}
	if items[2].ID != "292030" || items[2].Price != 45.6 {
		t.Fatalf("expected bundle id and final price, got %+v", items[2])
	}
	if items[3].Price != 0 || items[3].DiscountPercent != 0 {
		t.Fatalf("expected malformed values to default to zero, got %+v", items[3])
	}
}

func TestParseListingHonoursLimit(t *testing.T) {
	items, err := parseListing(strings.NewReader(listingFixture), 2)
	if err != nil {
		t.Fatalf("parseListing() error = %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(items))
	}
}

func TestParseListingLimitCountsRowsWithoutID(t *testing.T) {
	items, err := parseListing(strings.NewReader(listingFixture), 3)
	if err != nil {
		t.Fatalf("parseListing() error = %v", err)
	}
	if len(items) != 2 || items[1].ID != "570" {
		t.Fatalf("expected the first three rows to yield 2 items, got %+v", items)
	}
}

func TestListingBuildsStoreQuery(t *testing.T) {
	var captured url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search/" {
			http.NotFound(w, r)
			return
		}
		captured = r.URL.Query()
		_, _ = w.Write([]byte(listingFixture))
	}))
	defer server.Close()

	client := New(Options{BaseURL: server.URL})
	budget := 100.0
	items, err := client.Listing(context.Background(), domain.ListingQuery{
		Surface:  domain.SurfaceSearch,
		Term:     "open world",
		MaxPrice: &budget,
		Limit:    10,
	})
	if err != nil {
		t.Fatalf("Listing() error = %v", err)
	}
	if len(items) != 4 {
		t.Fatalf("expected 4 items, got %d", len(items))
	}
	want := map[string]string{"term": "open world", "l": "schinese", "cc": "CN", "ndl": "1", "maxprice": "100"}
	for key, value := range want {
		if captured.Get(key) != value {
			t.Fatalf("expected %s=%s, got %q", key, value, captured.Get(key))
		}
	}

	if _, err := client.Listing(context.Background(), domain.ListingQuery{Surface: domain.SurfaceTop, Ranking: domain.RankingTrendingNew}); err != nil {
		t.Fatalf("Listing(top) error = %v", err)
	}
	if captured.Get("filter") != "popularnew" {
		t.Fatalf("expected popularnew filter, got %q", captured.Get("filter"))
	}

	if _, err := client.Listing(context.Background(), domain.ListingQuery{Surface: domain.SurfaceFree, MaxPrice: &budget}); err != nil {
		t.Fatalf("Listing(free) error = %v", err)
	}
	if captured.Get("maxprice") != "free" {
		t.Fatalf("expected maxprice=free, got %q", captured.Get("maxprice"))
	}
}

const detailsFixture = `{"1091500":{"success":true,"data":{
  "type":"game","name":"赛博朋克 2077","short_description":"开放世界动作冒险 RPG。",
  "is_free":false,"developers":["CD PROJEKT RED"],"publishers":["CD PROJEKT RED"],
  "header_image":"https://cdn/header.jpg","website":null,
  "genres":[{"id":"1","description":"动作"},{"id":"3","description":"角色扮演"}],
  "categories":[{"id":2,"description":"单人"},{"id":22,"description":"Steam 成就"},{"id":28,"description":"完全支持控制器"},{"id":23,"description":"Steam 云"}],
  "release_date":{"coming_soon":false,"date":"2020 年 12 月 10 日"},
  "price_overview":{"currency":"CNY","initial":29800,"final":11920,"discount_percent":60},
  "platforms":{"windows":true,"mac":false,"linux":false},
  "screenshots":[{"path_thumbnail":"a"},{"path_thumbnail":"b"},{"path_thumbnail":"c"},{"path_thumbnail":"d"},{"path_thumbnail":"e"},{"path_thumbnail":"f"}],
  "metacritic":{"score":86},"recommendations":{"total":700000},"dlc":[2138330]
}}}`

func TestDetailsParsesOptionalFields(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/appdetails" || r.URL.Query().Get("appids") == "" {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("appids") != "1091500" {
			_, _ = w.Write([]byte(`{"` + r.URL.Query().Get("appids") + `":{"success":false}}`))
			return
		}
		_, _ = w.Write([]byte(detailsFixture))
	}))
	defer server.Close()

	client := New(Options{BaseURL: server.URL})
	details, err := client.Details(context.Background(), "1091500")
	if err != nil {
		t.Fatalf("Details() error = %v", err)
	}
	if details.Price == nil || details.Price.Final != 119.2 || details.Price.Initial != 298 {
		t.Fatalf("unexpected price overview: %+v", details.Price)
	}
	if details.MetacriticScore == nil || *details.MetacriticScore != 86 {
		t.Fatalf("unexpected metacritic: %v", details.MetacriticScore)
	}
	if details.AchievementsTotal != nil {
		t.Fatalf("expected absent achievements, got %v", *details.AchievementsTotal)
	}
	if details.Website != "" || details.DLCCount != 1 || len(details.Screenshots) != 5 {
		t.Fatalf("unexpected details: %+v", details)
	}
	tags := details.DetailTags()
	if len(tags) != 5 || tags[0] != "动作" || tags[4] != "完全支持控制器" {
		t.Fatalf("unexpected detail tags: %v", tags)
	}

	_, err = client.Details(context.Background(), "404")
	if !domain.IsKind(err, domain.ErrItemNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestDetailsServerErrorIsTemporary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := New(Options{BaseURL: server.URL}).Details(context.Background(), "1")
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
}

func TestStoreURL(t *testing.T) {
	if got := New(Options{}).StoreURL("570"); got != "https://store.steampowered.com/app/570/" {
		t.Fatalf("unexpected store url %q", got)
	}
}
