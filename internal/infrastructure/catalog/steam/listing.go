package steam

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/kirillkom/steam-game-recommender/internal/core/domain"
)

var (
	pricePattern    = regexp.MustCompile(`[¥￥]\s*([\d,]+(?:\.\d+)?)`)
	discountPattern = regexp.MustCompile(`(\d+)\s*%`)
)

// parseListing reads search result rows from a store listing page. limit caps the rows
// visited, so rows without an app id still count toward it; unparsable prices and
// discounts default to zero.
func parseListing(r io.Reader, limit int) ([]domain.CatalogItem, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse listing html: %w", err)
	}

	items := make([]domain.CatalogItem, 0)
	visited := 0
	var walk func(n *html.Node) bool
	walk = func(n *html.Node) bool {
		if limit > 0 && visited >= limit {
			return false
		}
		if n.Type == html.ElementNode && n.Data == "a" && hasClass(n, "search_result_row") {
			visited++
			if item, ok := parseRow(n); ok {
				items = append(items, item)
			}
			return true
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			if !walk(child) {
				return false
			}
		}
		return true
	}
	walk(doc)
	return items, nil
}

func parseRow(row *html.Node) (domain.CatalogItem, bool) {
	id := firstAppID(attr(row, "data-ds-appid"))
	if id == "" {
		return domain.CatalogItem{}, false
	}

	item := domain.CatalogItem{
		ID:   id,
		URL:  attr(row, "href"),
		Tags: []string{},
	}
	if title := findFirst(row, "span", "title"); title != nil {
		item.Name = textContent(title)
	}

	priceNode := findFirst(row, "div", "discount_final_price")
	if priceNode == nil {
		priceNode = findFirst(row, "div", "search_price")
	}
	if priceNode != nil {
		item.Price = parsePrice(textContent(priceNode))
	}

	if discountNode := findFirst(row, "div", "discount_pct"); discountNode != nil {
		item.DiscountPercent = parseDiscount(textContent(discountNode))
	}
	if released := findFirst(row, "div", "search_released"); released != nil {
		item.ReleaseDate = textContent(released)
	}
	return item, true
}

// firstAppID handles bundle rows whose data-ds-appid is a comma separated list.
func firstAppID(raw string) string {
	raw = strings.TrimSpace(raw)
	if idx := strings.Index(raw, ","); idx >= 0 {
		raw = raw[:idx]
	}
	return strings.TrimSpace(raw)
}

// parsePrice takes the last currency amount in text, which is the final price when a
// struck-through original price precedes it.
func parsePrice(text string) float64 {
	lowered := strings.ToLower(text)
	if strings.Contains(text, "免费") || strings.Contains(lowered, "free") {
		return 0
	}
	matches := pricePattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return 0
	}
	raw := strings.ReplaceAll(matches[len(matches)-1][1], ",", "")
	price, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return price
}

func parseDiscount(text string) int {
	match := discountPattern.FindStringSubmatch(text)
	if len(match) != 2 {
		return 0
	}
	n, err := strconv.Atoi(match[1])
	if err != nil {
		return 0
	}
	return n
}

func hasClass(n *html.Node, class string) bool {
	for _, field := range strings.Fields(attr(n, "class")) {
		if field == class {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func findFirst(n *html.Node, tag, class string) *html.Node {
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == html.ElementNode && child.Data == tag && hasClass(child, class) {
			return child
		}
		if found := findFirst(child, tag, class); found != nil {
			return found
		}
	}
	return nil
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var collect func(*html.Node)
	collect = func(node *html.Node) {
		if node.Type == html.TextNode {
			b.WriteString(node.Data)
			b.WriteByte(' ')
		}
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			collect(child)
		}
	}
	collect(n)
	return strings.Join(strings.Fields(b.String()), " ")
}
