package catalog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/modaio/stylist/core"
)

// csv column aliases, matched case-insensitively against the header row.
var columnAliases = map[string][]string{
	"id":       {"id", "product_id"},
	"title":    {"title", "productdisplayname", "product_name", "name"},
	"brand":    {"brand", "brandname"},
	"price":    {"price", "discountedprice"},
	"color":    {"color", "colour", "basecolour", "base_color"},
	"category": {"category", "articletype", "article_type"},
	"gender":   {"gender"},
	"image":    {"image", "image_url", "image_ref", "link", "filename"},
}

// LoadCSV reads the product catalog. Embeddings are not in the file; the
// ingestor fills them in. Rows missing an id or title are skipped.
func LoadCSV(path string) ([]core.Product, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return parseCSV(f)
}

func parseCSV(r io.Reader) ([]core.Product, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read catalog header: %w", err)
	}
	cols := resolveColumns(header)
	if _, ok := cols["id"]; !ok {
		return nil, fmt.Errorf("%w: catalog has no id column", core.ErrValidation)
	}

	var products []core.Product
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read catalog row: %w", err)
		}

		get := func(name string) string {
			i, ok := cols[name]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}

		id := get("id")
		title := get("title")
		if id == "" || title == "" {
			continue
		}

		price, _ := strconv.ParseFloat(get("price"), 64)
		products = append(products, core.Product{
			ID: id,
			Metadata: core.ProductMetadata{
				Title:    title,
				Brand:    get("brand"),
				Price:    price,
				Color:    strings.ToLower(get("color")),
				Category: strings.ToLower(get("category")),
				Gender:   normalizeGender(get("gender")),
				ImageRef: get("image"),
			},
		})
	}
	return products, nil
}

func resolveColumns(header []string) map[string]int {
	cols := make(map[string]int)
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(h))
		for name, aliases := range columnAliases {
			if _, seen := cols[name]; seen {
				continue
			}
			for _, a := range aliases {
				if h == a {
					cols[name] = i
					break
				}
			}
		}
	}
	return cols
}

func normalizeGender(raw string) core.Gender {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "men", "man", "male", "boys":
		return core.GenderMale
	case "women", "woman", "female", "girls":
		return core.GenderFemale
	default:
		return core.GenderBoth
	}
}
