package indexer

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/dshills/productrank-mcp/pkg/types"
)

// ErrInvalidCatalog is returned for catalog files that cannot be decoded
var ErrInvalidCatalog = errors.New("invalid catalog")

// MaxDerivedIDRunes bounds ids built from product names
const MaxDerivedIDRunes = 60

var (
	productIDPattern = regexp.MustCompile(`\b([A-Z]{1,2}-\d{1,4})\b`)
	whitespace       = regexp.MustCompile(`\s+`)
)

// catalogEntry is one product as it appears in a catalog file. Both the
// short and the product_ prefixed field names are accepted.
type catalogEntry struct {
	ProductID   string          `json:"product_id"`
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	ProductName string          `json:"product_name"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Features    []string        `json:"features"`
	Price       json.RawMessage `json:"price"`
}

// LoadCatalogFile reads a JSON array of products from path
func LoadCatalogFile(path string) ([]*types.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	defer func() { _ = f.Close() }()
	return LoadCatalog(f)
}

// LoadCatalog decodes a JSON array of products. Entries without an id get
// one from DeriveID using their 1-based position.
func LoadCatalog(r io.Reader) ([]*types.Record, error) {
	var entries []catalogEntry
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}

	records := make([]*types.Record, 0, len(entries))
	for i, e := range entries {
		name := firstNonEmpty(e.Name, e.ProductName)
		id := firstNonEmpty(e.ProductID, e.ID)
		if id == "" {
			id = DeriveID(name, i+1)
		}
		price, err := priceText(e.Price)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrInvalidCatalog, i+1, err)
		}
		if name == "" {
			name = id
		}
		records = append(records, &types.Record{
			ID:          id,
			Name:        name,
			Description: e.Description,
			Category:    e.Category,
			Features:    e.Features,
			Price:       price,
		})
	}
	return records, nil
}

// DeriveID picks an id for a product that has none: a code such as
// "AB-123" found in the name, else the name with whitespace runs replaced
// by underscores and cut to MaxDerivedIDRunes, else UNK_<index>.
func DeriveID(name string, index int) string {
	if m := productIDPattern.FindStringSubmatch(name); m != nil {
		return m[1]
	}
	if strings.TrimSpace(name) != "" {
		id := []rune(whitespace.ReplaceAllString(name, "_"))
		if len(id) > MaxDerivedIDRunes {
			id = id[:MaxDerivedIDRunes]
		}
		return string(id)
	}
	return "UNK_" + strconv.Itoa(index)
}

// priceText accepts a JSON string or number; null and absent give ""
func priceText(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("price must be a string or number, got %s", raw)
	}
	return n.String(), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
