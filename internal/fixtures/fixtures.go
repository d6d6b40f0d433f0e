// Package fixtures loads sample sales and orders rows: from YAML, from a seeded
// generator, into a database, and out again as parquet snapshots.
package fixtures

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

type Sale struct {
	CustomerName string  `yaml:"customer_name"`
	Revenue      float64 `yaml:"revenue"`
	Region       string  `yaml:"region"`
	SaleDate     string  `yaml:"sale_date"`
}

type Order struct {
	CustomerName string  `yaml:"customer_name"`
	OrderAmount  float64 `yaml:"order_amount"`
	Product      string  `yaml:"product"`
	OrderDate    string  `yaml:"order_date"`
}

type Set struct {
	Sales  []Sale  `yaml:"sales"`
	Orders []Order `yaml:"orders"`
}

type Counts struct {
	Sales  int
	Orders int
}

func (s Set) Counts() Counts {
	return Counts{Sales: len(s.Sales), Orders: len(s.Orders)}
}

// Default returns the fixture set compiled into the binary.
func Default() (Set, error) {
	return Parse(defaultYAML)
}

func LoadFile(path string) (Set, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return Set{}, fmt.Errorf("read fixture file: %w", err)
	}
	return Parse(body)
}

func Parse(body []byte) (Set, error) {
	var set Set
	if err := yaml.Unmarshal(body, &set); err != nil {
		return Set{}, fmt.Errorf("parse fixtures: %w", err)
	}
	if err := set.Validate(); err != nil {
		return Set{}, err
	}
	return set, nil
}

func (s Set) Validate() error {
	for i, sale := range s.Sales {
		if strings.TrimSpace(sale.CustomerName) == "" {
			return fmt.Errorf("sales[%d]: customer_name is required", i)
		}
		if _, err := parseDate(sale.SaleDate); err != nil {
			return fmt.Errorf("sales[%d]: %w", i, err)
		}
	}
	for i, order := range s.Orders {
		if strings.TrimSpace(order.CustomerName) == "" {
			return fmt.Errorf("orders[%d]: customer_name is required", i)
		}
		if strings.TrimSpace(order.Product) == "" {
			return fmt.Errorf("orders[%d]: product is required", i)
		}
		if _, err := parseDate(order.OrderDate); err != nil {
			return fmt.Errorf("orders[%d]: %w", i, err)
		}
	}
	return nil
}

func parseDate(value string) (time.Time, error) {
	parsed, err := time.Parse(time.DateOnly, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", value)
	}
	return parsed, nil
}
