package fixtures

import (
	"fmt"
	"math"
	"math/rand"
	"time"
)

var (
	regions  = []string{"north", "south", "east", "west"}
	products = []string{"monitor", "keyboard", "mouse", "laptop", "headset", "dock"}
)

// Generator produces deterministic rows for a given seed.
type Generator struct {
	rnd         *rand.Rand
	customers   int
	periodStart time.Time
	periodDays  int
}

func NewGenerator(seed int64, customers int) *Generator {
	if customers <= 0 {
		customers = 1
	}
	return &Generator{
		rnd:         rand.New(rand.NewSource(seed)),
		customers:   customers,
		periodStart: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		periodDays:  365,
	}
}

func (g *Generator) Set(salesRows, orderRows int) Set {
	set := Set{
		Sales:  make([]Sale, 0, salesRows),
		Orders: make([]Order, 0, orderRows),
	}
	for i := 0; i < salesRows; i++ {
		set.Sales = append(set.Sales, g.nextSale())
	}
	for i := 0; i < orderRows; i++ {
		set.Orders = append(set.Orders, g.nextOrder())
	}
	return set
}

func (g *Generator) nextSale() Sale {
	return Sale{
		CustomerName: g.pickCustomer(),
		Revenue:      round2(50 + g.rnd.Float64()*2450),
		Region:       pickOne(g.rnd, regions),
		SaleDate:     g.pickDate(),
	}
}

func (g *Generator) nextOrder() Order {
	product := pickOne(g.rnd, products)
	return Order{
		CustomerName: g.pickCustomer(),
		OrderAmount:  g.pickAmount(product),
		Product:      product,
		OrderDate:    g.pickDate(),
	}
}

func (g *Generator) pickCustomer() string {
	return fmt.Sprintf("customer-%03d", g.rnd.Intn(g.customers)+1)
}

func (g *Generator) pickDate() string {
	return g.periodStart.AddDate(0, 0, g.rnd.Intn(g.periodDays)).Format(time.DateOnly)
}

func (g *Generator) pickAmount(product string) float64 {
	switch product {
	case "laptop":
		return round2(700 + g.rnd.Float64()*1300)
	case "monitor", "dock":
		return round2(120 + g.rnd.Float64()*380)
	default:
		return round2(10 + g.rnd.Float64()*140)
	}
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}

func pickOne(r *rand.Rand, values []string) string {
	return values[r.Intn(len(values))]
}
