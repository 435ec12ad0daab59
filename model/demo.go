package model

import (
	"math/rand/v2"
	"strconv"

	"github.com/pthm/hxdash"
)

// Demo dataset: passengers described by sex, age, fare, class and deck.
var demoColumns = []hxdash.Column{
	{Name: "Sex", Categorical: true, Categories: []string{"female", "male"}, FillValue: "male"},
	{Name: "Age"},
	{Name: "Fare"},
	{Name: "PassengerClass"},
	{Name: "Deck", Categorical: true, Categories: []string{"A", "B", "C", "D", "E", "F", "Unknown"}, FillValue: "Unknown"},
}

const demoRows = 60

func demoData(seed uint64) ([]string, [][]float64) {
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	index := make([]string, demoRows)
	x := make([][]float64, demoRows)
	for i := range x {
		index[i] = strconv.Itoa(i)
		class := float64(1 + r.IntN(3))
		fare := 10 + 90/class + r.Float64()*30
		deck := float64(6)
		if class == 1 || r.IntN(4) == 0 {
			deck = float64(r.IntN(6))
		}
		x[i] = []float64{
			float64(r.IntN(2)),
			float64(2 + r.IntN(70)),
			float64(int(fare*100)) / 100,
			class,
			deck,
		}
	}
	return index, x
}

// DemoClassifier returns a survival classifier over the demo dataset. The
// same seed gives the same data; the instance ID is always fresh.
func DemoClassifier(seed uint64) *Explainer {
	index, x := demoData(seed)
	weights := []float64{-2.4, -0.03, 0.012, -0.8, -0.1}
	intercept := 3.2

	r := rand.New(rand.NewPCG(seed+1, seed))
	y := make([]float64, len(x))
	scorer := &Explainer{w: weights, b: intercept}
	for i, row := range x {
		if r.Float64() < sigmoid(scorer.raw(row)) {
			y[i] = 1
		}
	}
	e, err := New(Config{
		Name:      "Titanic survival",
		Columns:   demoColumns,
		Index:     index,
		X:         x,
		Y:         y,
		Weights:   weights,
		Intercept: intercept,
		Labels:    []string{"Not survived", "Survived"},
	})
	if err != nil {
		panic(err)
	}
	return e
}

// DemoRegressor returns a fare regressor over the demo dataset. The Fare
// column is the target, so its weight is zero.
func DemoRegressor(seed uint64) *Explainer {
	index, x := demoData(seed)
	y := make([]float64, len(x))
	for i, row := range x {
		y[i] = row[2]
	}
	e, err := New(Config{
		Name:      "Titanic fare",
		Columns:   demoColumns,
		Index:     index,
		X:         x,
		Y:         y,
		Weights:   []float64{-1.5, 0.05, 0, -28, -0.5},
		Intercept: 95,
	})
	if err != nil {
		panic(err)
	}
	return e
}
