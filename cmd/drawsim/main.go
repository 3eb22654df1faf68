// drawsim runs the weighted winner selector over a synthetic pool and prints
// the observed win distribution against the expected one. Useful for sanity
// checking selection fairness before changing the selector.
package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/winwai/raffled/internal/selection"
)

func main() {
	iterations := flag.Int("iterations", 100_000, "number of draws to simulate")
	pool := flag.String("pool", "1,5,10,2", "comma-separated ticket counts")
	seed := flag.Int64("seed", 0, "rng seed (0 = time-based)")
	flag.Parse()

	weights, err := parsePool(*pool)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid pool: %v\n", err)
		os.Exit(1)
	}

	picker := selection.NewTimeSeededPicker()
	if *seed != 0 {
		picker = selection.NewPicker(*seed)
	}

	wins := make([]int, len(weights))
	for i := 0; i < *iterations; i++ {
		idx, err := picker.PickIndex(weights)
		if err != nil {
			fmt.Fprintf(os.Stderr, "draw failed: %v\n", err)
			os.Exit(1)
		}
		wins[idx]++
	}

	total := selection.Total(weights)
	fmt.Printf("draws: %d, pool: %v, total tickets: %d\n\n", *iterations, weights, total)
	fmt.Printf("%-8s %-10s %-12s %-12s %s\n", "entry", "tickets", "expected %", "actual %", "diff")
	for i, w := range weights {
		expected := float64(w) / float64(total) * 100
		actual := float64(wins[i]) / float64(*iterations) * 100
		fmt.Printf("%-8d %-10d %-12.2f %-12.2f %.2f\n",
			i, w, expected, actual, math.Abs(expected-actual))
	}
}

func parsePool(raw string) ([]int64, error) {
	parts := strings.Split(raw, ",")
	weights := make([]int64, 0, len(parts))
	for _, part := range parts {
		value, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return nil, err
		}
		weights = append(weights, value)
	}
	if len(weights) == 0 {
		return nil, fmt.Errorf("empty pool")
	}
	return weights, nil
}
