package main

import (
	"flag"
	"fmt"
	"math"
	"math/rand"
	"os"

	"lp_colgen/src/cuttingstock"
)

// GenerateInstance draws product lengths uniformly between minLength and
// maxLength times the stock length, and demands around meanDemand.
func GenerateInstance(name string, numProducts int, stock, minLength, maxLength float64, meanDemand int) *cuttingstock.Instance {
	inst := &cuttingstock.Instance{Name: name, Stock: stock}
	for i := 0; i < numProducts; i++ {
		length := math.Round(stock * (minLength + (maxLength-minLength)*rand.Float64()))
		length = math.Max(1, math.Min(stock, length))
		demand := int(math.Max(1, float64(meanDemand)*(0.5+rand.Float64())))
		inst.Products = append(inst.Products, cuttingstock.Product{
			Name:   fmt.Sprintf("p%d", i+1),
			Length: length,
			Demand: demand,
		})
	}
	return inst
}

func main() {
	var outPath, name string
	var numProducts, meanDemand int
	var stock, minLength, maxLength float64

	flag.StringVar(&outPath, "out", "out.yaml", "The output file")
	flag.StringVar(&name, "name", "", "The instance name, the output file by default")
	flag.IntVar(&numProducts, "products", 0, "The number of products")
	flag.Float64Var(&stock, "stock", 0, "The stock bar length")
	flag.Float64Var(&minLength, "minl", 0.1, "The smallest product length, as a fraction of the stock length")
	flag.Float64Var(&maxLength, "maxl", 0.5, "The largest product length, as a fraction of the stock length")
	flag.IntVar(&meanDemand, "demand", 0, "The mean product demand")

	flag.Parse()

	err := false
	if numProducts == 0 {
		fmt.Fprintln(os.Stderr, "Must specify the number of products")
		err = true
	}
	if stock <= 0 {
		fmt.Fprintln(os.Stderr, "Must specify a positive stock length")
		err = true
	}
	if meanDemand == 0 {
		fmt.Fprintln(os.Stderr, "Must specify the mean demand")
		err = true
	}
	if minLength <= 0 || maxLength > 1 || minLength > maxLength {
		fmt.Fprintln(os.Stderr, "Product lengths must satisfy 0 < minl <= maxl <= 1")
		err = true
	}

	if err {
		os.Exit(1)
	}

	if name == "" {
		name = outPath
	}
	inst := GenerateInstance(name, numProducts, stock, minLength, maxLength, meanDemand)
	if e := inst.Save(outPath); e != nil {
		fmt.Fprintln(os.Stderr, e)
		os.Exit(1)
	}
}
