package cuttingstock

import (
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type Product struct {
	Name   string  `yaml:"name"`
	Length float64 `yaml:"length"`
	Demand int     `yaml:"demand"`
}

// Instance asks to cut every product demand out of bars of length Stock.
type Instance struct {
	Name     string    `yaml:"name"`
	Stock    float64   `yaml:"stock"`
	Products []Product `yaml:"products"`
}

func LoadInstance(path string) (*Instance, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	inst := new(Instance)
	if err := yaml.Unmarshal(data, inst); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", path)
	}
	if inst.Name == "" {
		inst.Name = path
	}
	return inst, inst.Validate()
}

func (inst *Instance) Save(path string) error {
	data, err := yaml.Marshal(inst)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0666)
}

func (inst *Instance) Validate() error {
	if inst.Stock <= 0 {
		return errors.Errorf("stock length must be positive, got %g", inst.Stock)
	}
	if len(inst.Products) == 0 {
		return errors.New("no product")
	}
	for i, p := range inst.Products {
		if p.Length <= 0 || p.Length > inst.Stock {
			return errors.Errorf("product %d: length %g does not fit in stock %g", i, p.Length, inst.Stock)
		}
		if p.Demand < 0 {
			return errors.Errorf("product %d: negative demand %d", i, p.Demand)
		}
	}
	return nil
}

func (inst *Instance) lengths() []float64 {
	ret := make([]float64, len(inst.Products))
	for i, p := range inst.Products {
		ret[i] = p.Length
	}
	return ret
}

func (inst *Instance) productName(i int) string {
	if name := inst.Products[i].Name; name != "" {
		return name
	}
	return fmt.Sprintf("product_%d", i)
}

func (inst *Instance) String() string {
	s := new(strings.Builder)
	fmt.Fprintf(s, "Instance %s: stock %g, %d products\n", inst.Name, inst.Stock, len(inst.Products))
	for i, p := range inst.Products {
		fmt.Fprintf(s, "%s\tlength %g\tdemand %d\n", inst.productName(i), p.Length, p.Demand)
	}
	return s.String()
}
