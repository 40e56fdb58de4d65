package catalog

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dmitrymomot/billingcore/pkg/subscription"
)

// Config locates the plan file.
type Config struct {
	File string `env:"CATALOG_FILE" envDefault:"plans.yaml"`
}

type document struct {
	Plans []subscription.Plan `yaml:"plans"`
}

// Decode reads plans from a YAML document:
//
//	plans:
//	  - id: pro_monthly
//	    name: Pro
//	    price: {amount: 4900, currency: USD}
//	    interval: monthly
//	    active: true
//	    grace_period_days: 5
//	    limits:
//	      api_calls: {soft: 100000, hard: 120000}
//	    overage:
//	      api_calls: {included: 100000, unit_price: 1}
//
// Unknown fields are rejected.
func Decode(r io.Reader) ([]subscription.Plan, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc document
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Join(ErrInvalidCatalog, err)
	}
	return doc.Plans, nil
}

// Load reads and validates the plan file.
func Load(cfg Config) (*Catalog, error) {
	f, err := os.Open(cfg.File)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog file: %w", err)
	}
	defer func() { _ = f.Close() }()

	plans, err := Decode(f)
	if err != nil {
		return nil, err
	}
	return New(plans...)
}

// Encode writes plans as a YAML document accepted by Decode.
func Encode(w io.Writer, plans []subscription.Plan) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(document{Plans: plans}); err != nil {
		return err
	}
	return enc.Close()
}
