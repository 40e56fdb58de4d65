// Package catalog provides plan catalogs for the subscription service: an
// in-memory Catalog, loadable from a YAML file (gopkg.in/yaml.v3).
//
//	plans, err := catalog.Load(catalog.Config{File: "plans.yaml"})
//	svc := subscription.NewService(store, plans, gateway, breakers)
//
// Discontinuing a plan is a Put with Discontinued set; existing subscribers
// keep renewing on it while new subscriptions and plan changes are refused.
package catalog
