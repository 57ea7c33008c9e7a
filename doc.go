// Package mvcore is a small data-access layer for MySQL: a fluent query
// builder that compiles to parameterized SQL, a per-table column type
// catalog and active-record entities (see package record).
//
// A Client ties a driver, the catalog and a logger together:
//
//	cfg, err := config.Load("mvcore.yaml")
//	if err != nil {
//		return err
//	}
//	client, err := mvcore.Open(cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	rows, err := client.Table("users").
//		Where("active", "=", true).
//		OrderByDesc("id").
//		Limit(10).
//		Get(ctx)
//
// Queries built by an entity type are bound to the catalog, so comparisons
// and assignments on bit(1) columns use the b? marker.
//
// While a transaction started with Begin is open, every builder created by
// the client runs on it.
package mvcore
