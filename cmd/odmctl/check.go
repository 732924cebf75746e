package main

import (
	"context"
	"fmt"
	"io"

	"github.com/rainycape/odm/odm"
	"github.com/rainycape/odm/odm/driver"
)

func capabilityNames(c driver.Capability) []string {
	var names []string
	if c.Has(driver.CAP_TRANSACTION) {
		names = append(names, "transaction")
	}
	if c.Has(driver.CAP_PERSISTENT) {
		names = append(names, "persistent")
	}
	if c.Has(driver.CAP_EVENTUAL) {
		names = append(names, "eventual")
	}
	return names
}

func checkCommand(ctx context.Context, db *odm.ODM, w io.Writer) error {
	drv := db.Driver()
	if err := drv.Check(ctx); err != nil {
		return fmt.Errorf("database check failed: %w", err)
	}
	fmt.Fprintf(w, "driver: %T\n", drv)
	fmt.Fprintf(w, "codec: %s\n", db.Codec().Name())
	fmt.Fprintf(w, "capabilities: %v\n", capabilityNames(drv.Capabilities()))
	return nil
}
