// Package all wires the built-in storage backends into the storage factory.
//
// It exists purely for side effects: a blank import of this package runs the
// init functions of each concrete backend, which register their factories
// with the storage package. Importing it makes these kinds available:
//
//   - "sqlite"   (banketl/internal/storage/sqlite)
//   - "postgres" (banketl/internal/storage/postgres)
package all

import (
	_ "banketl/internal/storage/postgres"
	_ "banketl/internal/storage/sqlite"
)
