//go:build integration

// Package testdb provides helpers for database integration tests.
//
// Tests run inside a transaction that is rolled back when the test ends, so
// they can share one migrated database and run in parallel:
//
//	func TestSomething(t *testing.T) {
//	    db := testdb.GetTestDBWithT(t)
//	    testdb.WithTx(t, db, func(t *testing.T, tx *sql.Tx) {
//	        users := postgres.NewPostgresUserStore(tx, 4, nil)
//	        ...
//	    })
//	}
//
// Set STORIES_TEST_DATABASE_URL and run with -tags=integration.
package testdb
