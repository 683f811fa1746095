// Package service contains the application use cases behind the HTTP API
// and the background job handlers: accounts, story submissions, AI reviews
// and notifications.
//
// Services receive their stores and collaborators through constructors,
// wrap multi-store writes in a store.Transactor, and return sentinel errors
// (ErrForbidden, store.ErrNotFound and friends) that the API layer maps to
// status codes. The batch drivers live in the sibling digest, retention and
// export packages.
package service
