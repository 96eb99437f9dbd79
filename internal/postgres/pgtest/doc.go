// Package pgtest runs repository tests against a real Postgres started in a
// container. Its helpers are only built with -tags integration and need a
// reachable Docker daemon.
package pgtest
