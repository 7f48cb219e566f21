// Package integration provides integration tests for the billing sync API
// server. These tests validate the complete server lifecycle against a
// stubbed billing platform: sync triggering and progress reporting, metric
// snapshot recording, revenue signal detection, and API authentication.
package integration
