// Package main provides the entry point for the Glassview permissions service.
// It initializes and runs a web service using the Fiber framework that exposes
// the data-permissions engine: an admin API for granting and inspecting
// fine-grained data-access permissions per group, database, schema and table.
// The application uses gorm for data persistence.
package main
