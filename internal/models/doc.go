// Package models defines the vault's data model and the names of the keys it
// persists under.
package models
