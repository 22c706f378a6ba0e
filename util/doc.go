// Package util holds small parsing helpers shared by the HTTP layer:
// human-readable byte sizes and job identifiers.
package util
