// Package version reports build information of the mediascribe binary.
package version
