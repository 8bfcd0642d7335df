// Package equipment implements persistence for the equipment list.
//
// The FileRepository stores and loads the full list (bindings and thresholds
// included) as a single version-tagged JSON blob and exposes a Repository
// interface that the monitor service depends on.
package equipment
