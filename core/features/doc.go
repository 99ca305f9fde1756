// Package features turns a station, a user position, a timestamp and optional
// preferences into the fixed 14-element vector consumed by the scoring model.
//
// The element order is part of the persisted model contract: the scaler and
// the forest are fitted positionally, so reordering or inserting elements
// invalidates every stored artifact. Bump LayoutVersion when the layout changes.
package features
