// Package scoring holds the trainable parts of the recommender: a standard
// scaler and a random-forest regressor built from CART regression trees.
//
// Both types keep only exported, plain data so they can be persisted with
// encoding/gob or JSON and restored bit-for-bit.
package scoring
