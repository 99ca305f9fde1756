// Package recommend ranks charging stations for a user.
//
// The Engine owns an artifact Holder shared by the Trainer, which fits a
// new forest from historical bookings and swaps it in, and the
// Recommender, which scores active stations with the held artifact. When
// no artifact is available, or every station fails to score, ranking falls
// back to the deterministic RuleBased scorer.
//
// Public Engine methods never return errors or panic; Trainer.Run and
// Recommender.Rank expose the underlying causes.
package recommend
