// Package recommend exposes the recommendation engine over HTTP.
//
//	POST /api/recommendations   rank stations for a user
//	POST /api/model/train       run a batch training pass
//	GET  /api/model/status      model and booking summary
//	GET  /api/decisions         query the decision log
//	GET  /healthz               liveness
package recommend
