// Package auth authenticates gateway requests against the remote
// security service.
//
// Gate inspects the Authorization header of requests whose route
// requires authentication and hands the bearer token to a TokenChecker.
// RemoteValidator is the production checker: one POST to the
// validation URL per request, bounded by a timeout and never retried.
// CachingValidator optionally remembers accepted tokens.
//
// Every path produces an Outcome; callers check Outcome.Authorized and
// return Outcome.Reason to the client otherwise.
//
// # Usage
//
//	validator := auth.NewRemoteValidator(cfg.Spec.Auth.ValidateURL,
//	    auth.WithTimeout(cfg.Spec.Auth.Timeout.Duration()),
//	    auth.WithHTTPClient(client),
//	)
//	gate := auth.NewGate(validator, logger)
//
//	if outcome := gate.Apply(r, route); !outcome.Authorized() {
//	    // 401 with outcome.Reason
//	}
package auth
