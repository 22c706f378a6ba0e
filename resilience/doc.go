// Package resilience provides the fault-tolerance primitives used around
// slow, fallible external calls.
//
//   - Retry / RetryFunc repeat one operation with exponential backoff.
//     Remote engine uploads and polls use them, and so does the job
//     history store connection.
//   - Ladder tries an ordered list of alternative operations and aggregates
//     every failure. The audio extraction fallback chain uses it.
//   - CircuitBreaker fails calls fast after consecutive upstream failures.
//     It wraps every remote engine request.
//   - RateLimiter is a token bucket that throttles remote engine requests.
//   - Bulkhead caps concurrent calls. It limits open event streams.
package resilience
