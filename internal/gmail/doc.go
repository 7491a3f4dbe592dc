// Package gmail provides the Gmail API client used by the resender.
//
// The client covers the calls the resend pipeline needs:
//   - Searching the sent folder (paginated message ids)
//   - Fetching full messages and attachment content
//   - Sending raw messages, creating drafts and sending drafts
//   - Counting messages previously sent to a recipient
//
// Every call runs through a circuit breaker (github.com/sony/gobreaker).
// Server side failures (500, 502, 503, 429) count against the breaker;
// client errors (400, 401, 403, 404) are returned without tripping it.
// Calls are traced as google.gmail.<operation> spans and recorded in the
// google_api_operations_total metric when a Metrics recorder is supplied.
//
// Authentication is handled by the google package, which produces the
// authorized *http.Client passed to NewClient.
//
// Example usage:
//
//	httpClient, err := tokens.HTTPClient(ctx)
//	if err != nil {
//	    return err
//	}
//	client, err := gmail.NewClient(ctx, httpClient, gmail.WithMetrics(metrics))
//	if err != nil {
//	    return err
//	}
//	ids, err := client.Search(ctx, `in:sent ("application")`, 100)
package gmail
