// Package gmail provides the mailbox side of the assistant: an unread
// search returning message metadata and a plain-text send.
//
// Authentication is supplied by the caller as an OAuth HTTP client, see
// the google package.
//
// Example usage:
//
//	httpClient, err := auth.HTTPClient(ctx)
//	if err != nil {
//	    return err
//	}
//	client, err := gmail.NewClientWithHTTP(ctx, httpClient, gmail.Options{Query: "is:unread"})
//	if err != nil {
//	    return err
//	}
//	msgs, err := client.SearchUnread(ctx)
package gmail
