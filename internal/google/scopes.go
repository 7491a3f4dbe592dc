package google

import gmail "google.golang.org/api/gmail/v1"

// DefaultOAuthScopes are the Google OAuth scopes the resender requests.
//
// The scopes provide access to:
//   - Gmail: send messages
//   - Gmail: read the sent folder and attachments
//   - Gmail: create and send drafts
var DefaultOAuthScopes = []string{
	gmail.GmailSendScope,
	gmail.GmailReadonlyScope,
	gmail.GmailComposeScope,
}
