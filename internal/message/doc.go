// Package message turns Gmail API messages into resend candidates.
//
// It holds the pure pieces of the pipeline: address cleaning and validation,
// plain-text body extraction from nested MIME trees, job-application
// classification, and the composer that builds the outgoing resend
// envelope with the original attachments carried over.
//
// Nothing in this package talks to the network directly. Attachment bytes
// are obtained through the AttachmentFetcher interface, which the Gmail
// client implements.
package message
