package instrumentation

// Label values shared by the metrics recorder and its callers.
const (
	StatusSuccess = "success"
	StatusError   = "error"

	OAuthResultSuccess = "success"
	OAuthResultFailure = "failure"
	OAuthResultExpired = "expired"

	// Outcomes of a connection to the OAuth callback listener.
	CallbackOutcomeCompleted  = "completed"
	CallbackOutcomeFailed     = "failed"
	CallbackOutcomeIgnored    = "ignored"
	CallbackOutcomeUnreadable = "unreadable"

	ServiceGmail = "gmail"
	ServiceOAuth = "oauth"

	OperationCreateDraft = "drafts.create"
	OperationExchange    = "exchange"
	OperationRefresh     = "refresh"
)
