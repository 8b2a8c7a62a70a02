package google

// GmailScopes are the OAuth scopes requested for draft creation.
//
// The set is fixed: compose covers draft creation, send and modify are
// requested so the user can send the draft from Gmail without re-consenting.
var GmailScopes = []string{
	"https://www.googleapis.com/auth/gmail.compose",
	"https://www.googleapis.com/auth/gmail.send",
	"https://www.googleapis.com/auth/gmail.modify",
}
