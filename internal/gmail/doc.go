// Package gmail creates drafts through the Gmail REST API.
//
// A Composer obtains a valid access token from the token store (refreshing
// it when needed), builds a minimal RFC 2822 message from a subject and body,
// and posts it to users.drafts.create.
//
// Example usage:
//
//	composer := gmail.NewComposer(store)
//	draft, err := composer.CreateDraft(ctx, "Invoice #1", "Hello")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(draft.ID)
package gmail
