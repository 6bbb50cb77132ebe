// Package git fetches API descriptions that live in git repositories.
//
// A Client clones the configured repository at the requested branch or tag
// into its workspace and locates the description file inside the checkout.
// Token authentication uses HTTP basic auth.
package git
