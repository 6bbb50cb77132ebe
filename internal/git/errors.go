package git

import (
	"strings"

	sberrors "git.home.luguber.info/inful/specbuilder/internal/errors"
)

// ClassifyGitError translates go-git errors into SpecBuilderErrors.
// Transient network failures are marked retryable.
func ClassifyGitError(err error, op string, url string) error {
	if err == nil {
		return nil
	}

	// Already classified
	if _, ok := sberrors.As(err); ok {
		return err
	}

	l := strings.ToLower(err.Error())
	switch {
	case strings.Contains(l, "remote hung up") || strings.Contains(l, "connection reset") ||
		strings.Contains(l, "timeout") || strings.Contains(l, "no route to host") ||
		strings.Contains(l, "connection refused"):
		return sberrors.NetworkTimeout(url, err).WithContext("op", op)
	case strings.Contains(l, "authentication required") || strings.Contains(l, "authorization failed") ||
		strings.Contains(l, "invalid credentials"):
		return sberrors.GitCloneError(url, err).WithContext("op", op).WithContext("reason", "auth")
	case strings.Contains(l, "repository not found") || strings.Contains(l, "not found"):
		return sberrors.GitCloneError(url, err).WithContext("op", op).WithContext("reason", "not_found")
	default:
		return sberrors.GitCloneError(url, err).WithContext("op", op)
	}
}
