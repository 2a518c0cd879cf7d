package store

import (
	"os"
	"time"
)

// oauthStateTTL bounds how long a pending OAuth redirect stays valid.
const oauthStateTTL = 10 * time.Minute

// SetOAuthState records a pending OAuth anti-forgery token for the workspace,
// replacing any previous one.
func (s *Store) SetOAuthState(workspaceID, value, redirectTo string) error {
	return s.update(workspaceID, func(_ *document, rec *Record) error {
		rec.OAuthState = &OAuthState{
			Value:      value,
			RedirectTo: redirectTo,
			ExpiresAt:  time.Now().Add(oauthStateTTL),
		}
		return nil
	})
}

// ConsumeOAuthState validates and clears the pending state in one step. It
// returns the state only when the value matches and it has not expired; in
// every case the stored state is cleared so a token is single-use.
func (s *Store) ConsumeOAuthState(workspaceID, value string) (*OAuthState, error) {
	var out *OAuthState
	err := s.update(workspaceID, func(_ *document, rec *Record) error {
		state := rec.OAuthState
		rec.OAuthState = nil
		if state == nil || state.Value != value || time.Now().After(state.ExpiresAt) {
			return nil
		}
		out = deepCopy(state)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SaveGitHubAuth persists the workspace's GitHub connection.
func (s *Store) SaveGitHubAuth(workspaceID string, auth GitHubAuth) error {
	return s.update(workspaceID, func(_ *document, rec *Record) error {
		if auth.ConnectedAt.IsZero() {
			auth.ConnectedAt = time.Now()
		}
		rec.GitHubAuth = &auth
		return nil
	})
}

// ClearGitHubAuth disconnects the workspace from GitHub.
func (s *Store) ClearGitHubAuth(workspaceID string) error {
	return s.update(workspaceID, func(_ *document, rec *Record) error {
		rec.GitHubAuth = nil
		return nil
	})
}

// GitHubAuthInfo returns the stored connection, or nil when disconnected.
func (s *Store) GitHubAuthInfo(workspaceID string) (*GitHubAuth, error) {
	rec, err := s.Record(workspaceID)
	if err != nil {
		return nil, err
	}
	return rec.GitHubAuth, nil
}

// GitHubToken resolves the token for outbound GitHub calls: the workspace's
// stored connection first, then the GITHUB_TOKEN environment variable.
func (s *Store) GitHubToken(workspaceID string) (string, error) {
	auth, err := s.GitHubAuthInfo(workspaceID)
	if err != nil {
		return "", err
	}
	if auth != nil && auth.AccessToken != "" {
		return auth.AccessToken, nil
	}
	return os.Getenv("GITHUB_TOKEN"), nil
}
