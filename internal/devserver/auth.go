package devserver

import (
	"errors"
	"net/http"
	"strings"
)

var errNoSession = errors.New("no valid session")

// accountFromRequest resolves the Authorization header to an account.
// The platform uses the djoser "JWT <token>" scheme rather than
// "Bearer".
func accountFromRequest(r *http.Request, tokens *TokenIssuer, store *Store) (Account, error) {
	auth := r.Header.Get("Authorization")
	raw, found := strings.CutPrefix(auth, "JWT ")
	if !found || raw == "" {
		return Account{}, errNoSession
	}
	accountID, err := tokens.Verify(raw, tokenTypeAccess)
	if err != nil {
		return Account{}, errNoSession
	}
	account, err := store.AccountByID(r.Context(), accountID)
	if err != nil {
		return Account{}, errNoSession
	}
	return account, nil
}
