package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/MrEthical07/goSession/session"
)

// sessionView is the printable form of a session. It never carries a token.
type sessionView struct {
	Mode            string           `json:"mode"`
	IsAuthenticated bool             `json:"isAuthenticated"`
	IsLoading       bool             `json:"isLoading"`
	User            *session.User    `json:"user"`
	Account         *session.Account `json:"account"`
}

func newSessionView(mode string, st session.State) sessionView {
	return sessionView{
		Mode:            mode,
		IsAuthenticated: st.IsAuthenticated,
		IsLoading:       st.IsLoading,
		User:            st.User,
		Account:         st.Account,
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printSession(w io.Writer, asJSON bool, view sessionView) error {
	if asJSON {
		return printJSON(w, view)
	}

	if !view.IsAuthenticated || view.User == nil {
		_, err := fmt.Fprintf(w, "Not signed in (%s mode)\n", view.Mode)
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Signed in (%s mode)\n", view.Mode)
	fmt.Fprintf(&b, "  ID:     %s\n", view.User.ID)
	fmt.Fprintf(&b, "  Name:   %s\n", view.User.Name)
	fmt.Fprintf(&b, "  Email:  %s\n", view.User.Email)
	if len(view.User.Roles) > 0 {
		fmt.Fprintf(&b, "  Roles:  %s\n", strings.Join(view.User.Roles, ", "))
	}
	if view.Account != nil {
		fmt.Fprintf(&b, "  Account: %s (%s)\n", view.Account.Username, view.Account.HomeAccountID)
	}
	_, err := io.WriteString(w, b.String())
	return err
}
