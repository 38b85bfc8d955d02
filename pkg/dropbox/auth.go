package dropbox

import (
	"encoding/json"
	"fmt"
	"net/http"
)

const (
	headerAuthorization = "Authorization"
	headerSelectUser    = "Dropbox-API-Select-User"
	headerSelectAdmin   = "Dropbox-API-Select-Admin"
	headerPathRoot      = "Dropbox-API-Path-Root"
)

// TeamSelectKind tells whether a team token acts as a member or an admin.
type TeamSelectKind int

const (
	TeamSelectUser TeamSelectKind = iota
	TeamSelectAdmin
)

// TeamSelect lets a team-level credential act on behalf of one member.
type TeamSelect struct {
	Kind TeamSelectKind
	ID   string
}

// SelectUser acts as the team member with the given id.
func SelectUser(id string) *TeamSelect {
	return &TeamSelect{Kind: TeamSelectUser, ID: id}
}

// SelectAdmin acts as the team admin with the given id.
func SelectAdmin(id string) *TeamSelect {
	return &TeamSelect{Kind: TeamSelectAdmin, ID: id}
}

func (t *TeamSelect) header() (string, string) {
	switch t.Kind {
	case TeamSelectAdmin:
		return headerSelectAdmin, t.ID
	default:
		return headerSelectUser, t.ID
	}
}

// Auth is the authorization context attached to one request. A zero Auth
// sends no credentials. Team and NamespaceID belong to different client
// variants and are never both set by this package.
type Auth struct {
	Token       string
	Team        *TeamSelect
	NamespaceID string
}

func (a Auth) apply(h http.Header) {
	if a.Token != "" {
		h.Set(headerAuthorization, "Bearer "+a.Token)
	}
	if a.Team != nil {
		name, value := a.Team.header()
		h.Set(name, value)
	}
	if a.NamespaceID != "" {
		h.Set(headerPathRoot, pathRootValue(a.NamespaceID))
	}
}

func pathRootValue(namespaceID string) string {
	quoted, err := json.Marshal(namespaceID)
	if err != nil {
		quoted = []byte(`""`)
	}
	return fmt.Sprintf(`{".tag": "namespace_id", "namespace_id": %s}`, quoted)
}
