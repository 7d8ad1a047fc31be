package doctype

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Doctype names known to this app.
const (
	// IWONumber is the custom record type declared by the app.
	IWONumber = "IWO Number"

	// DocShare is the host framework's share-grant store.
	DocShare = "DocShare"

	// NotificationLog receives one row per grant created with notify set.
	NotificationLog = "Notification Log"
)

// Record is a persisted IWO Number (or any doctype with a team table).
type Record struct {
	Doctype     string       `json:"doctype" yaml:"doctype"`
	Name        string       `json:"name" yaml:"name"`
	TeamMembers []TeamMember `json:"team_members" yaml:"team_members"`
}

// TeamMember is one row of the team_members child table.
// User is optional; an empty user is skipped by reconciliation.
type TeamMember struct {
	Idx  int    `json:"idx,omitempty" yaml:"idx,omitempty"`
	User string `json:"user,omitempty" yaml:"user,omitempty"`
}

// New returns an IWO Number record with the given team.
func New(name string, users ...string) Record {
	rec := Record{Doctype: IWONumber, Name: name}
	for i, u := range users {
		rec.TeamMembers = append(rec.TeamMembers, TeamMember{Idx: i + 1, User: u})
	}
	return rec
}

// Users returns the distinct non-empty users of the team table in
// first-occurrence order.
func (r Record) Users() []string {
	users := make([]string, 0, len(r.TeamMembers))
	seen := make(map[string]struct{}, len(r.TeamMembers))
	for _, m := range r.TeamMembers {
		u := NormalizeUser(m.User)
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		users = append(users, u)
	}
	return users
}

// Normalized returns a copy of r with a default doctype, row indexes
// assigned from position and users normalized. Empty rows are kept.
func (r Record) Normalized() Record {
	out := Record{Doctype: r.Doctype, Name: strings.TrimSpace(r.Name)}
	if out.Doctype == "" {
		out.Doctype = IWONumber
	}
	if len(r.TeamMembers) > 0 {
		out.TeamMembers = make([]TeamMember, len(r.TeamMembers))
		for i, m := range r.TeamMembers {
			out.TeamMembers[i] = TeamMember{Idx: i + 1, User: NormalizeUser(m.User)}
		}
	}
	return out
}

// NormalizeUser trims surrounding whitespace and applies NFC so that
// visually identical identifiers compare equal. Whitespace-only input
// normalizes to "".
func NormalizeUser(user string) string {
	return norm.NFC.String(strings.TrimSpace(user))
}

// Perms are the access flags carried by a DocShare row.
type Perms struct {
	Read   bool `json:"read"`
	Write  bool `json:"write"`
	Share  bool `json:"share"`
	Notify bool `json:"notify"`
}

// FullAccess is granted to every team member.
var FullAccess = Perms{Read: true, Write: true, Share: true, Notify: true}

// Grant is a typed DocShare row: user has access to (ShareDoctype, ShareName).
type Grant struct {
	Name         string `json:"name"`
	ShareDoctype string `json:"share_doctype"`
	ShareName    string `json:"share_name"`
	User         string `json:"user"`
	Perms
}

// Notification is a Notification Log row telling a user a document was
// shared with them.
type Notification struct {
	Name         string `json:"name"`
	ForUser      string `json:"for_user"`
	DocumentType string `json:"document_type"`
	DocumentName string `json:"document_name"`
	Subject      string `json:"subject"`
}
