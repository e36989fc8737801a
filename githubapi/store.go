package githubapi

import (
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
)

// Seed is the initial dataset for the mock. Zero values are filled in at
// store construction so a seed only needs the fields a test cares about.
type Seed struct {
	Users         []User         `yaml:"users"`
	Organizations []Organization `yaml:"organizations"`
	Repositories  []Repository   `yaml:"repositories"`
	Branches      []Branch       `yaml:"branches"`
}

// DefaultSeed is the dataset served when no seed is configured: one viewer
// account, one organization it belongs to, and one repository with a main
// branch.
func DefaultSeed() Seed {
	return Seed{
		Users:         []User{{Login: "octocat", Name: "The Octocat", Email: "octocat@github.test"}},
		Organizations: []Organization{{Login: "lovely-org"}},
		Repositories:  []Repository{{OwnerLogin: "lovely-org", Name: "awesome-repo"}},
		Branches:      []Branch{{Name: "main"}},
	}
}

// Store holds the mock dataset. The first seeded user acts as the
// authenticated viewer for /user, /user/memberships/orgs, and GraphQL viewer
// queries. Reads vastly outnumber writes; there are no mutating endpoints,
// but the lock keeps the door open for seeding at runtime.
type Store struct {
	mu            sync.RWMutex
	users         []User
	organizations []Organization
	repositories  []Repository
	branches      []Branch
}

// NewStore normalizes the seed and builds the store. Identifiers, node ids,
// and URL fields are derived from the login/name fields when absent, the way
// the real API would have assigned them.
func NewStore(seed Seed) *Store {
	s := &Store{}

	nextID := int64(1)
	takeID := func(explicit int64) int64 {
		if explicit != 0 {
			return explicit
		}
		id := nextID
		nextID++
		return id
	}

	for _, u := range seed.Users {
		u.ID = takeID(u.ID)
		if u.NodeID == "" {
			u.NodeID = nodeID("User", u.ID)
		}
		if u.Type == "" {
			u.Type = "User"
		}
		if u.AvatarURL == "" {
			u.AvatarURL = fmt.Sprintf("https://avatars.github.test/u/%d?v=4", u.ID)
		}
		if u.URL == "" {
			u.URL = "https://api.github.test/users/" + u.Login
		}
		if u.HTMLURL == "" {
			u.HTMLURL = "https://github.test/" + u.Login
		}
		s.users = append(s.users, u)
	}

	for _, o := range seed.Organizations {
		o.ID = takeID(o.ID)
		if o.NodeID == "" {
			o.NodeID = nodeID("Organization", o.ID)
		}
		if o.URL == "" {
			o.URL = "https://api.github.test/orgs/" + o.Login
		}
		if o.ReposURL == "" {
			o.ReposURL = o.URL + "/repos"
		}
		if o.AvatarURL == "" {
			o.AvatarURL = fmt.Sprintf("https://avatars.github.test/u/%d?v=4", o.ID)
		}
		s.organizations = append(s.organizations, o)
	}

	for _, r := range seed.Repositories {
		r.ID = takeID(r.ID)
		if r.NodeID == "" {
			r.NodeID = nodeID("Repository", r.ID)
		}
		if r.Owner.Login == "" {
			r.Owner = s.ownerOf(r.OwnerLogin)
		}
		r.OwnerLogin = r.Owner.Login
		if r.FullName == "" {
			r.FullName = r.Owner.Login + "/" + r.Name
		}
		if r.URL == "" {
			r.URL = "https://api.github.test/repos/" + r.FullName
		}
		if r.HTMLURL == "" {
			r.HTMLURL = "https://github.test/" + r.FullName
		}
		if r.DefaultBranch == "" {
			r.DefaultBranch = "main"
		}
		s.repositories = append(s.repositories, r)
	}

	for _, b := range seed.Branches {
		if b.Commit.SHA == "" {
			b.Commit.SHA = fakeSHA(b.Name)
		}
		if b.Commit.URL == "" && len(s.repositories) > 0 {
			b.Commit.URL = s.repositories[0].URL + "/commits/" + b.Commit.SHA
		}
		s.branches = append(s.branches, b)
	}

	return s
}

// Viewer is the authenticated account, the first seeded user.
func (s *Store) Viewer() (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.users) == 0 {
		return User{}, false
	}
	return s.users[0], true
}

// UserByLogin looks an account up case-insensitively, like the real API.
func (s *Store) UserByLogin(login string) (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Login, login) {
			return u, true
		}
	}
	return User{}, false
}

// Organizations returns all seeded organizations.
func (s *Store) Organizations() []Organization {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Organization, len(s.organizations))
	copy(out, s.organizations)
	return out
}

// OrganizationByLogin looks an organization up case-insensitively.
func (s *Store) OrganizationByLogin(login string) (Organization, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, o := range s.organizations {
		if strings.EqualFold(o.Login, login) {
			return o, true
		}
	}
	return Organization{}, false
}

// Repository resolves owner/name case-insensitively.
func (s *Store) Repository(owner, name string) (Repository, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.repositories {
		if strings.EqualFold(r.Owner.Login, owner) && strings.EqualFold(r.Name, name) {
			return r, true
		}
	}
	return Repository{}, false
}

// Branches returns the seeded branch list. The mock keeps one flat list
// rather than per-repository branch sets.
func (s *Store) Branches() []Branch {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Branch, len(s.branches))
	copy(out, s.branches)
	return out
}

// ownerOf resolves a repository owner login against seeded orgs and users,
// synthesizing an owner object for unknown logins so a partial seed still
// produces complete responses.
func (s *Store) ownerOf(login string) User {
	for _, o := range s.organizations {
		if strings.EqualFold(o.Login, login) {
			return User{
				Login:     o.Login,
				ID:        o.ID,
				NodeID:    o.NodeID,
				AvatarURL: o.AvatarURL,
				URL:       o.URL,
				HTMLURL:   "https://github.test/" + o.Login,
				Type:      "Organization",
			}
		}
	}
	for _, u := range s.users {
		if strings.EqualFold(u.Login, login) {
			return u
		}
	}
	return User{
		Login:   login,
		NodeID:  nodeID("User", 0),
		URL:     "https://api.github.test/users/" + login,
		HTMLURL: "https://github.test/" + login,
		Type:    "User",
	}
}

func nodeID(kind string, id int64) string {
	return base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf("0%d:%s%d", len(kind), kind, id)))
}

// fakeSHA derives a stable commit sha from the branch name.
func fakeSHA(name string) string {
	sum := sha1.Sum([]byte(name))
	return hex.EncodeToString(sum[:])
}
