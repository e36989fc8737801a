package githubapi

// Response shapes mirror the public REST API closely enough for clients
// generated against the GitHub schema to parse them. Fields the simulator
// cannot meaningfully fake are omitted rather than zero-filled.

// User is a GitHub account, also used as the repository owner object.
type User struct {
	Login     string `json:"login" yaml:"login"`
	ID        int64  `json:"id" yaml:"id"`
	NodeID    string `json:"node_id" yaml:"node_id"`
	AvatarURL string `json:"avatar_url" yaml:"avatar_url"`
	URL       string `json:"url" yaml:"url"`
	HTMLURL   string `json:"html_url" yaml:"html_url"`
	Type      string `json:"type" yaml:"type"`
	Name      string `json:"name,omitempty" yaml:"name"`
	Email     string `json:"email,omitempty" yaml:"email"`
	Company   string `json:"company,omitempty" yaml:"company"`
	SiteAdmin bool   `json:"site_admin" yaml:"site_admin"`
}

// Organization is the org object returned by /orgs/{org} and embedded in
// membership responses.
type Organization struct {
	Login       string `json:"login" yaml:"login"`
	ID          int64  `json:"id" yaml:"id"`
	NodeID      string `json:"node_id" yaml:"node_id"`
	URL         string `json:"url" yaml:"url"`
	ReposURL    string `json:"repos_url" yaml:"repos_url"`
	AvatarURL   string `json:"avatar_url" yaml:"avatar_url"`
	Description string `json:"description,omitempty" yaml:"description"`
}

// Membership ties the authenticated user to an organization, the shape of
// /user/memberships/orgs entries.
type Membership struct {
	URL             string       `json:"url"`
	State           string       `json:"state"`
	Role            string       `json:"role"`
	OrganizationURL string       `json:"organization_url"`
	User            User         `json:"user"`
	Organization    Organization `json:"organization"`
}

// Repository is the repo object returned by /repos/{owner}/{repo}.
type Repository struct {
	ID            int64  `json:"id" yaml:"id"`
	NodeID        string `json:"node_id" yaml:"node_id"`
	Name          string `json:"name" yaml:"name"`
	FullName      string `json:"full_name" yaml:"full_name"`
	Owner         User   `json:"owner" yaml:"-"`
	OwnerLogin    string `json:"-" yaml:"owner"`
	Private       bool   `json:"private" yaml:"private"`
	HTMLURL       string `json:"html_url" yaml:"html_url"`
	URL           string `json:"url" yaml:"url"`
	Description   string `json:"description,omitempty" yaml:"description"`
	DefaultBranch string `json:"default_branch" yaml:"default_branch"`
}

// Branch is a repository branch, the shape of /repos/{owner}/{repo}/branches
// entries.
type Branch struct {
	Name      string       `json:"name" yaml:"name"`
	Commit    BranchCommit `json:"commit" yaml:"commit"`
	Protected bool         `json:"protected" yaml:"protected"`
}

// BranchCommit is the commit pointer embedded in a branch.
type BranchCommit struct {
	SHA string `json:"sha" yaml:"sha"`
	URL string `json:"url" yaml:"url"`
}

// Meta is the /meta response. The address ranges are fixed documentation
// values; nothing routes to them.
type Meta struct {
	VerifiablePasswordAuthentication bool     `json:"verifiable_password_authentication"`
	Web                              []string `json:"web"`
	API                              []string `json:"api"`
	Git                              []string `json:"git"`
}
