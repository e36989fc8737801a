package githubapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"unicode"
)

// The GraphQL endpoint answers the small query surface clients of the mock
// actually issue: viewer, user, organization, and repository lookups with
// scalar selections. Queries are parsed with a minimal selection-set parser
// rather than a full GraphQL engine; the response shape follows the real
// API's conventions (200 with an errors array, nulled fields on resolution
// failures).

type gqlRequest struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName"`
	Variables     map[string]any `json:"variables"`
}

type gqlError struct {
	Message string `json:"message"`
}

type gqlResponse struct {
	Data   map[string]any `json:"data"`
	Errors []gqlError     `json:"errors,omitempty"`
}

func (a *API) handleGraphQL(w http.ResponseWriter, r *http.Request) {
	var req gqlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeJSON(w, http.StatusBadRequest, gqlResponse{
			Errors: []gqlError{{Message: "could not parse request body"}},
		})
		return
	}

	selections, err := parseQuery(req.Query)
	if err != nil {
		a.writeJSON(w, http.StatusOK, gqlResponse{
			Errors: []gqlError{{Message: err.Error()}},
		})
		return
	}

	resp := gqlResponse{Data: map[string]any{}}
	for _, sel := range selections {
		value, rerr := a.resolveRoot(sel, req.Variables)
		if rerr != nil {
			resp.Errors = append(resp.Errors, gqlError{Message: rerr.Error()})
		}
		resp.Data[sel.alias()] = value
	}
	a.writeJSON(w, http.StatusOK, resp)
}

func (a *API) resolveRoot(sel selection, vars map[string]any) (any, error) {
	switch sel.Name {
	case "viewer":
		viewer, ok := a.Store.Viewer()
		if !ok {
			return nil, fmt.Errorf("no viewer account is seeded")
		}
		return userFields(viewer, sel.Fields), nil

	case "user":
		login := sel.arg("login", vars)
		user, ok := a.Store.UserByLogin(login)
		if !ok {
			return nil, fmt.Errorf("Could not resolve to a User with the login of '%s'.", login)
		}
		return userFields(user, sel.Fields), nil

	case "organization":
		login := sel.arg("login", vars)
		org, ok := a.Store.OrganizationByLogin(login)
		if !ok {
			return nil, fmt.Errorf("Could not resolve to an Organization with the login of '%s'.", login)
		}
		return orgFields(org, sel.Fields), nil

	case "repository":
		owner := sel.arg("owner", vars)
		name := sel.arg("name", vars)
		repo, ok := a.Store.Repository(owner, name)
		if !ok {
			return nil, fmt.Errorf("Could not resolve to a Repository with the name '%s/%s'.", owner, name)
		}
		return repoFields(repo, sel.Fields), nil

	default:
		return nil, fmt.Errorf("Cannot query field %q on type \"Query\".", sel.Name)
	}
}

func userFields(u User, fields []selection) map[string]any {
	out := map[string]any{}
	for _, f := range fields {
		switch f.Name {
		case "login":
			out[f.alias()] = u.Login
		case "id":
			out[f.alias()] = u.NodeID
		case "databaseId":
			out[f.alias()] = u.ID
		case "name":
			out[f.alias()] = u.Name
		case "email":
			out[f.alias()] = u.Email
		case "avatarUrl":
			out[f.alias()] = u.AvatarURL
		case "url":
			out[f.alias()] = u.HTMLURL
		case "__typename":
			out[f.alias()] = "User"
		default:
			out[f.alias()] = nil
		}
	}
	return out
}

func orgFields(o Organization, fields []selection) map[string]any {
	out := map[string]any{}
	for _, f := range fields {
		switch f.Name {
		case "login":
			out[f.alias()] = o.Login
		case "id":
			out[f.alias()] = o.NodeID
		case "databaseId":
			out[f.alias()] = o.ID
		case "description":
			out[f.alias()] = o.Description
		case "avatarUrl":
			out[f.alias()] = o.AvatarURL
		case "url":
			out[f.alias()] = o.URL
		case "__typename":
			out[f.alias()] = "Organization"
		default:
			out[f.alias()] = nil
		}
	}
	return out
}

func repoFields(r Repository, fields []selection) map[string]any {
	out := map[string]any{}
	for _, f := range fields {
		switch f.Name {
		case "name":
			out[f.alias()] = r.Name
		case "nameWithOwner":
			out[f.alias()] = r.FullName
		case "id":
			out[f.alias()] = r.NodeID
		case "databaseId":
			out[f.alias()] = r.ID
		case "description":
			out[f.alias()] = r.Description
		case "isPrivate":
			out[f.alias()] = r.Private
		case "url":
			out[f.alias()] = r.HTMLURL
		case "owner":
			out[f.alias()] = userFields(r.Owner, f.Fields)
		case "defaultBranchRef":
			out[f.alias()] = refFields(r.DefaultBranch, f.Fields)
		case "__typename":
			out[f.alias()] = "Repository"
		default:
			out[f.alias()] = nil
		}
	}
	return out
}

func refFields(name string, fields []selection) map[string]any {
	out := map[string]any{}
	for _, f := range fields {
		switch f.Name {
		case "name":
			out[f.alias()] = name
		case "__typename":
			out[f.alias()] = "Ref"
		default:
			out[f.alias()] = nil
		}
	}
	return out
}

// selection is one field of a query: optional alias, arguments, and nested
// selections.
type selection struct {
	Name   string
	Alias  string
	Args   map[string]string
	Fields []selection
}

func (s selection) alias() string {
	if s.Alias != "" {
		return s.Alias
	}
	return s.Name
}

// arg resolves an argument value, substituting variables for $name
// references.
func (s selection) arg(name string, vars map[string]any) string {
	raw, ok := s.Args[name]
	if !ok {
		return ""
	}
	if strings.HasPrefix(raw, "$") {
		if v, ok := vars[raw[1:]].(string); ok {
			return v
		}
		return ""
	}
	return raw
}

// parseQuery extracts the top-level selection set of a query document. The
// optional operation header (query Name($x: Type!)) is skipped; fragments
// and directives are not supported.
func parseQuery(query string) ([]selection, error) {
	p := &queryParser{input: query}
	p.skipSpace()

	// Operation header: "query", "{", or "query Name(...)".
	if p.peek() != '{' {
		word := p.readName()
		if word != "query" {
			return nil, fmt.Errorf("unsupported operation %q", word)
		}
		p.skipSpace()
		if p.peek() != '{' && p.peek() != '(' {
			p.readName() // operation name
			p.skipSpace()
		}
		if p.peek() == '(' {
			if err := p.skipBalanced('(', ')'); err != nil {
				return nil, err
			}
			p.skipSpace()
		}
	}

	return p.readSelectionSet()
}

type queryParser struct {
	input string
	pos   int
}

func (p *queryParser) peek() byte {
	if p.pos >= len(p.input) {
		return 0
	}
	return p.input[p.pos]
}

func (p *queryParser) skipSpace() {
	for p.pos < len(p.input) {
		c := rune(p.input[p.pos])
		if unicode.IsSpace(c) || c == ',' {
			p.pos++
			continue
		}
		if c == '#' {
			for p.pos < len(p.input) && p.input[p.pos] != '\n' {
				p.pos++
			}
			continue
		}
		break
	}
}

func (p *queryParser) readName() string {
	start := p.pos
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' {
			p.pos++
			continue
		}
		break
	}
	return p.input[start:p.pos]
}

func (p *queryParser) skipBalanced(open, close byte) error {
	if p.peek() != open {
		return fmt.Errorf("expected %q at position %d", string(open), p.pos)
	}
	depth := 0
	for p.pos < len(p.input) {
		switch p.input[p.pos] {
		case '"':
			// String literals may contain the delimiters.
			p.pos++
			for p.pos < len(p.input) && p.input[p.pos] != '"' {
				if p.input[p.pos] == '\\' {
					p.pos++
				}
				p.pos++
			}
			if p.pos >= len(p.input) {
				return fmt.Errorf("unterminated string at position %d", p.pos)
			}
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				p.pos++
				return nil
			}
		}
		p.pos++
	}
	return fmt.Errorf("unbalanced %q", string(open))
}

func (p *queryParser) readSelectionSet() ([]selection, error) {
	p.skipSpace()
	if p.peek() != '{' {
		return nil, fmt.Errorf("expected selection set at position %d", p.pos)
	}
	p.pos++

	var out []selection
	for {
		p.skipSpace()
		if p.peek() == '}' {
			p.pos++
			return out, nil
		}
		if p.peek() == 0 {
			return nil, fmt.Errorf("unterminated selection set")
		}

		sel := selection{Name: p.readName()}
		if sel.Name == "" {
			return nil, fmt.Errorf("malformed selection at position %d", p.pos)
		}

		p.skipSpace()
		if p.peek() == ':' {
			p.pos++
			p.skipSpace()
			sel.Alias = sel.Name
			sel.Name = p.readName()
			p.skipSpace()
		}

		if p.peek() == '(' {
			args, err := p.readArgs()
			if err != nil {
				return nil, err
			}
			sel.Args = args
			p.skipSpace()
		}

		if p.peek() == '{' {
			fields, err := p.readSelectionSet()
			if err != nil {
				return nil, err
			}
			sel.Fields = fields
		}

		out = append(out, sel)
	}
}

func (p *queryParser) readArgs() (map[string]string, error) {
	p.pos++ // consume '('
	args := map[string]string{}
	for {
		p.skipSpace()
		if p.peek() == ')' {
			p.pos++
			return args, nil
		}
		if p.peek() == 0 {
			return nil, fmt.Errorf("unterminated argument list")
		}

		name := p.readName()
		p.skipSpace()
		if p.peek() != ':' {
			return nil, fmt.Errorf("malformed argument %q", name)
		}
		p.pos++
		p.skipSpace()

		value, err := p.readValue()
		if err != nil {
			return nil, err
		}
		args[name] = value
	}
}

func (p *queryParser) readValue() (string, error) {
	switch c := p.peek(); {
	case c == '"':
		p.pos++
		start := p.pos
		for p.pos < len(p.input) && p.input[p.pos] != '"' {
			if p.input[p.pos] == '\\' {
				p.pos++
			}
			p.pos++
		}
		if p.pos >= len(p.input) {
			return "", fmt.Errorf("unterminated string value")
		}
		value := p.input[start:p.pos]
		p.pos++
		return value, nil
	case c == '$':
		p.pos++
		return "$" + p.readName(), nil
	default:
		value := p.readName()
		if value == "" {
			return "", fmt.Errorf("malformed value at position %d", p.pos)
		}
		return value, nil
	}
}
